package sql

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/bsv-blockchain/chainstate/errors"
)

// pagedIterator reads [start, limit) in key order, pageSize rows per query. Every query
// is fully drained before the next statement runs on the same connection.
type pagedIterator struct {
	ctx    context.Context
	q      querier
	table  string
	start  []byte
	limit  []byte
	keys   [][]byte
	values [][]byte
	pos    int
	done   bool
	err    error
}

func (it *pagedIterator) fetch(inclusive bool) {
	op := ">"
	if inclusive {
		op = ">="
	}

	query := fmt.Sprintf("SELECT k, v FROM %s WHERE k %s $1 ORDER BY k LIMIT %d", it.table, op, pageSize)
	args := []interface{}{it.start}

	if it.limit != nil {
		query = fmt.Sprintf("SELECT k, v FROM %s WHERE k %s $1 AND k < $2 ORDER BY k LIMIT %d", it.table, op, pageSize)
		args = append(args, it.limit)
	}

	rows, err := it.q.QueryContext(it.ctx, query, args...)
	if err != nil {
		it.err = errors.NewStorageError("failed to query %s", it.table, err)
		return
	}

	defer rows.Close()

	it.keys = it.keys[:0]
	it.values = it.values[:0]
	it.pos = 0

	for rows.Next() {
		var k, v []byte
		if err = rows.Scan(&k, &v); err != nil {
			it.err = errors.NewStorageError("failed to scan %s row", it.table, err)
			return
		}

		it.keys = append(it.keys, k)
		it.values = append(it.values, v)
	}

	if err = rows.Err(); err != nil {
		it.err = errors.NewStorageError("failed to read %s", it.table, err)
		return
	}

	if len(it.keys) < pageSize {
		it.done = true
	}

	if len(it.keys) > 0 {
		it.start = it.keys[len(it.keys)-1]
	}
}

func (it *pagedIterator) Valid() bool {
	return it.err == nil && it.pos < len(it.keys)
}

func (it *pagedIterator) Next() {
	if !it.Valid() {
		return
	}

	it.pos++

	if it.pos == len(it.keys) && !it.done {
		it.fetch(false)
	}
}

func (it *pagedIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}

	return append([]byte{}, it.keys[it.pos]...)
}

func (it *pagedIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}

	return append([]byte{}, it.values[it.pos]...)
}

func (it *pagedIterator) Error() error {
	return it.err
}

func (it *pagedIterator) Release() {
	it.keys = nil
	it.values = nil
	it.done = true
}

// search returns the index of the first key >= target.
func search(keys [][]byte, target []byte) int {
	return sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(keys[i], target) >= 0
	})
}
