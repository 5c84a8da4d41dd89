package kvstore

// SliceIterator iterates entries that were read up front. Keys must already be sorted.
type SliceIterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
	err    error
}

func NewSliceIterator(keys, values [][]byte) *SliceIterator {
	return &SliceIterator{keys: keys, values: values}
}

// NewErrorIterator returns an iterator that is not valid and reports err.
func NewErrorIterator(err error) *SliceIterator {
	return &SliceIterator{err: err}
}

func (it *SliceIterator) Valid() bool {
	return it.err == nil && it.pos < len(it.keys)
}

func (it *SliceIterator) Next() {
	if it.Valid() {
		it.pos++
	}
}

func (it *SliceIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}

	return clone(it.keys[it.pos])
}

func (it *SliceIterator) Value() []byte {
	if !it.Valid() {
		return nil
	}

	return clone(it.values[it.pos])
}

func (it *SliceIterator) Error() error {
	return it.err
}

func (it *SliceIterator) Release() {
	it.keys = nil
	it.values = nil
}
