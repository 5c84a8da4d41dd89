package chainstatecli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/chainstate/stores/blockindex/memory"
	"github.com/bsv-blockchain/chainstate/stores/chainstate"
	"github.com/bsv-blockchain/chainstate/stores/kvstore/leveldb"
	"github.com/bsv-blockchain/chainstate/ulogger"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliFixture struct {
	dir string
}

func newCLIFixture(t *testing.T) *cliFixture {
	return &cliFixture{dir: t.TempDir()}
}

// run executes one command line against stores in the fixture folder and returns its output.
func (f *cliFixture) run(chainstateStore string, args ...string) (string, error) {
	app := NewApp("chainstate", "test", "none")

	var out bytes.Buffer
	app.Writer = &out

	cmd := []string{
		"chainstate",
		"--data-folder", f.dir,
		"--log-level", "ERROR",
		"--chainstate-store", chainstateStore,
		"--doublespends-store", "leveldb:///doublespends",
		"--blockindex-store", "sqlite:///blockindex",
	}

	err := app.Run(append(cmd, args...))

	return out.String(), err
}

func TestDoubleSpendsCommands(t *testing.T) {
	f := newCLIFixture(t)

	outpoint := model.NewOutpoint(chainhash.HashH([]byte("prev")), 1)
	txA := chainhash.HashH([]byte("A"))
	txB := chainhash.HashH([]byte("B"))

	out, err := f.run("memory:///", "doublespends", "register", "--outpoint", outpoint.String(), "--txid", txA.String(), "--height", "100")
	require.NoError(t, err)

	var record model.DoubleSpendRecord
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	assert.Equal(t, outpoint, record.Outpoint)
	assert.Equal(t, uint32(100), record.OriginHeight)

	_, err = f.run("memory:///", "doublespends", "register", "--outpoint", outpoint.String(), "--txid", txB.String(), "--height", "102")
	require.NoError(t, err)

	out, err = f.run("memory:///", "doublespends", "list")
	require.NoError(t, err)

	var records []*model.DoubleSpendRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, uint32(100), records[0].OriginHeight)
	assert.True(t, records[0].HasConflictingTx(txA))
	assert.True(t, records[0].HasConflictingTx(txB))

	out, err = f.run("memory:///", "doublespends", "prune", "--height", "105")
	require.NoError(t, err)
	assert.Equal(t, "deleted 0 records, 1 remaining\n", out)

	out, err = f.run("memory:///", "doublespends", "prune", "--height", "106")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1 records, 0 remaining\n", out)

	out, err = f.run("memory:///", "doublespends", "list")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestDoubleSpendsRegisterInvalidArguments(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run("memory:///", "doublespends", "register", "--outpoint", "nope", "--txid", chainhash.HashH([]byte("A")).String(), "--height", "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = f.run("memory:///", "doublespends", "register", "--outpoint", model.NewOutpoint(chainhash.Hash{}, 0).String(), "--txid", "zz", "--height", "1")
	require.Error(t, err)

	_, err = f.run("memory:///", "doublespends", "prune")
	require.Error(t, err)
}

func TestBlockIndexCommands(t *testing.T) {
	f := newCLIFixture(t)

	block := chainhash.HashH([]byte("block5"))

	_, err := f.run("memory:///", "blockindex", "add", "--hash", block.String(), "--height", "5")
	require.NoError(t, err)

	out, err := f.run("memory:///", "blockindex", "best")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s 5\n", block), out)
}

func TestBadStoreURL(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run("unknown:///x", "audit")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestChainstateExportImportAudit(t *testing.T) {
	f := newCLIFixture(t)
	ctx := context.Background()

	block := chainhash.HashH([]byte("block7"))

	kv, err := leveldb.New(ulogger.TestLogger{}, filepath.Join(f.dir, "src"), false)
	require.NoError(t, err)

	genesis := chainhash.Hash{}
	ledger := chainstate.New(ulogger.TestLogger{}, kv, memory.New(&genesis), &sync.Mutex{})

	u := ledger.NewUpdate()
	require.NoError(t, u.AddOutputs(ctx, chainhash.HashH([]byte("tx1")), 3, true, []*bt.Output{
		{Satoshis: 5000, LockingScript: bscript.NewFromBytes([]byte{0x51})},
	}))
	require.NoError(t, u.AddOutputs(ctx, chainhash.HashH([]byte("tx2")), 7, false, []*bt.Output{
		{Satoshis: 10, LockingScript: bscript.NewFromBytes([]byte{0x52})},
		{Satoshis: 20, LockingScript: bscript.NewFromBytes([]byte{0x53})},
	}))
	u.SetBestBlock(block)
	require.NoError(t, u.Commit(ctx))
	require.NoError(t, kv.Close())

	_, err = f.run("memory:///", "blockindex", "add", "--hash", block.String(), "--height", "7")
	require.NoError(t, err)

	file := filepath.Join(f.dir, "utxoset.bin")

	out, err := f.run("leveldb:///src", "chainstate", "export", "--file", file)
	require.NoError(t, err)
	assert.Equal(t, "exported 2 transactions with 3 utxos\n", out)

	out, err = f.run("leveldb:///dst", "chainstate", "import", "--file", file)
	require.NoError(t, err)
	assert.Equal(t, "imported 2 transactions with 3 utxos\n", out)

	srcAudit, err := f.run("leveldb:///src", "audit")
	require.NoError(t, err)

	dstAudit, err := f.run("leveldb:///dst", "audit")
	require.NoError(t, err)

	assert.JSONEq(t, srcAudit, dstAudit)

	var stats model.UTXOStats
	require.NoError(t, json.Unmarshal([]byte(dstAudit), &stats))
	assert.Equal(t, block, stats.BestBlock)
	assert.Equal(t, uint32(7), stats.Height)
	assert.Equal(t, uint64(2), stats.Transactions)
	assert.Equal(t, uint64(3), stats.TransactionOutputs)
	assert.Equal(t, uint64(5030), stats.TotalAmount)

	_, err = f.run("leveldb:///dst", "chainstate", "import", "--file", filepath.Join(f.dir, "missing.bin"))
	require.Error(t, err)
}
