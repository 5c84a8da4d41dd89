package kvstore

// Op is a single staged write. A Delete op has no value.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Batch collects puts and deletes that a Store applies atomically in staging order.
type Batch struct {
	ops []Op
}

func NewBatch() *Batch {
	return &Batch{}
}

// Put stages key=value. Both slices are copied.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, Op{Key: clone(key), Value: clone(value)})
}

// Delete stages the removal of key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Key: clone(key), Delete: true})
}

func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) Reset() {
	b.ops = b.ops[:0]
}

// Ops returns the staged operations in the order they were added.
func (b *Batch) Ops() []Op {
	return b.ops
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)

	return c
}
