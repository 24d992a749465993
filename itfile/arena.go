package itfile

// arena hands out slices from large shared blocks,
// so a module with a lot of patterns needs only a few allocations.
//
// The slices stay valid after the next parse: every ParseFromBytes
// call starts with a fresh block.
type arena[T any] struct {
	block     []T
	blockSize int
}

func (a *arena[T]) Reset(blockSize int) {
	a.block = nil
	a.blockSize = blockSize
}

func (a *arena[T]) MakeSlice(n int) []T {
	if n > a.blockSize/2 {
		// Such a big slice would waste most of the block.
		return make([]T, n)
	}
	if len(a.block) < n {
		a.block = make([]T, a.blockSize)
	}
	s := a.block[:n:n]
	a.block = a.block[n:]
	return s
}
