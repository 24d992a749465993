package itfile

import (
	"testing"
)

func TestArena(t *testing.T) {
	var a arena[int]
	a.Reset(8)

	x := a.MakeSlice(3)
	y := a.MakeSlice(3)
	if len(x) != 3 || cap(x) != 3 || len(y) != 3 {
		t.Fatalf("unexpected slices: len=%d cap=%d, len=%d", len(x), cap(x), len(y))
	}
	x = append(x, 10)
	if y[0] != 0 {
		t.Fatalf("append to x changed y")
	}
	y[2] = 5

	// Doesn't fit into the current block.
	z := a.MakeSlice(4)
	z[0] = 1
	if y[2] != 5 {
		t.Fatalf("a new block overwrote an old slice")
	}

	big := a.MakeSlice(20)
	if len(big) != 20 {
		t.Fatalf("big slice: have len %d", len(big))
	}

	a.Reset(8)
	w := a.MakeSlice(2)
	w[0] = 7
	if z[0] != 1 {
		t.Fatalf("reset reused an old block")
	}
}
