// Package aram tracks the usage of the sound memory address space.
package aram

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Size is the size of the addressable sound memory.
const Size = 0x10000

// ErrNotEnoughAram is reported when no free range can hold the allocation.
var ErrNotEnoughAram = errors.New("not enough free ARAM")

type Kind uint8

const (
	KindReserved Kind = iota
	KindTable
	KindSample
	KindSong
)

func (k Kind) String() string {
	switch k {
	case KindReserved:
		return "reserved"
	case KindTable:
		return "table"
	case KindSample:
		return "sample"
	case KindSong:
		return "song"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Region is a used [From, To) address range.
type Region struct {
	Kind     Kind
	From     int
	To       int
	ObjectID int
	Label    string
}

func (r Region) Size() int { return r.To - r.From }

func (r Region) overlaps(from, to int) bool {
	return r.From < to && from < r.To
}

func (r Region) String() string {
	return fmt.Sprintf("%s [$%04X, $%04X) %s", r.Kind, r.From, r.To, r.Label)
}

// Allocator is a first-fit allocator over the sound memory.
//
// Address 0 is never handed out.
// The regions are kept sorted by their start address.
type Allocator struct {
	regions []Region
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Clone returns an independent copy of the allocator state.
func (a *Allocator) Clone() *Allocator {
	return &Allocator{regions: append([]Region(nil), a.regions...)}
}

// Regions returns a copy of the used regions sorted by address.
func (a *Allocator) Regions() []Region {
	return append([]Region(nil), a.regions...)
}

// Reserve marks the fixed range as used.
// Only KindReserved and KindTable ranges are expected to be reserved this way.
func (a *Allocator) Reserve(from, to int, kind Kind, label string) error {
	if from < 0 || to > Size || from >= to {
		return errors.Errorf("reserve %s: invalid range [$%04X, $%04X)", label, from, to)
	}
	for _, r := range a.regions {
		if r.overlaps(from, to) {
			return errors.Errorf("reserve %s: overlaps %s", label, r)
		}
	}
	a.insert(Region{Kind: kind, From: from, To: to, ObjectID: -1, Label: label})
	return nil
}

// Find returns the region that belongs to the object.
func (a *Allocator) Find(kind Kind, objectID int) (Region, bool) {
	for _, r := range a.regions {
		if r.Kind == kind && r.ObjectID == objectID {
			return r, true
		}
	}
	return Region{}, false
}

// AllocRequest describes an allocation.
type AllocRequest struct {
	Size     int
	Kind     Kind
	ObjectID int
	Label    string

	// Replacing is a region that is treated as free for this request.
	// It's released only if the allocation succeeds.
	Replacing *Region
}

// Allocate places the object at the lowest address that can hold it.
//
// Structural regions (reserved and table kinds) can't be replaced.
// On failure, the allocator state is not modified.
func (a *Allocator) Allocate(req AllocRequest) (Region, error) {
	if req.Size <= 0 {
		return Region{}, errors.Errorf("allocate %s: invalid size %d", req.Label, req.Size)
	}
	if req.Kind == KindReserved || req.Kind == KindTable {
		return Region{}, errors.Errorf("allocate %s: %s regions can only be reserved", req.Label, req.Kind)
	}

	replaced := -1
	if req.Replacing != nil {
		replaced = a.indexOf(*req.Replacing)
		if replaced == -1 {
			return Region{}, errors.Errorf("allocate %s: replaced region %s is not allocated", req.Label, *req.Replacing)
		}
		if k := a.regions[replaced].Kind; k == KindReserved || k == KindTable {
			return Region{}, errors.Errorf("allocate %s: can't replace a %s region", req.Label, k)
		}
	}

	addr := 1
	for i, r := range a.regions {
		if i == replaced {
			continue
		}
		if r.To <= addr {
			continue
		}
		if r.From-addr >= req.Size {
			break
		}
		addr = r.To
	}
	if addr+req.Size > Size {
		return Region{}, errors.Wrapf(ErrNotEnoughAram, "allocate %d bytes for %s", req.Size, req.Label)
	}

	if replaced != -1 {
		a.regions = append(a.regions[:replaced], a.regions[replaced+1:]...)
	}
	region := Region{
		Kind:     req.Kind,
		From:     addr,
		To:       addr + req.Size,
		ObjectID: req.ObjectID,
		Label:    req.Label,
	}
	a.insert(region)
	return region, nil
}

// Release frees the region of the object.
// It reports whether anything was released.
func (a *Allocator) Release(kind Kind, objectID int) bool {
	for i, r := range a.regions {
		if r.Kind == kind && r.ObjectID == objectID {
			a.regions = append(a.regions[:i], a.regions[i+1:]...)
			return true
		}
	}
	return false
}

// FreeBytes reports the total amount of unused memory (address 0 excluded).
func (a *Allocator) FreeBytes() int {
	used := 0
	for _, r := range a.regions {
		used += r.Size()
		if r.From == 0 {
			used--
		}
	}
	return Size - 1 - used
}

// LargestFreeBlock reports the size of the largest allocatable range.
func (a *Allocator) LargestFreeBlock() int {
	largest := 0
	addr := 1
	for _, r := range a.regions {
		if r.From > addr && r.From-addr > largest {
			largest = r.From - addr
		}
		if r.To > addr {
			addr = r.To
		}
	}
	if Size-addr > largest {
		largest = Size - addr
	}
	return largest
}

func (a *Allocator) indexOf(region Region) int {
	for i, r := range a.regions {
		if r == region {
			return i
		}
	}
	return -1
}

func (a *Allocator) insert(region Region) {
	i := sort.Search(len(a.regions), func(i int) bool {
		return a.regions[i].From > region.From
	})
	a.regions = append(a.regions, Region{})
	copy(a.regions[i+1:], a.regions[i:])
	a.regions[i] = region
}
