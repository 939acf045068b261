// Package arena provides storage for IR nodes with a single bulk free at
// the end of a CodeBlob's lifetime, backed by modernc.org/memory's
// allocator rather than the garbage collector. It does not bump-allocate:
// every Alloc is its own allocator call, and Free releases each one.
package arena

import (
	"unsafe"

	"modernc.org/memory"
)

// Arena owns one modernc.org/memory.Allocator and hands out one separately
// allocated region of the requested size per Alloc call. One Arena is created per CodeBlob (see
// internal/hxir) and released in one shot via Free.
type Arena struct {
	alloc memory.Allocator
	ptrs  []uintptr
	used  int
}

func New() *Arena {
	return &Arena{}
}

// Alloc reserves n bytes and returns them zeroed. Panics on allocator
// failure, matching the teacher's convention of treating out-of-memory as
// unrecoverable rather than a propagated error.
func (a *Arena) Alloc(n int) []byte {
	if n == 0 {
		return nil
	}
	p, err := a.alloc.UintptrMalloc(n)
	if err != nil {
		panic(err)
	}
	a.ptrs = append(a.ptrs, p)
	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
	for i := range b {
		b[i] = 0
	}
	a.used += n
	return b
}

// Used reports the cumulative number of bytes handed out since the last
// Free.
func (a *Arena) Used() int { return a.used }

// Free releases every allocation made through this arena at once.
func (a *Arena) Free() {
	for _, p := range a.ptrs {
		a.alloc.UintptrFree(p)
	}
	a.ptrs = nil
	a.used = 0
}
