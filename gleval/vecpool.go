package gleval

import (
	"errors"
	"fmt"
)

// VecPool reuses buffers across node evaluations. The zero value is ready for use.
type VecPool struct {
	V4    bufPool[[4]float32]
	Float bufPool[float32]
}

// AssertAllReleased returns an error if any buffer acquired from the pool was not released.
func (vp *VecPool) AssertAllReleased() error {
	err := vp.V4.assertAllReleased()
	if err != nil {
		return fmt.Errorf("V4 pool: %w", err)
	}
	err = vp.Float.assertAllReleased()
	if err != nil {
		return fmt.Errorf("Float pool: %w", err)
	}
	return nil
}

type bufPool[T any] struct {
	free     [][]T
	acquired int
}

// Acquire returns a zeroed buffer of length n.
func (bp *bufPool[T]) Acquire(n int) []T {
	bp.acquired++
	for i, buf := range bp.free {
		if cap(buf) >= n {
			last := len(bp.free) - 1
			bp.free[i] = bp.free[last]
			bp.free[last] = nil
			bp.free = bp.free[:last]
			buf = buf[:n]
			clear(buf)
			return buf
		}
	}
	return make([]T, n)
}

// Release returns buf to the pool. buf must not be used after release.
func (bp *bufPool[T]) Release(buf []T) {
	if bp.acquired == 0 {
		panic("release of buffer not acquired from pool")
	}
	bp.acquired--
	bp.free = append(bp.free, buf[:0])
}

var errBuffersNotReleased = errors.New("buffers not released")

func (bp *bufPool[T]) assertAllReleased() error {
	if bp.acquired != 0 {
		return fmt.Errorf("%w: %d", errBuffersNotReleased, bp.acquired)
	}
	return nil
}
