package memutils

import (
	"math"
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

// CheckedMul multiplies two non-negative numbers, returning false instead of a
// wrapped-around product when the result does not fit in T.
func CheckedMul[T Number](left, right T) (T, bool) {
	if left < 0 || right < 0 {
		return 0, false
	}

	hi, lo := bits.Mul64(uint64(left), uint64(right))
	if hi != 0 || lo > uint64(maxOf[T]()) {
		return 0, false
	}

	return T(lo), true
}

func maxOf[T Number]() uint64 {
	var zero T
	if zero-1 > 0 {
		return math.MaxUint
	}
	return math.MaxInt
}

// CheckSize returns ErrInvalidSize, annotated with the name of the parameter, if size is negative
func CheckSize(size int, name string) error {
	if size < 0 {
		return cerrors.Wrapf(ErrInvalidSize, "%s is %d", name, size)
	}
	return nil
}
