// Package hostbuf is the host-side storage backing the buffer handles of
// both bundled backends. Each backend wraps Buffer in its own handle type,
// so handles stay backend-specific (crossing them over is a bad-location
// error) while the allocation, upload and download plumbing is shared.
package hostbuf

import (
	"github.com/pkg/errors"

	"github.com/radioastro/visim/backends"
	"github.com/radioastro/visim/types/fcomplex"
)

// Buffer holds a typed flat slice plus the metadata the backends validate
// against. Flat is always one of: []float32, []float64,
// []fcomplex.Complex[float32], []fcomplex.Complex[float64],
// []fcomplex.Jones[float32], []fcomplex.Jones[float64].
type Buffer struct {
	Prec  backends.Precision
	Kind  backends.ElemKind
	Flat  any
	Valid bool
}

// New allocates a zero-initialized buffer of n elements.
func New(prec backends.Precision, kind backends.ElemKind, n int) (*Buffer, error) {
	if n < 0 {
		return nil, errors.Wrapf(backends.ErrInvalidArgument, "negative buffer length %d", n)
	}
	b := &Buffer{Prec: prec, Kind: kind, Valid: true}
	switch {
	case prec == backends.Single && kind == backends.Real:
		b.Flat = make([]float32, n)
	case prec == backends.Single && kind == backends.Complex:
		b.Flat = make([]fcomplex.Complex[float32], n)
	case prec == backends.Single && kind == backends.Jones:
		b.Flat = make([]fcomplex.Jones[float32], n)
	case prec == backends.Double && kind == backends.Real:
		b.Flat = make([]float64, n)
	case prec == backends.Double && kind == backends.Complex:
		b.Flat = make([]fcomplex.Complex[float64], n)
	case prec == backends.Double && kind == backends.Jones:
		b.Flat = make([]fcomplex.Jones[float64], n)
	default:
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"unsupported buffer type %s/%s", prec, kind)
	}
	return b, nil
}

// FromFlat builds a buffer that copies the given host slice.
func FromFlat(flat any) (*Buffer, error) {
	var b *Buffer
	var err error
	switch src := flat.(type) {
	case []float32:
		b, err = New(backends.Single, backends.Real, len(src))
	case []fcomplex.Complex[float32]:
		b, err = New(backends.Single, backends.Complex, len(src))
	case []fcomplex.Jones[float32]:
		b, err = New(backends.Single, backends.Jones, len(src))
	case []float64:
		b, err = New(backends.Double, backends.Real, len(src))
	case []fcomplex.Complex[float64]:
		b, err = New(backends.Double, backends.Complex, len(src))
	case []fcomplex.Jones[float64]:
		b, err = New(backends.Double, backends.Jones, len(src))
	default:
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"unsupported flat slice type %T", flat)
	}
	if err != nil {
		return nil, err
	}
	copyAny(b.Flat, flat)
	return b, nil
}

// Len returns the number of elements held.
func (b *Buffer) Len() int {
	switch flat := b.Flat.(type) {
	case []float32:
		return len(flat)
	case []fcomplex.Complex[float32]:
		return len(flat)
	case []fcomplex.Jones[float32]:
		return len(flat)
	case []float64:
		return len(flat)
	case []fcomplex.Complex[float64]:
		return len(flat)
	case []fcomplex.Jones[float64]:
		return len(flat)
	}
	return 0
}

// Zero resets every element.
func (b *Buffer) Zero() {
	switch flat := b.Flat.(type) {
	case []float32:
		clear(flat)
	case []fcomplex.Complex[float32]:
		clear(flat)
	case []fcomplex.Jones[float32]:
		clear(flat)
	case []float64:
		clear(flat)
	case []fcomplex.Complex[float64]:
		clear(flat)
	case []fcomplex.Jones[float64]:
		clear(flat)
	}
}

// ToFlat copies the buffer contents into flat, which must have the buffer's
// element type and exact length.
func (b *Buffer) ToFlat(flat any) error {
	if !sameSliceType(b.Flat, flat) {
		return errors.Wrapf(backends.ErrInvalidArgument,
			"download into %T, buffer holds %T", flat, b.Flat)
	}
	if n := sliceLen(flat); n != b.Len() {
		return errors.Wrapf(backends.ErrInvalidArgument,
			"download into slice of %d elements, buffer holds %d", n, b.Len())
	}
	copyAny(flat, b.Flat)
	return nil
}

// Finalize invalidates the buffer and drops its storage.
func (b *Buffer) Finalize() {
	b.Valid = false
	b.Flat = nil
}

// Floats returns the buffer's storage as a []T, or a precision/kind
// mismatch error.
func Floats[T fcomplex.Float](b *Buffer, name string) ([]T, error) {
	flat, ok := b.Flat.([]T)
	if !ok {
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"%s buffer holds %T, kernel runs on %T", name, b.Flat, []T(nil))
	}
	return flat, nil
}

// Complexes returns the buffer's storage as []fcomplex.Complex[T].
func Complexes[T fcomplex.Float](b *Buffer, name string) ([]fcomplex.Complex[T], error) {
	flat, ok := b.Flat.([]fcomplex.Complex[T])
	if !ok {
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"%s buffer holds %T, kernel runs on %T", name, b.Flat, []fcomplex.Complex[T](nil))
	}
	return flat, nil
}

// JonesMatrices returns the buffer's storage as []fcomplex.Jones[T].
func JonesMatrices[T fcomplex.Float](b *Buffer, name string) ([]fcomplex.Jones[T], error) {
	flat, ok := b.Flat.([]fcomplex.Jones[T])
	if !ok {
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"%s buffer holds %T, kernel runs on %T", name, b.Flat, []fcomplex.Jones[T](nil))
	}
	return flat, nil
}

// CheckLen validates that a buffer holds at least n elements.
func (b *Buffer) CheckLen(name string, n int) error {
	if got := b.Len(); got < n {
		return errors.Wrapf(backends.ErrInvalidArgument,
			"%s buffer holds %d elements, need %d", name, got, n)
	}
	return nil
}

func copyAny(dst, src any) {
	switch d := dst.(type) {
	case []float32:
		copy(d, src.([]float32))
	case []fcomplex.Complex[float32]:
		copy(d, src.([]fcomplex.Complex[float32]))
	case []fcomplex.Jones[float32]:
		copy(d, src.([]fcomplex.Jones[float32]))
	case []float64:
		copy(d, src.([]float64))
	case []fcomplex.Complex[float64]:
		copy(d, src.([]fcomplex.Complex[float64]))
	case []fcomplex.Jones[float64]:
		copy(d, src.([]fcomplex.Jones[float64]))
	}
}

func sameSliceType(a, b any) bool {
	switch a.(type) {
	case []float32:
		_, ok := b.([]float32)
		return ok
	case []fcomplex.Complex[float32]:
		_, ok := b.([]fcomplex.Complex[float32])
		return ok
	case []fcomplex.Jones[float32]:
		_, ok := b.([]fcomplex.Jones[float32])
		return ok
	case []float64:
		_, ok := b.([]float64)
		return ok
	case []fcomplex.Complex[float64]:
		_, ok := b.([]fcomplex.Complex[float64])
		return ok
	case []fcomplex.Jones[float64]:
		_, ok := b.([]fcomplex.Jones[float64])
		return ok
	}
	return false
}

func sliceLen(flat any) int {
	switch f := flat.(type) {
	case []float32:
		return len(f)
	case []fcomplex.Complex[float32]:
		return len(f)
	case []fcomplex.Jones[float32]:
		return len(f)
	case []float64:
		return len(f)
	case []fcomplex.Complex[float64]:
		return len(f)
	case []fcomplex.Jones[float64]:
		return len(f)
	}
	return -1
}
