// Package fcomplex provides the width-parameterized complex arithmetic used
// by the correlation kernels.
//
// Every type is generic over Float so that the single- and double-precision
// code paths are the same algorithm instantiated twice. The two
// instantiations are deliberately not merged at runtime: single precision
// carries a compensated-summation guard (see KahanAdd) that double precision
// does not need.
package fcomplex

import "golang.org/x/exp/constraints"

// Float constrains the two floating-point widths the engine supports.
type Float interface {
	constraints.Float
}

// Complex is a complex scalar of width T.
type Complex[T Float] struct {
	Re, Im T
}

// Add returns c + o.
func (c Complex[T]) Add(o Complex[T]) Complex[T] {
	return Complex[T]{Re: c.Re + o.Re, Im: c.Im + o.Im}
}

// Sub returns c - o.
func (c Complex[T]) Sub(o Complex[T]) Complex[T] {
	return Complex[T]{Re: c.Re - o.Re, Im: c.Im - o.Im}
}

// Mul returns c * o.
func (c Complex[T]) Mul(o Complex[T]) Complex[T] {
	return Complex[T]{
		Re: c.Re*o.Re - c.Im*o.Im,
		Im: c.Re*o.Im + c.Im*o.Re,
	}
}

// MulConj returns c * conj(o), the elementary correlation product.
func (c Complex[T]) MulConj(o Complex[T]) Complex[T] {
	return Complex[T]{
		Re: c.Re*o.Re + c.Im*o.Im,
		Im: c.Im*o.Re - c.Re*o.Im,
	}
}

// Conj returns the complex conjugate of c.
func (c Complex[T]) Conj() Complex[T] {
	return Complex[T]{Re: c.Re, Im: -c.Im}
}

// Scale returns c scaled by the real factor s.
func (c Complex[T]) Scale(s T) Complex[T] {
	return Complex[T]{Re: c.Re * s, Im: c.Im * s}
}

// AbsSq returns |c|², avoiding the square root of Abs.
func (c Complex[T]) AbsSq() T {
	return c.Re*c.Re + c.Im*c.Im
}
