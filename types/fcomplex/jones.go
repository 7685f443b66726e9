package fcomplex

// Jones is a 2×2 complex matrix describing one station's polarized response
// to one source, stored row-major:
//
//	| A B |
//	| C D |
//
// The same layout doubles as the per-baseline visibility accumulator.
type Jones[T Float] struct {
	A, B, C, D Complex[T]
}

// JonesIdentity returns the identity response.
func JonesIdentity[T Float]() Jones[T] {
	return Jones[T]{A: Complex[T]{Re: 1}, D: Complex[T]{Re: 1}}
}

// Add returns j + o, element-wise.
func (j Jones[T]) Add(o Jones[T]) Jones[T] {
	return Jones[T]{
		A: j.A.Add(o.A),
		B: j.B.Add(o.B),
		C: j.C.Add(o.C),
		D: j.D.Add(o.D),
	}
}

// Scale returns j scaled by the real factor s.
func (j Jones[T]) Scale(s T) Jones[T] {
	return Jones[T]{A: j.A.Scale(s), B: j.B.Scale(s), C: j.C.Scale(s), D: j.D.Scale(s)}
}

// ScaleComplex returns j with every element multiplied by the complex
// scalar s. Used to join a scalar phase (K) term onto a full Jones matrix.
func (j Jones[T]) ScaleComplex(s Complex[T]) Jones[T] {
	return Jones[T]{A: j.A.Mul(s), B: j.B.Mul(s), C: j.C.Mul(s), D: j.D.Mul(s)}
}

// Mul returns the matrix product j · o.
func (j Jones[T]) Mul(o Jones[T]) Jones[T] {
	return Jones[T]{
		A: j.A.Mul(o.A).Add(j.B.Mul(o.C)),
		B: j.A.Mul(o.B).Add(j.B.Mul(o.D)),
		C: j.C.Mul(o.A).Add(j.D.Mul(o.C)),
		D: j.C.Mul(o.B).Add(j.D.Mul(o.D)),
	}
}

// MulHerm returns j · oᴴ (o conjugate-transposed), the right-hand step of a
// true correlation J_p · B · J_qᴴ.
func (j Jones[T]) MulHerm(o Jones[T]) Jones[T] {
	return Jones[T]{
		A: j.A.MulConj(o.A).Add(j.B.MulConj(o.B)),
		B: j.A.MulConj(o.C).Add(j.B.MulConj(o.D)),
		C: j.C.MulConj(o.A).Add(j.D.MulConj(o.B)),
		D: j.C.MulConj(o.C).Add(j.D.MulConj(o.D)),
	}
}
