package correlate

import "github.com/radioastro/visim/types/fcomplex"

// AccumulateVisibility adds one source's polarized contribution,
//
//	weight · J_p · B(I,Q,U,V) · J_qᴴ,
//
// into the local accumulator sum, where B is the source brightness matrix
//
//	| I+Q   U+iV |
//	| U−iV  I−Q  |
//
// guard, when non-nil, carries Kahan compensation for the accumulator; the
// single-precision instantiation always passes one, the double-precision
// instantiation passes nil.
func AccumulateVisibility[T fcomplex.Float](sum, guard *fcomplex.Jones[T],
	jp, jq *fcomplex.Jones[T], stokesI, stokesQ, stokesU, stokesV, weight T) {
	brightness := fcomplex.Jones[T]{
		A: fcomplex.Complex[T]{Re: stokesI + stokesQ},
		B: fcomplex.Complex[T]{Re: stokesU, Im: stokesV},
		C: fcomplex.Complex[T]{Re: stokesU, Im: -stokesV},
		D: fcomplex.Complex[T]{Re: stokesI - stokesQ},
	}
	vis := jp.Mul(brightness).MulHerm(*jq).Scale(weight)
	fcomplex.KahanAddJones(sum, guard, vis)
}
