package correlate

import "github.com/radioastro/visim/types/fcomplex"

// CrossPower returns the pairwise cross-correlation sum of one source's
// scalar station responses,
//
//	Σ_{p<q} jones[p]·conj(jones[q]),
//
// where jones is laid out [station][source] with numSources columns and the
// source column is fixed at src. Per-station partial sums are accumulated
// separately before joining the total, which keeps the partials small and
// preserves precision over many stations.
//
// The caller normalizes by 2/(N·(N−1)) to turn the sum into the average
// cross-power beam value.
func CrossPower[T fcomplex.Float](jones []fcomplex.Complex[T], numSources, src, numStations int) fcomplex.Complex[T] {
	var total fcomplex.Complex[T]
	for p := 0; p < numStations; p++ {
		jp := jones[p*numSources+src]
		var partial fcomplex.Complex[T]
		for q := p + 1; q < numStations; q++ {
			partial = partial.Add(jp.MulConj(jones[q*numSources+src]))
		}
		total = total.Add(partial)
	}
	return total
}
