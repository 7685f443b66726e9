package fcomplex

// KahanAdd accumulates val into *sum, tracking the rounding error of each
// step in *guard so that long single-precision sums do not drift. The guard
// must start at zero and stay paired with its sum for the whole accumulation.
func KahanAdd[T Float](sum, guard *T, val T) {
	y := val - *guard
	t := *sum + y
	*guard = (t - *sum) - y
	*sum = t
}

// KahanAddComplex applies KahanAdd to both components of a complex value.
func KahanAddComplex[T Float](sum, guard *Complex[T], val Complex[T]) {
	KahanAdd(&sum.Re, &guard.Re, val.Re)
	KahanAdd(&sum.Im, &guard.Im, val.Im)
}

// KahanAddJones applies KahanAdd to all eight real components of a Jones
// accumulator. When guard is nil the addition is plain, which is the
// double-precision path: its dynamic range does not need compensation.
func KahanAddJones[T Float](sum, guard *Jones[T], val Jones[T]) {
	if guard == nil {
		*sum = sum.Add(val)
		return
	}
	KahanAddComplex(&sum.A, &guard.A, val.A)
	KahanAddComplex(&sum.B, &guard.B, val.B)
	KahanAddComplex(&sum.C, &guard.C, val.C)
	KahanAddComplex(&sum.D, &guard.D, val.D)
}
