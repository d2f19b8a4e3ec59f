package wavelet

// CDF 9/7 lifting coefficients, as used by the irreversible kernel
// and by the JPEG 2000 Part 1 Annex F irreversible transform.
const (
	alpha97 = -1.586134342059924
	beta97  = -0.052980118572961
	gamma97 = 0.882911075530934
	delta97 = 0.443506852043971
	k97     = 1.230174104914001
)

// Forward97 applies one level of the irreversible 9/7 floating-point
// lifting transform, via four predict/update steps each extending the
// array it reads from (see boundary.go), so inversion is exact for
// any Boundary mode up to floating-point rounding.
func Forward97(x []float64, boundary Boundary) (lo, hi []float64) {
	n := len(x)
	if n <= 1 {
		return append([]float64(nil), x...), nil
	}
	sn := (n + 1) / 2
	dn := n - sn

	e := make([]float64, sn)
	o := make([]float64, dn)
	for k := 0; k < sn; k++ {
		e[k] = x[2*k]
	}
	for k := 0; k < dn; k++ {
		o[k] = x[2*k+1]
	}

	// Step A: predict1, modifies o from e.
	for k := 0; k < dn; k++ {
		o[k] += alpha97 * (extAt(e, k, boundary) + extAt(e, k+1, boundary))
	}
	// Step B: update1, modifies e from o.
	for k := 0; k < sn; k++ {
		e[k] += beta97 * (extAt(o, k-1, boundary) + extAt(o, k, boundary))
	}
	// Step C: predict2, modifies o from e.
	for k := 0; k < dn; k++ {
		o[k] += gamma97 * (extAt(e, k, boundary) + extAt(e, k+1, boundary))
	}
	// Step D: update2, modifies e from o.
	for k := 0; k < sn; k++ {
		e[k] += delta97 * (extAt(o, k-1, boundary) + extAt(o, k, boundary))
	}

	lo = make([]float64, sn)
	hi = make([]float64, dn)
	for k := 0; k < sn; k++ {
		lo[k] = e[k] * k97
	}
	for k := 0; k < dn; k++ {
		hi[k] = o[k] / k97
	}
	return lo, hi
}

// Inverse97 reverses Forward97 by undoing the scale and the four
// lifting steps in reverse order.
func Inverse97(lo, hi []float64, boundary Boundary) []float64 {
	sn := len(lo)
	dn := len(hi)
	n := sn + dn
	if dn == 0 {
		return append([]float64(nil), lo...)
	}

	e := make([]float64, sn)
	o := make([]float64, dn)
	for k := 0; k < sn; k++ {
		e[k] = lo[k] / k97
	}
	for k := 0; k < dn; k++ {
		o[k] = hi[k] * k97
	}

	for k := 0; k < sn; k++ {
		e[k] -= delta97 * (extAt(o, k-1, boundary) + extAt(o, k, boundary))
	}
	for k := 0; k < dn; k++ {
		o[k] -= gamma97 * (extAt(e, k, boundary) + extAt(e, k+1, boundary))
	}
	for k := 0; k < sn; k++ {
		e[k] -= beta97 * (extAt(o, k-1, boundary) + extAt(o, k, boundary))
	}
	for k := 0; k < dn; k++ {
		o[k] -= alpha97 * (extAt(e, k, boundary) + extAt(e, k+1, boundary))
	}

	x := make([]float64, n)
	for k := 0; k < sn; k++ {
		x[2*k] = e[k]
	}
	for k := 0; k < dn; k++ {
		x[2*k+1] = o[k]
	}
	return x
}
