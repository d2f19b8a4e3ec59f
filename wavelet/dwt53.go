package wavelet

// Forward53 applies one level of the reversible 5/3 integer lifting
// transform to a 1D integer signal, returning the low-pass (lo) and
// high-pass (hi) coefficient arrays. len(lo)+len(hi) == len(x); when
// len(x) is odd, lo carries the extra sample.
//
// The odd-indexed samples are predicted from their even neighbours and
// the even-indexed samples are then updated from the resulting
// high-pass values. Each step extends the array it reads from using a
// self-extension scheme (see boundary.go), so the transform is exactly
// invertible under every Boundary mode, not just whole-sample
// symmetric extension.
func Forward53(x []int64, boundary Boundary) (lo, hi []int64) {
	n := len(x)
	if n <= 1 {
		return append([]int64(nil), x...), nil
	}
	sn := (n + 1) / 2
	dn := n - sn

	e := make([]int64, sn)
	o := make([]int64, dn)
	for k := 0; k < sn; k++ {
		e[k] = x[2*k]
	}
	for k := 0; k < dn; k++ {
		o[k] = x[2*k+1]
	}

	h := make([]int64, dn)
	for k := 0; k < dn; k++ {
		h[k] = o[k] - floorDivInt64(extAt(e, k, boundary)+extAt(e, k+1, boundary), 2)
	}

	l := make([]int64, sn)
	for k := 0; k < sn; k++ {
		l[k] = e[k] + floorDivInt64(extAt(h, k-1, boundary)+extAt(h, k, boundary)+2, 4)
	}

	return l, h
}

// Inverse53 reverses Forward53 exactly, for the same boundary mode
// used in the forward pass.
func Inverse53(lo, hi []int64, boundary Boundary) []int64 {
	sn := len(lo)
	dn := len(hi)
	n := sn + dn
	if dn == 0 {
		return append(make([]int64, 0, sn), lo...)
	}

	e := make([]int64, sn)
	for k := 0; k < sn; k++ {
		e[k] = lo[k] - floorDivInt64(extAt(hi, k-1, boundary)+extAt(hi, k, boundary)+2, 4)
	}

	o := make([]int64, dn)
	for k := 0; k < dn; k++ {
		o[k] = hi[k] + floorDivInt64(extAt(e, k, boundary)+extAt(e, k+1, boundary), 2)
	}

	x := make([]int64, n)
	for k := 0; k < sn; k++ {
		x[2*k] = e[k]
	}
	for k := 0; k < dn; k++ {
		x[2*k+1] = o[k]
	}
	return x
}
