package metrics

import (
	"math"
)

const (
	irrMaxIter = 100
	irrTol     = 1e-12
)

// IRR returns the per-period internal rate of return of equally spaced
// cashflows (cashflows[0] at t=0). It runs Newton-Raphson on the NPV and
// falls back to bisection over a sign bracket when Newton does not converge.
// It returns NaN when the cashflows never change sign (no root exists) or no
// bracket can be found.
func IRR(cashflows []float64) float64 {
	if !signChanges(cashflows) {
		return math.NaN()
	}
	if r := newtonIRR(cashflows); !math.IsNaN(r) {
		return r
	}
	return bisectIRR(cashflows)
}

func newtonIRR(cashflows []float64) float64 {
	r := 0.0
	for iter := 0; iter < irrMaxIter; iter++ {
		npv, dnpv := npvAndDerivative(cashflows, r)
		if math.IsNaN(npv) || math.IsInf(npv, 0) || dnpv == 0 || math.IsNaN(dnpv) {
			return math.NaN()
		}
		next := r - npv/dnpv
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return math.NaN()
		}
		if next <= -1 {
			// Step halfway towards the pole instead of crossing it.
			next = (r - 1) / 2
		}
		if math.Abs(next-r) < irrTol {
			return next
		}
		r = next
	}
	return math.NaN()
}

// IRRAnnualized adds terminalValue to the last cashflow, solves the
// per-period IRR, and annualises it as (1+r)^periodsPerYear-1. The input
// slice is not modified.
func IRRAnnualized(cashflows []float64, terminalValue float64, periodsPerYear int) float64 {
	if len(cashflows) == 0 {
		return math.NaN()
	}
	cf := append([]float64(nil), cashflows...)
	cf[len(cf)-1] += terminalValue
	r := IRR(cf)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN()
	}
	out := math.Pow(1.0+r, float64(periodsPerYear)) - 1.0
	if math.IsInf(out, 0) {
		return math.NaN()
	}
	return out
}

// npvAndDerivative evaluates NPV(r) = Σ cf_t (1+r)^-t and its derivative.
func npvAndDerivative(cf []float64, r float64) (float64, float64) {
	v := 1.0 / (1.0 + r)
	disc := 1.0
	var npv, d float64
	for t, c := range cf {
		npv += c * disc
		// d/dr (1+r)^-t = -t (1+r)^-(t+1)
		d -= float64(t) * c * disc * v
		disc *= v
	}
	return npv, d
}

// bisectIRR brackets a root by walking from r=0 towards -1 and then towards
// large positive rates, and bisects the first bracket found.
func bisectIRR(cf []float64) float64 {
	f0 := scaledNPV(cf, 0)
	if f0 == 0 {
		return 0
	}

	lo, hi, ok := 0.0, 0.0, false
	prev := 0.0
	for k := 1; k <= 60 && !ok; k++ {
		r := -1 + math.Pow(0.5, float64(k))
		if f := scaledNPV(cf, r); f != 0 && math.Signbit(f) != math.Signbit(f0) {
			lo, hi, ok = r, prev, true
		} else if f == 0 {
			return r
		}
		prev = r
	}
	prev = 0
	for r := 1.0; r <= 1<<20 && !ok; r *= 2 {
		if f := scaledNPV(cf, r); f != 0 && math.Signbit(f) != math.Signbit(f0) {
			lo, hi, ok = prev, r, true
		} else if f == 0 {
			return r
		}
		prev = r
	}
	if !ok {
		return math.NaN()
	}

	flo := scaledNPV(cf, lo)
	for iter := 0; iter < 200 && hi-lo > irrTol; iter++ {
		mid := lo + (hi-lo)/2
		fm := scaledNPV(cf, mid)
		if fm == 0 {
			return mid
		}
		if math.Signbit(fm) == math.Signbit(flo) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}
	return lo + (hi-lo)/2
}

// scaledNPV has the sign of NPV(r) for r > -1 and stays finite over long
// series. Negative rates are evaluated as the future value at the last period,
// non-negative rates as the present value.
func scaledNPV(cf []float64, r float64) float64 {
	if r >= 0 {
		npv, _ := npvAndDerivative(cf, r)
		return npv
	}
	g := 1.0 + r
	var fv float64
	for _, c := range cf {
		fv = fv*g + c
	}
	return fv
}

func signChanges(cf []float64) bool {
	var pos, neg bool
	for _, c := range cf {
		switch {
		case c > 0:
			pos = true
		case c < 0:
			neg = true
		}
	}
	return pos && neg
}
