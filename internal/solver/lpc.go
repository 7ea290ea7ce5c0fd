package solver

import (
	"math"

	"github.com/tphakala/speechscope/internal/errors"
)

// AutocorrelationLPC solves the normal equations of the autocorrelation
// method with the Levinson-Durbin recursion.
type AutocorrelationLPC struct{}

// NewAutocorrelationLPC returns the Levinson-Durbin solver.
func NewAutocorrelationLPC() *AutocorrelationLPC { return &AutocorrelationLPC{} }

// Name implements LinearPredictionSolver.
func (AutocorrelationLPC) Name() string { return "autocorrelation" }

// Solve implements LinearPredictionSolver.
func (s AutocorrelationLPC) Solve(frame []float64, order int, rate float64) (LPCResult, error) {
	if err := checkOrder(s.Name(), frame, order, rate); err != nil {
		return LPCResult{}, err
	}

	r := make([]float64, order+1)
	for lag := range r {
		for i := lag; i < len(frame); i++ {
			r[lag] += frame[i] * frame[i-lag]
		}
		r[lag] /= float64(len(frame))
	}
	return levinson(r, order), nil
}

func levinson(r []float64, order int) LPCResult {
	a := make([]float64, order+1)
	a[0] = 1
	if r[0] == 0 {
		return LPCResult{Coefficients: a}
	}

	// -90 dB white noise correction
	r[0] *= 1 + 1e-9

	err := r[0]
	tmp := make([]float64, order+1)
	for i := 1; i <= order; i++ {
		acc := r[i]
		for j := 1; j < i; j++ {
			acc += a[j] * r[i-j]
		}
		k := -acc / err

		copy(tmp, a)
		for j := 1; j < i; j++ {
			a[j] = tmp[j] + k*tmp[i-j]
		}
		a[i] = k
		err *= 1 - k*k
		if err <= 0 {
			break
		}
	}
	return LPCResult{Coefficients: a, Gain: math.Sqrt(math.Max(err, 0))}
}

// BurgLPC estimates reflection coefficients directly from the forward and
// backward prediction errors, which behaves better than the autocorrelation
// method on short frames.
type BurgLPC struct{}

// NewBurgLPC returns the Burg solver.
func NewBurgLPC() *BurgLPC { return &BurgLPC{} }

// Name implements LinearPredictionSolver.
func (BurgLPC) Name() string { return "burg" }

// Solve implements LinearPredictionSolver.
func (s BurgLPC) Solve(frame []float64, order int, rate float64) (LPCResult, error) {
	if err := checkOrder(s.Name(), frame, order, rate); err != nil {
		return LPCResult{}, err
	}

	n := len(frame)
	a := make([]float64, order+1)
	a[0] = 1

	f := make([]float64, n)
	b := make([]float64, n)
	copy(f, frame)
	copy(b, frame)

	e := energy(frame) / float64(n)
	if e == 0 {
		return LPCResult{Coefficients: a}, nil
	}

	tmp := make([]float64, order+1)
	for m := 1; m <= order; m++ {
		var num, den float64
		for i := m; i < n; i++ {
			num += f[i] * b[i-1]
			den += f[i]*f[i] + b[i-1]*b[i-1]
		}
		if den == 0 {
			break
		}
		k := -2 * num / den

		copy(tmp, a)
		for j := 1; j < m; j++ {
			a[j] = tmp[j] + k*tmp[m-j]
		}
		a[m] = k

		for i := n - 1; i >= m; i-- {
			fi := f[i]
			f[i] = fi + k*b[i-1]
			b[i] = b[i-1] + k*fi
		}
		e *= 1 - k*k
	}
	return LPCResult{Coefficients: a, Gain: math.Sqrt(math.Max(e, 0))}, nil
}

func checkOrder(solver string, frame []float64, order int, rate float64) error {
	if err := checkFrame(solver, frame, rate); err != nil {
		return err
	}
	if order < 1 || order >= len(frame) {
		return errors.New(ErrInvalidOrder).
			Context("solver", solver).
			Context("order", order).
			Context("frame_length", len(frame)).
			Build()
	}
	return nil
}

// InverseFilter applies A(z) to x, returning the prediction residual.
func InverseFilter(x, a []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		acc := x[i]
		for k := 1; k < len(a) && k <= i; k++ {
			acc += a[k] * x[i-k]
		}
		out[i] = acc
	}
	return out
}
