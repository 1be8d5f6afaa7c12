package simm

import "math"

// =============================================================================
// 수치 유틸리티 (margin 함수들이 공유)
// =============================================================================

// relative tolerance for margin comparisons; zero only matches zero
const closeEnoughTol = 1e-8

// NormInv 표준정규 분위수 (Beasley-Springer-Moro + Halley refinement)
// 마진 스케일링에 쓰이므로 근사 오차를 한 스텝 더 줄인다
func NormInv(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}

	a := []float64{
		-3.969683028665376e+01,
		2.209460984245205e+02,
		-2.759285104469687e+02,
		1.383577518672690e+02,
		-3.066479806614716e+01,
		2.506628277459239e+00,
	}
	b := []float64{
		-5.447609879822406e+01,
		1.615858368580409e+02,
		-1.556989798598866e+02,
		6.680131188771972e+01,
		-1.328068155288572e+01,
	}
	c := []float64{
		-7.784894002430293e-03,
		-3.223964580411365e-01,
		-2.400758277161838e+00,
		-2.549732539343734e+00,
		4.374664141464968e+00,
		2.938163982698783e+00,
	}
	d := []float64{
		7.784695709041462e-03,
		3.224671290700398e-01,
		2.445134137142996e+00,
		3.754408661907416e+00,
	}

	pLow := 0.02425
	pHigh := 1 - pLow

	var x, q, r float64

	if p < pLow {
		q = math.Sqrt(-2 * math.Log(p))
		x = (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	} else if p <= pHigh {
		q = p - 0.5
		r = q * q
		x = (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	} else {
		q = math.Sqrt(-2 * math.Log(1-p))
		x = -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}

	// Halley step against the erfc-based CDF
	e := NormCDF(x) - p
	u := e * math.Sqrt(2*math.Pi) * math.Exp(x*x/2)
	x = x - u/(1+x*u/2)

	return x
}

// NormCDF 표준정규 누적분포함수
func NormCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// q995 is the 99.5% standard normal quantile behind the curvature lambda
var q995 = NormInv(0.995)

// lambda scales the quadratic part of the curvature margin.
// theta must already be clamped to min(sum/sumAbs, 0).
func lambda(theta float64) float64 {
	return (q995*q995-1.0)*(1.0+theta) - theta
}

// closeEnough compares two margins with relative tolerance. A nonzero
// value is never close to zero, so emptiness checks stay exact.
func closeEnough(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	return diff <= closeEnoughTol*math.Max(math.Abs(a), math.Abs(b))
}

// clamp bounds v to [-limit, limit] with limit >= 0
func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
