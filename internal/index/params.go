package index

import "math"

// OptimalParams picks the (bands, rows) pair with bands*rows <= size that
// minimises the equally weighted false positive and false negative areas of
// the LSH S-curve 1-(1-s^r)^b around threshold.
func OptimalParams(threshold float64, size int) (int, int) {
	const fpWeight, fnWeight = 0.5, 0.5
	bestErr := -1.0
	bestB, bestR := 1, 1
	for b := 1; b <= size; b++ {
		for r := 1; r <= size/b; r++ {
			fp := integrate(func(s float64) float64 { return candidateProbability(s, b, r) }, 0, threshold)
			fn := integrate(func(s float64) float64 { return 1 - candidateProbability(s, b, r) }, threshold, 1)
			e := fp*fpWeight + fn*fnWeight
			if bestErr < 0 || e < bestErr {
				bestErr = e
				bestB, bestR = b, r
			}
		}
	}
	return bestB, bestR
}

// candidateProbability is the chance that two sets with Jaccard similarity
// s share at least one of b bands of r rows.
func candidateProbability(s float64, b, r int) float64 {
	return 1 - math.Pow(1-math.Pow(s, float64(r)), float64(b))
}

// integrate uses composite Simpson's rule.
func integrate(f func(float64) float64, a, b float64) float64 {
	const steps = 64
	if b <= a {
		return 0
	}
	h := (b - a) / steps
	sum := f(a) + f(b)
	for i := 1; i < steps; i++ {
		x := a + float64(i)*h
		if i%2 == 1 {
			sum += 4 * f(x)
		} else {
			sum += 2 * f(x)
		}
	}
	return sum * h / 3
}
