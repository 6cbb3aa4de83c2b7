// Public domain.

package wtheta

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Covariance returns the jack-knife covariance between bins a and b,
//
//	cov(a,b) = (N-1)^2/N^2 * sum_r (w_r(a)-mean(a)) (w_r(b)-mean(b))
//
// over the leave-one-out estimates w_r.  When either bin lacks regions,
// or the two disagree on the region count, only the diagonal is defined
// and equals the bin's Poisson variance; off-diagonal entries are zero.
func (c *Correlation) Covariance(a, b int) float64 {
	ba, bb := &c.bins[a], &c.bins[b]
	if ba.NRegion() <= 0 || ba.NRegion() != bb.NRegion() {
		if a == b {
			return ba.PoissonVariance()
		}
		return 0
	}
	wa := ba.regionEstimates()
	wb := bb.regionEstimates()
	meanA := stat.Mean(wa, nil)
	meanB := stat.Mean(wb, nil)
	var sum float64
	for r := range wa {
		sum += (wa[r] - meanA) * (wb[r] - meanB)
	}
	n := float64(ba.NRegion())
	return (n - 1) * (n - 1) / (n * n) * sum
}

// CovarianceMatrix assembles the full bin-by-bin covariance.
func (c *Correlation) CovarianceMatrix() *mat.SymDense {
	n := len(c.bins)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, c.Covariance(i, j))
		}
	}
	return cov
}
