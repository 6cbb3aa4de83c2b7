// Public domain.

package wtheta

import (
	"math"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/wtheta/skypix"
)

// AngularBin is one half-open annulus [thetaMin, thetaMax) on the sphere
// together with its accumulators.  Pair-based sweeps fill the weighted
// pair sums GG, GR, RG and RR; pixel-based sweeps fill the running
// numerator and denominator of the pixel estimator.  When regions are
// active, every accumulator has one leave-one-out replica per region:
// replica r excludes every pair touching region r.
type AngularBin struct {
	thetaMin, thetaMax, theta unit.Angle
	sin2Min, sin2Max          float64
	resolution                uint32

	galGal, galRand, randGal, randRand float64
	pixelWtheta, pixelWeight           float64

	// unweighted pair counts backing Poisson errors
	pairCounter, pixelCounter float64

	// scratch filled by tree queries, drained by MoveWeightTo*
	weight, counter float64

	nRegion                                int16
	rGalGal, rGalRand, rRandGal, rRandRand []float64
	rPixelWtheta, rPixelWeight             []float64
	rWeight                                []float64
}

// newAngularBin precomputes the squared-sine bounds and stores the
// representative angle chosen by the binning scheme.
func newAngularBin(thetaMin, thetaMax, theta unit.Angle) AngularBin {
	smin := thetaMin.Sin()
	smax := thetaMax.Sin()
	return AngularBin{
		thetaMin: thetaMin,
		thetaMax: thetaMax,
		theta:    theta,
		sin2Min:  smin * smin,
		sin2Max:  smax * smax,
	}
}

// ThetaMin returns the inner edge of the annulus.
func (b *AngularBin) ThetaMin() unit.Angle { return b.thetaMin }

// ThetaMax returns the outer edge of the annulus.
func (b *AngularBin) ThetaMax() unit.Angle { return b.thetaMax }

// Theta returns the bin's representative angular scale.
func (b *AngularBin) Theta() unit.Angle { return b.theta }

// Sin2ThetaMin returns sin-squared of the inner edge.
func (b *AngularBin) Sin2ThetaMin() float64 { return b.sin2Min }

// Sin2ThetaMax returns sin-squared of the outer edge.
func (b *AngularBin) Sin2ThetaMax() float64 { return b.sin2Max }

// WithinSin2Bounds reports whether a squared-sine separation falls in the
// half-open annulus.
func (b *AngularBin) WithinSin2Bounds(sin2 float64) bool {
	return sin2 >= b.sin2Min && sin2 < b.sin2Max
}

// Resolution returns the pixelization resolution assigned to the bin;
// 0 means the bin is measured with the pair-based estimator.
func (b *AngularBin) Resolution() uint32 { return b.resolution }

// SetResolution overrides the assigned resolution.
func (b *AngularBin) SetResolution(r uint32) { b.resolution = r }

// CalculateResolution assigns the coarsest resolution whose worst case
// pixel diagonal is still smaller than the bin's inner edge, clamped to
// maxResolution, so points in adjacent pixels cannot masquerade as an
// in-bin pair.
func (b *AngularBin) CalculateResolution(maxResolution uint32) {
	if maxResolution > skypix.MaxPixelResolution {
		maxResolution = skypix.MaxPixelResolution
	}
	res := skypix.HPixResolution
	for res < maxResolution && skypix.PixelScale(res) >= b.thetaMin {
		res *= 2
	}
	b.resolution = res
}

// InitializeRegions allocates (or zeroes) the leave-one-out replicas for
// n regions.
func (b *AngularBin) InitializeRegions(n int16) {
	if n <= 0 {
		b.ClearRegions()
		return
	}
	b.nRegion = n
	b.rGalGal = make([]float64, n)
	b.rGalRand = make([]float64, n)
	b.rRandGal = make([]float64, n)
	b.rRandRand = make([]float64, n)
	b.rPixelWtheta = make([]float64, n)
	b.rPixelWeight = make([]float64, n)
	b.rWeight = make([]float64, n)
}

// ClearRegions drops all region replicas.
func (b *AngularBin) ClearRegions() {
	b.nRegion = 0
	b.rGalGal = nil
	b.rGalRand = nil
	b.rRandGal = nil
	b.rRandRand = nil
	b.rPixelWtheta = nil
	b.rPixelWeight = nil
	b.rWeight = nil
}

// NRegion returns the number of active region replicas.
func (b *AngularBin) NRegion() int16 { return b.nRegion }

// AddToPixelWtheta accumulates one pixel pair into the pixel estimator:
// dw into the numerator, dweight into the denominator, mult pairs into
// the counter.
func (b *AngularBin) AddToPixelWtheta(dw, dweight, mult float64) {
	b.pixelWtheta += dw
	b.pixelWeight += dweight
	b.pixelCounter += mult
}

// AddToPixelWthetaRegions is AddToPixelWtheta for a regionated sweep:
// every leave-one-out replica not touching regions ra or rb also
// accumulates the pair.
func (b *AngularBin) AddToPixelWthetaRegions(dw, dweight, mult float64, ra, rb int16) {
	b.AddToPixelWtheta(dw, dweight, mult)
	for r := int16(0); r < b.nRegion; r++ {
		if r != ra && r != rb {
			b.rPixelWtheta[r] += dw
			b.rPixelWeight[r] += dweight
		}
	}
}

// AddToWeight accumulates pair weight from a tree query into the bin's
// scratch sum, with count unweighted pairs.
func (b *AngularBin) AddToWeight(w, count float64) {
	b.weight += w
	b.counter += count
}

// AddToWeightRegions is AddToWeight for a regionated query.
func (b *AngularBin) AddToWeightRegions(w, count float64, ra, rb int16) {
	b.AddToWeight(w, count)
	for r := int16(0); r < b.nRegion; r++ {
		if r != ra && r != rb {
			b.rWeight[r] += w
		}
	}
}

// resetScratch zeroes the tree query scratch sums.
func (b *AngularBin) resetScratch() {
	b.weight = 0
	b.counter = 0
	for i := range b.rWeight {
		b.rWeight[i] = 0
	}
}

// MoveWeightToGalGal drains the query scratch into the galaxy-galaxy
// accumulator.
func (b *AngularBin) MoveWeightToGalGal() {
	b.galGal += b.weight
	b.pairCounter += b.counter
	if b.nRegion > 0 {
		floats.Add(b.rGalGal, b.rWeight)
	}
	b.resetScratch()
}

// MoveWeightToGalRand drains the query scratch into galaxy-random.  With
// symmetric set, the same weight also lands in random-galaxy: in an
// auto-correlation the two counts are identical by symmetry and only one
// query is run.
func (b *AngularBin) MoveWeightToGalRand(symmetric bool) {
	b.galRand += b.weight
	if b.nRegion > 0 {
		floats.Add(b.rGalRand, b.rWeight)
	}
	if symmetric {
		b.randGal += b.weight
		if b.nRegion > 0 {
			floats.Add(b.rRandGal, b.rWeight)
		}
	}
	b.resetScratch()
}

// MoveWeightToRandGal drains the query scratch into random-galaxy.
func (b *AngularBin) MoveWeightToRandGal() {
	b.randGal += b.weight
	if b.nRegion > 0 {
		floats.Add(b.rRandGal, b.rWeight)
	}
	b.resetScratch()
}

// MoveWeightToRandRand drains the query scratch into random-random.
func (b *AngularBin) MoveWeightToRandRand() {
	b.randRand += b.weight
	if b.nRegion > 0 {
		floats.Add(b.rRandRand, b.rWeight)
	}
	b.resetScratch()
}

// ResetGalRand zeroes galaxy-random counts ahead of random iterations.
func (b *AngularBin) ResetGalRand() {
	b.galRand = 0
	for i := range b.rGalRand {
		b.rGalRand[i] = 0
	}
}

// ResetRandGal zeroes random-galaxy counts.
func (b *AngularBin) ResetRandGal() {
	b.randGal = 0
	for i := range b.rRandGal {
		b.rRandGal[i] = 0
	}
}

// ResetRandRand zeroes random-random counts.
func (b *AngularBin) ResetRandRand() {
	b.randRand = 0
	for i := range b.rRandRand {
		b.rRandRand[i] = 0
	}
}

// RescaleGalRand divides galaxy-random counts by k, normalizing over k
// random iterations.
func (b *AngularBin) RescaleGalRand(k float64) {
	b.galRand /= k
	floats.Scale(1/k, b.rGalRand)
}

// RescaleRandGal divides random-galaxy counts by k.
func (b *AngularBin) RescaleRandGal(k float64) {
	b.randGal /= k
	floats.Scale(1/k, b.rRandGal)
}

// RescaleRandRand divides random-random counts by k.
func (b *AngularBin) RescaleRandRand(k float64) {
	b.randRand /= k
	floats.Scale(1/k, b.rRandRand)
}

// GalGal returns the weighted galaxy-galaxy pair sum.
func (b *AngularBin) GalGal() float64 { return b.galGal }

// GalRand returns the weighted galaxy-random pair sum.
func (b *AngularBin) GalRand() float64 { return b.galRand }

// RandGal returns the weighted random-galaxy pair sum.
func (b *AngularBin) RandGal() float64 { return b.randGal }

// RandRand returns the weighted random-random pair sum.
func (b *AngularBin) RandRand() float64 { return b.randRand }

// GalGalRegion returns the galaxy-galaxy sum excluding pairs touching
// region r.
func (b *AngularBin) GalGalRegion(r int16) float64 { return b.rGalGal[r] }

// GalRandRegion returns the galaxy-random sum excluding region r.
func (b *AngularBin) GalRandRegion(r int16) float64 { return b.rGalRand[r] }

// RandGalRegion returns the random-galaxy sum excluding region r.
func (b *AngularBin) RandGalRegion(r int16) float64 { return b.rRandGal[r] }

// RandRandRegion returns the random-random sum excluding region r.
func (b *AngularBin) RandRandRegion(r int16) float64 { return b.rRandRand[r] }

// PixelWthetaRegion returns the pixel estimator numerator excluding
// region r.
func (b *AngularBin) PixelWthetaRegion(r int16) float64 {
	return b.rPixelWtheta[r]
}

// PixelWeightRegion returns the pixel estimator denominator excluding
// region r.
func (b *AngularBin) PixelWeightRegion(r int16) float64 {
	return b.rPixelWeight[r]
}

// PixelWtheta returns the running numerator of the pixel estimator, the
// weighted cross product of overdensities.
func (b *AngularBin) PixelWtheta() float64 { return b.pixelWtheta }

// PixelWeight returns the running denominator of the pixel estimator,
// the weighted product of pixel weights.
func (b *AngularBin) PixelWeight() float64 { return b.pixelWeight }

// Counter returns the unweighted pair count behind the bin's Poisson
// error, whichever estimator filled it.
func (b *AngularBin) Counter() float64 {
	if b.resolution == 0 {
		return b.pairCounter
	}
	return b.pixelCounter
}

// Wtheta returns the bin's correlation estimate.  Pair bins use
// Landy-Szalay, (GG-GR-RG+RR)/RR.  Pixel bins use the overdensity
// convention num/den; sweeps convert fields to overdensity before
// correlating, so no mean subtraction remains.  Degenerate bins report
// NaN rather than dividing silently.
func (b *AngularBin) Wtheta() float64 {
	if b.resolution == 0 {
		if b.randRand == 0 {
			return math.NaN()
		}
		return (b.galGal - b.galRand - b.randGal + b.randRand) / b.randRand
	}
	if b.pixelWeight == 0 {
		return math.NaN()
	}
	return b.pixelWtheta / b.pixelWeight
}

// WthetaRegion returns the leave-one-out estimate excluding region r.
func (b *AngularBin) WthetaRegion(r int16) float64 {
	if r < 0 || r >= b.nRegion {
		return math.NaN()
	}
	if b.resolution == 0 {
		if b.rRandRand[r] == 0 {
			return math.NaN()
		}
		return (b.rGalGal[r] - b.rGalRand[r] - b.rRandGal[r] + b.rRandRand[r]) /
			b.rRandRand[r]
	}
	if b.rPixelWeight[r] == 0 {
		return math.NaN()
	}
	return b.rPixelWtheta[r] / b.rPixelWeight[r]
}

// Degenerate reports a bin whose estimator denominator is empty.
func (b *AngularBin) Degenerate() bool {
	if b.resolution == 0 {
		return b.randRand == 0
	}
	return b.pixelWeight == 0
}

// regionEstimates collects the leave-one-out estimates.
func (b *AngularBin) regionEstimates() []float64 {
	ws := make([]float64, b.nRegion)
	for r := int16(0); r < b.nRegion; r++ {
		ws[r] = b.WthetaRegion(r)
	}
	return ws
}

// MeanWtheta returns the mean of the leave-one-out estimates, or the
// plain estimate when regions are inactive.
func (b *AngularBin) MeanWtheta() float64 {
	if b.nRegion <= 0 {
		return b.Wtheta()
	}
	return stat.Mean(b.regionEstimates(), nil)
}

// MeanWthetaError returns the jack-knife error on MeanWtheta,
// sqrt((N-1)^2/N^2 * sum (w_r - mean)^2).
func (b *AngularBin) MeanWthetaError() float64 {
	if b.nRegion <= 0 {
		return math.NaN()
	}
	ws := b.regionEstimates()
	mean := stat.Mean(ws, nil)
	var ss float64
	for _, w := range ws {
		d := w - mean
		ss += d * d
	}
	n := float64(b.nRegion)
	return math.Sqrt((n - 1) * (n - 1) / (n * n) * ss)
}

// PoissonVariance returns the shot noise variance (1+w)^2/npairs, the
// diagonal covariance fallback when jack-knife errors are unavailable.
func (b *AngularBin) PoissonVariance() float64 {
	n := b.Counter()
	if n <= 0 {
		return math.NaN()
	}
	w := b.Wtheta()
	return (1 + w) * (1 + w) / n
}

// WthetaError returns the square root of the Poisson variance.
func (b *AngularBin) WthetaError() float64 {
	return math.Sqrt(b.PoissonVariance())
}

// Reset returns the bin to its freshly constructed state, keeping bounds,
// resolution and region layout.
func (b *AngularBin) Reset() {
	b.galGal = 0
	b.galRand = 0
	b.randGal = 0
	b.randRand = 0
	b.pixelWtheta = 0
	b.pixelWeight = 0
	b.pairCounter = 0
	b.pixelCounter = 0
	b.resetScratch()
	for _, s := range [][]float64{
		b.rGalGal, b.rGalRand, b.rRandGal, b.rRandRand,
		b.rPixelWtheta, b.rPixelWeight,
	} {
		for i := range s {
			s[i] = 0
		}
	}
}
