// Public domain.

package wtheta

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/soniakeys/unit"
	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/wtheta/skypix"
)

// DefaultTreeCapacity is the bucket size of the point indexes built by
// the pair sweeps.
const DefaultTreeCapacity = 200

// Correlation is an ordered set of angular bins spanning a range of
// scales, the split of those bins between the pixel-based and pair-based
// estimators, and the machinery to run both sweeps.  Bins are held in
// strictly increasing theta order; pair bins occupy the low-theta front
// of the sequence and pixel bins the rest, sorted by non-increasing
// resolution.
//
// Distance tests use precomputed sin-squared bounds, so bins are
// meaningful for scales below 90 degrees.
type Correlation struct {
	bins []AngularBin

	thetaMin, thetaMax unit.Angle
	sin2Min, sin2Max   float64

	// half-open index ranges into bins
	pixelBegin, pixelEnd int
	pairBegin, pairEnd   int

	minResolution, maxResolution uint32
	regionResolution             uint32
	nRegion                      int16
	manualBreak                  bool

	log zerolog.Logger
	rnd *xrand.Rand
}

// doubleGE compares with the tolerance used when walking logarithmic bin
// edges, so a left edge equal to thetaMin up to rounding is kept.
func doubleGE(a, b float64) bool { return a >= b-1e-10 }

// New constructs logarithmic binning: starting from the decade below
// thetaMin, edges advance by a factor 10^(1/binsPerDecade), and every bin
// whose left edge lands in [thetaMin, thetaMax) is kept.  Each bin's
// representative theta is the geometric mean of its edges.  Resolutions
// are assigned immediately; all bins start pixel-based.
func New(thetaMin, thetaMax unit.Angle, binsPerDecade float64) *Correlation {
	c := newCorrelation()
	unitD := math.Floor(math.Log10(thetaMin.Deg())) * binsPerDecade
	theta := math.Pow(10, unitD/binsPerDecade)
	for theta < thetaMax.Deg() {
		if doubleGE(theta, thetaMin.Deg()) {
			lo := unit.AngleFromDeg(theta)
			hi := unit.AngleFromDeg(math.Pow(10, (unitD+1)/binsPerDecade))
			mid := unit.AngleFromDeg(math.Pow(10,
				(math.Log10(lo.Deg())+math.Log10(hi.Deg()))/2))
			c.bins = append(c.bins, newAngularBin(lo, hi, mid))
		}
		unitD++
		theta = math.Pow(10, unitD/binsPerDecade)
	}
	c.finish()
	return c
}

// NewLinear constructs n equal-width bins spanning [thetaMin, thetaMax),
// each represented by its midpoint.
func NewLinear(n int, thetaMin, thetaMax unit.Angle) *Correlation {
	c := newCorrelation()
	d := (thetaMax.Deg() - thetaMin.Deg()) / float64(n)
	for i := 0; i < n; i++ {
		lo := unit.AngleFromDeg(thetaMin.Deg() + float64(i)*d)
		hi := unit.AngleFromDeg(thetaMin.Deg() + float64(i+1)*d)
		mid := unit.AngleFromDeg((lo.Deg() + hi.Deg()) / 2)
		c.bins = append(c.bins, newAngularBin(lo, hi, mid))
	}
	c.finish()
	return c
}

func newCorrelation() *Correlation {
	return &Correlation{
		log: zerolog.Nop(),
		rnd: xrand.New(&xrand.PCGSource{}),
	}
}

// finish caches global bounds and performs the initial resolution
// assignment: every bin pixel-based, pair range empty.
func (c *Correlation) finish() {
	if len(c.bins) == 0 {
		return
	}
	c.thetaMin = c.bins[0].ThetaMin()
	c.thetaMax = c.bins[len(c.bins)-1].ThetaMax()
	c.sin2Min = c.bins[0].Sin2ThetaMin()
	c.sin2Max = c.bins[len(c.bins)-1].Sin2ThetaMax()

	c.AssignBinResolutions(skypix.MaxPixelResolution)
	c.pixelBegin, c.pixelEnd = 0, len(c.bins)
	c.pairBegin, c.pairEnd = 0, 0
}

// SetLogger directs engine progress and warnings to the given logger.
func (c *Correlation) SetLogger(log zerolog.Logger) { c.log = log }

// SetRand installs the generator used for random catalogs, for
// reproducible runs.
func (c *Correlation) SetRand(rnd *xrand.Rand) { c.rnd = rnd }

// AssignBinResolutions assigns each bin the coarsest resolution resolving
// its inner edge, clamped to maxResolution, and refreshes the tracked
// minimum and maximum.
func (c *Correlation) AssignBinResolutions(maxResolution uint32) {
	c.minResolution = skypix.MaxPixelResolution
	c.maxResolution = skypix.HPixResolution
	for i := range c.bins {
		c.bins[i].CalculateResolution(maxResolution)
		if r := c.bins[i].Resolution(); r < c.minResolution {
			c.minResolution = r
		}
		if r := c.bins[i].Resolution(); r > c.maxResolution {
			c.maxResolution = r
		}
	}
}

// SetMaxResolution reclassifies every bin whose natural resolution is
// finer than resolution as pair-based; bins exactly at the cap stay
// pixel-based.  With manual set the break survives engine calls,
// otherwise AutoMaxResolution may move it.
func (c *Correlation) SetMaxResolution(resolution uint32, manual bool) {
	c.pairBegin, c.pairEnd = 0, 0
	c.pixelBegin, c.pixelEnd = 0, len(c.bins)

	for i := range c.bins {
		c.bins[i].CalculateResolution(skypix.MaxPixelResolution)
		if c.bins[i].Resolution() > resolution {
			c.bins[i].SetResolution(0)
			c.pixelBegin++
			c.pairEnd++
		}
	}

	c.minResolution, c.maxResolution = skypix.HPixResolution, skypix.HPixResolution
	for i := c.pixelBegin; i < c.pixelEnd; i++ {
		r := c.bins[i].Resolution()
		if i == c.pixelBegin || r > c.maxResolution {
			c.maxResolution = r
		}
		if i == c.pixelBegin || r < c.minResolution {
			c.minResolution = r
		}
	}
	if manual {
		c.manualBreak = true
	}
}

// SetMinResolution raises any pixel bin below resolution up to it,
// matching the resolution the survey was regionated at.
func (c *Correlation) SetMinResolution(resolution uint32) {
	c.minResolution = resolution
	for i := c.pixelBegin; i < c.pixelEnd; i++ {
		if c.bins[i].Resolution() < resolution {
			c.bins[i].SetResolution(resolution)
		}
	}
}

// AutoMaxResolution places the estimator break from the catalog size and
// survey area: large sparse surveys get coarse caps, small dense ones
// fine caps.
func (c *Correlation) AutoMaxResolution(nObj uint32, area float64) {
	max := uint32(2048)
	if area > 500 {
		// large survey limit
		max = 512
		switch {
		case nObj < 500000:
			max = 64
		case nObj < 2000000:
			max = 128
		case nObj < 10000000:
			max = 256
		}
	} else {
		// small survey limit
		switch {
		case nObj < 500000:
			max = 256
		case nObj < 2000000:
			max = 512
		case nObj < 10000000:
			max = 1024
		}
	}
	c.log.Info().Uint32("resolution", max).Uint32("n_obj", nObj).
		Float64("area", area).Msg("wtheta: setting maximum resolution")
	c.SetMaxResolution(max, false)
}

// UseOnlyPixels forces the pixel-based estimator for every bin.
func (c *Correlation) UseOnlyPixels() {
	c.AssignBinResolutions(skypix.MaxPixelResolution)
	c.pixelBegin, c.pixelEnd = 0, len(c.bins)
	c.pairBegin, c.pairEnd = 0, 0
	c.manualBreak = true
}

// UseOnlyPairs forces the pair-based estimator for every bin.
func (c *Correlation) UseOnlyPairs() {
	for i := range c.bins {
		c.bins[i].SetResolution(0)
	}
	c.pixelBegin, c.pixelEnd = len(c.bins), len(c.bins)
	c.pairBegin, c.pairEnd = 0, len(c.bins)
	c.manualBreak = true
}

// InitializeRegions prepares every bin for n-region jack-knife
// accounting, clearing previous region counts.
func (c *Correlation) InitializeRegions(n int16) {
	c.nRegion = n
	for i := range c.bins {
		c.bins[i].InitializeRegions(n)
	}
}

// ClearRegions drops jack-knife state from every bin.
func (c *Correlation) ClearRegions() {
	c.nRegion = 0
	c.regionResolution = 0
	for i := range c.bins {
		c.bins[i].ClearRegions()
	}
}

// NRegion returns the active region count.
func (c *Correlation) NRegion() int16 { return c.nRegion }

// NBins returns the number of angular bins.
func (c *Correlation) NBins() int { return len(c.bins) }

// Bin returns the i'th bin in increasing theta order.
func (c *Correlation) Bin(i int) *AngularBin { return &c.bins[i] }

// MinResolution returns the coarsest resolution among pixel bins.
func (c *Correlation) MinResolution() uint32 { return c.minResolution }

// MaxResolution returns the finest resolution among pixel bins.
func (c *Correlation) MaxResolution() uint32 { return c.maxResolution }

// validPixelResolution reports a power-of-two resolution in tessellation
// range.
func validPixelResolution(r uint32) bool {
	return r >= skypix.HPixResolution && r <= skypix.MaxPixelResolution &&
		r&(r-1) == 0
}

// BinRange returns the half-open index range of bins assigned the given
// resolution: 0 selects the pair range, an invalid resolution selects all
// bins, and a valid pixel resolution selects its sub-range of the pixel
// bins, located by binary search on the non-increasing resolution order.
func (c *Correlation) BinRange(resolution uint32) (lo, hi int) {
	if !validPixelResolution(resolution) {
		if resolution == 0 {
			return c.pairBegin, c.pairEnd
		}
		return 0, len(c.bins)
	}
	n := c.pixelEnd - c.pixelBegin
	lo = c.pixelBegin + sort.Search(n, func(i int) bool {
		return c.bins[c.pixelBegin+i].Resolution() <= resolution
	})
	hi = c.pixelBegin + sort.Search(n, func(i int) bool {
		return c.bins[c.pixelBegin+i].Resolution() < resolution
	})
	return lo, hi
}

// ThetaMin returns the smallest inner edge among bins at the given
// resolution, under BinRange's selection rules.  The second value is
// false for an empty selection.
func (c *Correlation) ThetaMin(resolution uint32) (unit.Angle, bool) {
	lo, hi := c.BinRange(resolution)
	if lo >= hi {
		return 0, false
	}
	return c.bins[lo].ThetaMin(), true
}

// ThetaMax returns the largest outer edge among bins at the given
// resolution.
func (c *Correlation) ThetaMax(resolution uint32) (unit.Angle, bool) {
	lo, hi := c.BinRange(resolution)
	if lo >= hi {
		return 0, false
	}
	return c.bins[hi-1].ThetaMax(), true
}

// Sin2ThetaMin returns sin-squared of ThetaMin(resolution).
func (c *Correlation) Sin2ThetaMin(resolution uint32) (float64, bool) {
	lo, hi := c.BinRange(resolution)
	if lo >= hi {
		return 0, false
	}
	return c.bins[lo].Sin2ThetaMin(), true
}

// Sin2ThetaMax returns sin-squared of ThetaMax(resolution).
func (c *Correlation) Sin2ThetaMax(resolution uint32) (float64, bool) {
	lo, hi := c.BinRange(resolution)
	if lo >= hi {
		return 0, false
	}
	return c.bins[hi-1].Sin2ThetaMax(), true
}

// FindBin locates, within the half-open index range [lo, hi), the bin
// whose sin-squared bounds contain sin2theta.  It returns -1 when the
// value falls outside the range, a pure lookup on the sorted edges.
func (c *Correlation) FindBin(lo, hi int, sin2theta float64) int {
	if lo >= hi {
		return -1
	}
	if sin2theta < c.bins[lo].Sin2ThetaMin() ||
		sin2theta >= c.bins[hi-1].Sin2ThetaMax() {
		return -1
	}
	i := lo + sort.Search(hi-lo, func(i int) bool {
		return sin2theta < c.bins[lo+i].Sin2ThetaMax()
	})
	if i < hi && c.bins[i].WithinSin2Bounds(sin2theta) {
		return i
	}
	return -1
}
