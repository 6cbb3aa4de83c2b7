// Public domain.

package wtheta

import (
	"fmt"
	"sort"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"

	"github.com/soniakeys/wtheta/skypix"
)

// FieldKind classifies what a ScalarMap's intensities mean.
type FieldKind int

const (
	// ScalarField holds a pure field value per pixel (CMB temperature,
	// flux); re-insertion overwrites.
	ScalarField FieldKind = iota

	// DensityField accumulates point weights: projected object density.
	DensityField

	// SampledField accumulates per-point values of a field sampled at
	// point positions.
	SampledField
)

// DefaultMinUnmaskedFraction is the smallest coverage fraction a sampled
// pixel may have and still enter a map.
const DefaultMinUnmaskedFraction = 1e-7

// ScalarPixel is one cell of a ScalarMap: the sampled intensity, the
// number of points that landed in it, its correlating weight and its
// unmasked coverage fraction.
type ScalarPixel struct {
	Pixel     skypix.Pixel
	Center    coord.Cart
	Intensity float64
	NPoints   int
	Weight    float64
	Frac      float64
}

// ScalarMapOptions tune map construction.
type ScalarMapOptions struct {
	// MinUnmaskedFraction overrides DefaultMinUnmaskedFraction when
	// positive.
	MinUnmaskedFraction float64

	// UseMapWeightAsIntensity seeds each pixel's intensity from the
	// footprint weight; forces ScalarField.
	UseMapWeightAsIntensity bool

	// UseMapWeightAsWeight seeds each pixel's correlating weight from
	// the footprint weight instead of the coverage fraction.
	UseMapWeightAsWeight bool
}

// ScalarMap is a uniform-resolution sampling of a scalar field over a
// footprint, the structure the pixel-based estimator correlates.  All
// pixels share one resolution; coarser views are built with NewSubMap.
type ScalarMap struct {
	pix        []ScalarPixel // sorted by pixel key
	kind       FieldKind
	resolution uint32
	minFrac    float64

	area           float64
	totalIntensity float64 // raw total, invariant under conversion
	totalPoints    int

	meanIntensity float64
	meanCached    bool
	overDensity   bool

	useLocalMean bool
	localMean    []float64

	nRegion   int16
	regionRes uint32
	region    []int16 // per pixel, parallel to pix
	regionMap map[skypix.Pixel]int16
}

// NewScalarMap samples the footprint at the given resolution with default
// options: zero initial intensity, weight equal to coverage.
func NewScalarMap(fp Footprint, resolution uint32, kind FieldKind) *ScalarMap {
	return NewScalarMapWithOptions(fp, resolution, kind, ScalarMapOptions{})
}

// NewScalarMapWithOptions samples the footprint at the given resolution.
// Every pixel intersecting the footprint with coverage at or above the
// minimum fraction enters the map.
func NewScalarMapWithOptions(fp Footprint, resolution uint32, kind FieldKind,
	opt ScalarMapOptions) *ScalarMap {

	if opt.UseMapWeightAsIntensity {
		kind = ScalarField
	}
	m := &ScalarMap{
		kind:       kind,
		resolution: resolution,
		minFrac:    opt.MinUnmaskedFraction,
	}
	if m.minFrac <= 0 {
		m.minFrac = DefaultMinUnmaskedFraction
	}
	fp.PixelIterator(resolution, func(p skypix.Pixel, frac, weight float64) {
		if frac < m.minFrac {
			return
		}
		sp := ScalarPixel{
			Pixel:  p,
			Center: p.Center(),
			Weight: frac,
			Frac:   frac,
		}
		if opt.UseMapWeightAsIntensity {
			sp.Intensity = weight
		}
		if opt.UseMapWeightAsWeight {
			sp.Weight = weight
		}
		m.pix = append(m.pix, sp)
	})
	sort.Slice(m.pix, func(i, j int) bool {
		return m.pix[i].Pixel.Key() < m.pix[j].Pixel.Key()
	})
	for i := range m.pix {
		m.area += m.pix[i].Frac * skypix.PixelArea(resolution)
		m.totalIntensity += m.pix[i].Intensity
	}
	return m
}

// NewSubMap aggregates a map to the coarser resolution.  Aggregation
// always combines raw intensities: an overdensity source is read back
// through its cached means, combined, and the result re-converted, so
// downsampling commutes with the overdensity transform.
func NewSubMap(src *ScalarMap, resolution uint32) (*ScalarMap, error) {
	if resolution >= src.resolution || resolution < skypix.HPixResolution {
		return nil, fmt.Errorf("%w: submap at %d from %d",
			ErrResolutionMismatch, resolution, src.resolution)
	}
	m := &ScalarMap{
		kind:       src.kind,
		resolution: resolution,
		minFrac:    src.minFrac,
	}

	type agg struct {
		intensity, wsum, area float64
		npoints               int
		weight                float64 // scalar: sum of child weights
	}
	acc := make(map[skypix.Pixel]*agg)
	order := []skypix.Pixel{}
	for i := range src.pix {
		sp := &src.pix[i]
		pp := sp.Pixel.ParentAt(resolution)
		g := acc[pp]
		if g == nil {
			g = &agg{}
			acc[pp] = g
			order = append(order, pp)
		}
		a := sp.Frac * skypix.PixelArea(src.resolution)
		raw := sp.Intensity
		if src.overDensity {
			e := src.expected(i)
			raw = e * (raw + 1)
		}
		switch src.kind {
		case ScalarField:
			g.intensity += raw * a
			g.weight += sp.Weight
		default:
			g.intensity += raw
		}
		g.wsum++
		g.area += a
		g.npoints += sp.NPoints
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].Key() < order[j].Key()
	})

	coarseArea := skypix.PixelArea(resolution)
	for _, pp := range order {
		g := acc[pp]
		frac := g.area / coarseArea
		if frac < m.minFrac {
			continue
		}
		sp := ScalarPixel{
			Pixel:   pp,
			Center:  pp.Center(),
			NPoints: g.npoints,
			Frac:    frac,
		}
		switch src.kind {
		case ScalarField:
			sp.Intensity = g.intensity / g.area
			sp.Weight = g.weight / g.wsum
		default:
			sp.Intensity = g.intensity
			sp.Weight = frac
		}
		m.pix = append(m.pix, sp)
		m.area += g.area
		m.totalIntensity += sp.Intensity
		m.totalPoints += g.npoints
	}

	if src.overDensity {
		m.ConvertToOverDensity()
	}
	return m, nil
}

// Resolution returns the common resolution of the map's pixels.
func (m *ScalarMap) Resolution() uint32 { return m.resolution }

// Kind returns the field classification.
func (m *ScalarMap) Kind() FieldKind { return m.kind }

// Area returns the unmasked area sampled, in square degrees.
func (m *ScalarMap) Area() float64 { return m.area }

// Size returns the number of sampled pixels.
func (m *ScalarMap) Size() int { return len(m.pix) }

// Pixels exposes the sampled pixels, sorted by pixel key.  Callers must
// not reorder the slice.
func (m *ScalarMap) Pixels() []ScalarPixel { return m.pix }

// Intensity returns the raw total intensity, invariant under overdensity
// conversion.  Density and sampled maps also keep it through NewSubMap;
// a scalar submap totals its area-weighted pixel means instead.
func (m *ScalarMap) Intensity() float64 { return m.totalIntensity }

// NPoints returns the number of points added to the map.
func (m *ScalarMap) NPoints() int { return m.totalPoints }

// Density returns the raw total intensity per unmasked area.
func (m *ScalarMap) Density() float64 { return m.totalIntensity / m.area }

// PointDensity returns points per unmasked area.
func (m *ScalarMap) PointDensity() float64 {
	return float64(m.totalPoints) / m.area
}

// IsOverDensity reports whether intensities currently hold fractional
// overdensities.
func (m *ScalarMap) IsOverDensity() bool { return m.overDensity }

// find returns the index of the map pixel containing c, or -1.
func (m *ScalarMap) find(c *coord.Cart) int {
	px := skypix.PixelFromCart(c, m.resolution)
	k := px.Key()
	i := sort.Search(len(m.pix), func(i int) bool {
		return m.pix[i].Pixel.Key() >= k
	})
	if i < len(m.pix) && m.pix[i].Pixel == px {
		return i
	}
	return -1
}

// Add records a point in the pixel containing it and reports whether such
// a pixel exists.  ScalarField overwrites the intensity with the point
// weight; DensityField and SampledField accumulate it.  Points cannot be
// added to a map already converted to overdensity.
func (m *ScalarMap) Add(p skypix.Point) bool {
	if m.overDensity {
		return false
	}
	i := m.find(&p.Cart)
	if i < 0 {
		return false
	}
	sp := &m.pix[i]
	switch m.kind {
	case ScalarField:
		m.totalIntensity += p.Weight - sp.Intensity
		sp.Intensity = p.Weight
	default:
		sp.Intensity += p.Weight
		m.totalIntensity += p.Weight
	}
	sp.NPoints++
	m.totalPoints++
	m.meanCached = false
	return true
}

// CalculateMeanIntensity caches the mean intensity per unmasked area,
// and the per-region local means when local-mean mode is active.
func (m *ScalarMap) CalculateMeanIntensity() {
	m.meanIntensity = m.totalIntensity / m.area
	if m.useLocalMean && m.nRegion > 0 {
		num := make([]float64, m.nRegion)
		den := make([]float64, m.nRegion)
		for i := range m.pix {
			r := m.region[i]
			if r < 0 {
				continue
			}
			num[r] += m.pix[i].Intensity
			den[r] += m.pix[i].Frac * skypix.PixelArea(m.resolution)
		}
		m.localMean = make([]float64, m.nRegion)
		for r := range m.localMean {
			if den[r] > 0 {
				m.localMean[r] = num[r] / den[r]
			}
		}
	}
	m.meanCached = true
}

// MeanIntensity returns the (cached) mean intensity per unmasked area.
func (m *ScalarMap) MeanIntensity() float64 {
	if !m.meanCached {
		m.CalculateMeanIntensity()
	}
	return m.meanIntensity
}

// expected returns the intensity pixel i would carry in a uniform field:
// the applicable mean times the pixel's effective area.
func (m *ScalarMap) expected(i int) float64 {
	mu := m.meanIntensity
	if m.useLocalMean && m.nRegion > 0 {
		if r := m.region[i]; r >= 0 {
			mu = m.localMean[r]
		}
	}
	return mu * m.pix[i].Frac * skypix.PixelArea(m.resolution)
}

// ConvertToOverDensity replaces each intensity I with (I-e)/e, e the
// expected intensity for the pixel, producing a zero-mean field.
// Idempotent: converting an overdensity map is a no-op.
func (m *ScalarMap) ConvertToOverDensity() {
	if m.overDensity {
		return
	}
	if !m.meanCached {
		m.CalculateMeanIntensity()
	}
	for i := range m.pix {
		if e := m.expected(i); e > 0 {
			m.pix[i].Intensity = (m.pix[i].Intensity - e) / e
		} else {
			m.pix[i].Intensity = 0
		}
	}
	m.overDensity = true
}

// ConvertFromOverDensity restores raw intensities through the cached
// means; a no-op on a raw map.
func (m *ScalarMap) ConvertFromOverDensity() {
	if !m.overDensity {
		return
	}
	for i := range m.pix {
		m.pix[i].Intensity = m.expected(i) * (m.pix[i].Intensity + 1)
	}
	m.overDensity = false
}

// UseLocalMeanIntensity switches overdensity conversion between the
// global mean and per-region means.  Requires regionation; without it
// the map is left unchanged and ErrNoRegions returned.
func (m *ScalarMap) UseLocalMeanIntensity(use bool) error {
	if use && m.nRegion <= 0 {
		return ErrNoRegions
	}
	if m.useLocalMean == use {
		return nil
	}
	if m.overDensity {
		// re-express through the means about to be replaced
		m.ConvertFromOverDensity()
		m.useLocalMean = use
		m.meanCached = false
		m.ConvertToOverDensity()
		return nil
	}
	m.useLocalMean = use
	m.meanCached = false
	return nil
}

// UsingLocalMeanIntensity reports local-mean mode.
func (m *ScalarMap) UsingLocalMeanIntensity() bool { return m.useLocalMean }

// InitializeRegions copies regionation onto the map.  The source's
// region resolution must not be finer than the map's.
func (m *ScalarMap) InitializeRegions(src RegionSource) error {
	n := src.NRegion()
	if n <= 0 {
		return ErrNoRegions
	}
	rr := src.RegionResolution()
	if rr > m.resolution {
		return fmt.Errorf("%w: regions at %d, map at %d",
			ErrRegionResolution, rr, m.resolution)
	}
	m.nRegion = n
	m.regionRes = rr
	m.regionMap = make(map[skypix.Pixel]int16)
	src.EachRegionPixel(func(p skypix.Pixel, region int16) {
		m.regionMap[p] = region
	})
	m.region = make([]int16, len(m.pix))
	for i := range m.pix {
		r, ok := m.regionMap[m.pix[i].Pixel.ParentAt(rr)]
		if !ok {
			r = -1
		}
		m.region[i] = r
	}
	if m.useLocalMean {
		m.meanCached = false
	}
	return nil
}

// NRegion returns the copied region count, 0 when unregionated.
func (m *ScalarMap) NRegion() int16 { return m.nRegion }

// RegionResolution returns the resolution region labels live at.
func (m *ScalarMap) RegionResolution() uint32 { return m.regionRes }

// EachRegionPixel visits the copied regionation, making the map a
// RegionSource for coarser views.
func (m *ScalarMap) EachRegionPixel(fn func(p skypix.Pixel, region int16)) {
	for p, r := range m.regionMap {
		fn(p, r)
	}
}

// AutoCorrelate accumulates the map's contribution to one pixel bin: over
// pixel pairs whose separation falls in the bin, the weighted product of
// overdensities into the numerator and of weights into the denominator.
// Distinct pairs count twice, self pairs once.  The map is converted to
// overdensity on entry if needed.
func (m *ScalarMap) AutoCorrelate(bin *AngularBin) error {
	if bin.Resolution() != m.resolution {
		return fmt.Errorf("%w: bin at %d, map at %d",
			ErrResolutionMismatch, bin.Resolution(), m.resolution)
	}
	m.ConvertToOverDensity()
	for i := range m.pix {
		pi := &m.pix[i]
		for j := i; j < len(m.pix); j++ {
			pj := &m.pix[j]
			s := skypix.SinSqSeparation(&pi.Center, &pj.Center)
			if !bin.WithinSin2Bounds(s) {
				continue
			}
			mult := 2.0
			if i == j {
				mult = 1
			}
			w := pi.Weight * pj.Weight
			bin.AddToPixelWtheta(mult*w*pi.Intensity*pj.Intensity, mult*w, mult)
		}
	}
	return nil
}

// AutoCorrelateWithRegions is AutoCorrelate maintaining the bin's
// leave-one-out replicas.
func (m *ScalarMap) AutoCorrelateWithRegions(bin *AngularBin) error {
	if bin.Resolution() != m.resolution {
		return fmt.Errorf("%w: bin at %d, map at %d",
			ErrResolutionMismatch, bin.Resolution(), m.resolution)
	}
	if m.nRegion <= 0 {
		return ErrNoRegions
	}
	if bin.NRegion() != m.nRegion {
		return ErrRegionMismatch
	}
	m.ConvertToOverDensity()
	for i := range m.pix {
		pi := &m.pix[i]
		for j := i; j < len(m.pix); j++ {
			pj := &m.pix[j]
			s := skypix.SinSqSeparation(&pi.Center, &pj.Center)
			if !bin.WithinSin2Bounds(s) {
				continue
			}
			mult := 2.0
			if i == j {
				mult = 1
			}
			w := pi.Weight * pj.Weight
			bin.AddToPixelWthetaRegions(mult*w*pi.Intensity*pj.Intensity,
				mult*w, mult, m.region[i], m.region[j])
		}
	}
	return nil
}

// CrossCorrelate accumulates pair products between this map and another
// of the same resolution into a pixel bin.  Both maps are converted to
// overdensity on entry.
func (m *ScalarMap) CrossCorrelate(other *ScalarMap, bin *AngularBin) error {
	if other.resolution != m.resolution {
		return fmt.Errorf("%w: maps at %d and %d",
			ErrResolutionMismatch, m.resolution, other.resolution)
	}
	if bin.Resolution() != m.resolution {
		return fmt.Errorf("%w: bin at %d, maps at %d",
			ErrResolutionMismatch, bin.Resolution(), m.resolution)
	}
	m.ConvertToOverDensity()
	other.ConvertToOverDensity()
	for i := range m.pix {
		pi := &m.pix[i]
		for j := range other.pix {
			pj := &other.pix[j]
			s := skypix.SinSqSeparation(&pi.Center, &pj.Center)
			if !bin.WithinSin2Bounds(s) {
				continue
			}
			w := pi.Weight * pj.Weight
			bin.AddToPixelWtheta(w*pi.Intensity*pj.Intensity, w, 1)
		}
	}
	return nil
}

// CrossCorrelateWithRegions is CrossCorrelate maintaining the bin's
// leave-one-out replicas.  Both maps must carry the same regionation.
func (m *ScalarMap) CrossCorrelateWithRegions(other *ScalarMap,
	bin *AngularBin) error {

	if other.resolution != m.resolution {
		return fmt.Errorf("%w: maps at %d and %d",
			ErrResolutionMismatch, m.resolution, other.resolution)
	}
	if bin.Resolution() != m.resolution {
		return fmt.Errorf("%w: bin at %d, maps at %d",
			ErrResolutionMismatch, bin.Resolution(), m.resolution)
	}
	if m.nRegion <= 0 || other.nRegion <= 0 {
		return ErrNoRegions
	}
	if bin.NRegion() != m.nRegion || other.nRegion != m.nRegion {
		return ErrRegionMismatch
	}
	m.ConvertToOverDensity()
	other.ConvertToOverDensity()
	for i := range m.pix {
		pi := &m.pix[i]
		for j := range other.pix {
			pj := &other.pix[j]
			s := skypix.SinSqSeparation(&pi.Center, &pj.Center)
			if !bin.WithinSin2Bounds(s) {
				continue
			}
			w := pi.Weight * pj.Weight
			bin.AddToPixelWthetaRegions(w*pi.Intensity*pj.Intensity, w, 1,
				m.region[i], other.region[j])
		}
	}
	return nil
}

// localSums collects pixels whose centers fall within the annulus
// [thetaMin, thetaMax] around center.
func (m *ScalarMap) localSums(center *coord.Cart,
	thetaMax, thetaMin unit.Angle) (area, intensity float64, npix, npoints int) {

	for i := range m.pix {
		sep := skypix.Separation(center, &m.pix[i].Center)
		if sep < thetaMin || sep > thetaMax {
			continue
		}
		area += m.pix[i].Frac * skypix.PixelArea(m.resolution)
		intensity += m.pix[i].Intensity
		npoints += m.pix[i].NPoints
		npix++
	}
	return
}

// FindLocalArea returns the unmasked area within the annulus around
// center, in square degrees.
func (m *ScalarMap) FindLocalArea(center skypix.Point,
	thetaMax, thetaMin unit.Angle) float64 {

	a, _, _, _ := m.localSums(&center.Cart, thetaMax, thetaMin)
	return a
}

// FindLocalIntensity returns the summed intensity within the annulus.
func (m *ScalarMap) FindLocalIntensity(center skypix.Point,
	thetaMax, thetaMin unit.Angle) float64 {

	_, in, _, _ := m.localSums(&center.Cart, thetaMax, thetaMin)
	return in
}

// FindLocalAverageIntensity returns the mean pixel intensity within the
// annulus.
func (m *ScalarMap) FindLocalAverageIntensity(center skypix.Point,
	thetaMax, thetaMin unit.Angle) float64 {

	_, in, n, _ := m.localSums(&center.Cart, thetaMax, thetaMin)
	if n == 0 {
		return 0
	}
	return in / float64(n)
}

// FindLocalDensity returns intensity per unmasked area within the
// annulus.
func (m *ScalarMap) FindLocalDensity(center skypix.Point,
	thetaMax, thetaMin unit.Angle) float64 {

	a, in, _, _ := m.localSums(&center.Cart, thetaMax, thetaMin)
	if a == 0 {
		return 0
	}
	return in / a
}

// FindLocalPointDensity returns points per unmasked area within the
// annulus.
func (m *ScalarMap) FindLocalPointDensity(center skypix.Point,
	thetaMax, thetaMin unit.Angle) float64 {

	a, _, _, np := m.localSums(&center.Cart, thetaMax, thetaMin)
	if a == 0 {
		return 0
	}
	return float64(np) / a
}

// Variance returns the weighted variance of pixel intensities, each pixel
// weighted by the square of its weight, the product weight Covariance
// gives a pixel paired with itself.
func (m *ScalarMap) Variance() float64 {
	var wsum, mean float64
	for i := range m.pix {
		w := m.pix[i].Weight * m.pix[i].Weight
		wsum += w
		mean += w * m.pix[i].Intensity
	}
	if wsum == 0 {
		return 0
	}
	mean /= wsum
	var ss float64
	for i := range m.pix {
		d := m.pix[i].Intensity - mean
		ss += m.pix[i].Weight * m.pix[i].Weight * d * d
	}
	return ss / wsum
}

// Covariance returns the weighted covariance of intensities between this
// map and another of the same resolution, over their common pixels.
func (m *ScalarMap) Covariance(other *ScalarMap) (float64, error) {
	if other.resolution != m.resolution {
		return 0, fmt.Errorf("%w: maps at %d and %d",
			ErrResolutionMismatch, m.resolution, other.resolution)
	}
	var wsum, meanA, meanB float64
	type pair struct{ a, b, w float64 }
	var common []pair
	j := 0
	for i := range m.pix {
		for j < len(other.pix) &&
			other.pix[j].Pixel.Key() < m.pix[i].Pixel.Key() {
			j++
		}
		if j == len(other.pix) {
			break
		}
		if other.pix[j].Pixel == m.pix[i].Pixel {
			w := m.pix[i].Weight * other.pix[j].Weight
			common = append(common,
				pair{m.pix[i].Intensity, other.pix[j].Intensity, w})
			wsum += w
			meanA += w * m.pix[i].Intensity
			meanB += w * other.pix[j].Intensity
		}
	}
	if wsum == 0 {
		return 0, nil
	}
	meanA /= wsum
	meanB /= wsum
	var ss float64
	for _, p := range common {
		ss += p.w * (p.a - meanA) * (p.b - meanB)
	}
	return ss / wsum, nil
}
