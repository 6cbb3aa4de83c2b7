// Public domain.

// Package footprint describes survey geometry on the celestial sphere: a
// Map is a set of equal-resolution pixels, each carrying the fraction of
// its area inside the survey and a weight.  Maps report area and
// containment, iterate their coverage at any resolution, generate random
// catalogs, and split themselves into jack-knife regions.
package footprint

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/wtheta/skypix"
)

// DefaultMinUnmaskedFraction is the smallest coverage fraction kept when
// building a map.
const DefaultMinUnmaskedFraction = 1e-7

// PixelDatum is one covered pixel: its coverage fraction in (0, 1] and
// its weight.
type PixelDatum struct {
	Pixel  skypix.Pixel
	Frac   float64
	Weight float64
}

// Map is a survey footprint at a fixed resolution.
type Map struct {
	resolution uint32
	pix        []PixelDatum // sorted by pixel key
	area       float64      // sum of frac * pixel area, deg^2

	// cumulative unmasked area, built on first random draw
	cum []float64

	nRegion   int16
	regionRes uint32
	regions   map[skypix.Pixel]int16

	log zerolog.Logger
}

// New builds a Map from covered pixels.  All pixels must share the given
// resolution; entries below DefaultMinUnmaskedFraction are dropped.
func New(resolution uint32, data []PixelDatum) *Map {
	m := &Map{resolution: resolution, log: zerolog.Nop()}
	for _, d := range data {
		if d.Pixel.Res != resolution || d.Frac < DefaultMinUnmaskedFraction {
			continue
		}
		m.pix = append(m.pix, d)
	}
	sort.Slice(m.pix, func(i, j int) bool {
		return m.pix[i].Pixel.Key() < m.pix[j].Pixel.Key()
	})
	for _, d := range m.pix {
		m.area += d.Frac * d.Pixel.Area()
	}
	return m
}

// diskSub is the per-axis subsampling used to estimate coverage fractions
// of cells crossing a disk boundary.
const diskSub = 4

// NewDisk builds a unit weight Map covering the disk of the given angular
// radius around (ra, dec), sampled at the given resolution.  Cells crossing
// the boundary get a coverage fraction estimated on a subgrid.
func NewDisk(ra, dec, radius unit.Angle, resolution uint32) *Map {
	center := skypix.NewPoint(ra, dec)
	var data []PixelDatum
	forDiskCandidates(ra, dec, radius, resolution, func(p skypix.Pixel) {
		f := coverFraction(p, &center.Cart, radius)
		if f > 0 {
			data = append(data, PixelDatum{Pixel: p, Frac: f, Weight: 1})
		}
	})
	return New(resolution, data)
}

// forDiskCandidates visits every pixel whose cell could intersect the disk.
func forDiskCandidates(ra, dec, radius unit.Angle, resolution uint32,
	fn func(skypix.Pixel)) {

	center := skypix.NewPoint(ra, dec)
	zLo := math.Sin(dec.Rad() - radius.Rad())
	zHi := math.Sin(dec.Rad() + radius.Rad())
	if dec.Rad()+radius.Rad() >= math.Pi/2 {
		zHi = 1
	}
	if dec.Rad()-radius.Rad() <= -math.Pi/2 {
		zLo = -1
	}
	nyTot := 13 * resolution
	nxTot := 36 * resolution
	for y := uint32(0); y < nyTot; y++ {
		z1 := 1 - 2*float64(y)/float64(nyTot)
		z0 := z1 - 2/float64(nyTot)
		if z0 > zHi || z1 < zLo {
			continue
		}
		for x := uint32(0); x < nxTot; x++ {
			p := skypix.Pixel{Res: resolution, X: x, Y: y}
			if min, _ := p.SeparationBounds(&center.Cart); min <= radius {
				fn(p)
			}
		}
	}
}

// coverFraction estimates the fraction of cell p inside the disk by
// testing a diskSub x diskSub grid of subcell centers.
func coverFraction(p skypix.Pixel, center *coord.Cart, radius unit.Angle) float64 {
	min, max := p.SeparationBounds(center)
	if max <= radius {
		return 1
	}
	if min > radius {
		return 0
	}
	ra0, ra1, z0, z1 := p.Bounds()
	hits := 0
	for i := 0; i < diskSub; i++ {
		z := z0 + (float64(i)+.5)/diskSub*(z1-z0)
		cz := math.Sqrt(1 - z*z)
		for j := 0; j < diskSub; j++ {
			ra := ra0 + (float64(j)+.5)/diskSub*(ra1-ra0)
			sra, cra := math.Sincos(ra)
			c := coord.Cart{X: cz * cra, Y: cz * sra, Z: z}
			if skypix.Separation(center, &c) <= radius {
				hits++
			}
		}
	}
	return float64(hits) / (diskSub * diskSub)
}

// SetLogger directs the map's diagnostics to the given logger.
func (m *Map) SetLogger(log zerolog.Logger) { m.log = log }

// Resolution returns the resolution the footprint is sampled at.
func (m *Map) Resolution() uint32 { return m.resolution }

// Size returns the number of covered pixels.
func (m *Map) Size() int { return len(m.pix) }

// Area returns the unmasked survey area in square degrees.
func (m *Map) Area() float64 { return m.area }

// Contains reports whether the point falls in a covered pixel.
func (m *Map) Contains(p skypix.Point) bool {
	px := skypix.PixelFromCart(&p.Cart, m.resolution)
	return m.find(px) >= 0
}

// find returns the index of px in the sorted coverage, or -1.
func (m *Map) find(px skypix.Pixel) int {
	k := px.Key()
	i := sort.Search(len(m.pix), func(i int) bool {
		return m.pix[i].Pixel.Key() >= k
	})
	if i < len(m.pix) && m.pix[i].Pixel == px {
		return i
	}
	return -1
}

// PixelIterator calls fn for every covered pixel at the requested
// resolution with its coverage fraction and weight.  Requests finer than
// the map resolution subdivide cells, inheriting fraction and weight;
// coarser requests aggregate children area-weighted.
func (m *Map) PixelIterator(resolution uint32,
	fn func(p skypix.Pixel, frac, weight float64)) {

	switch {
	case resolution == m.resolution:
		for _, d := range m.pix {
			fn(d.Pixel, d.Frac, d.Weight)
		}
	case resolution > m.resolution:
		var buf []skypix.Pixel
		for _, d := range m.pix {
			buf = d.Pixel.ChildrenAt(resolution, buf[:0])
			for _, c := range buf {
				fn(c, d.Frac, d.Weight)
			}
		}
	default:
		type agg struct{ a, aw float64 }
		acc := make(map[skypix.Pixel]*agg)
		for _, d := range m.pix {
			pp := d.Pixel.ParentAt(resolution)
			g := acc[pp]
			if g == nil {
				g = &agg{}
				acc[pp] = g
			}
			a := d.Frac * d.Pixel.Area()
			g.a += a
			g.aw += a * d.Weight
		}
		order := make([]skypix.Pixel, 0, len(acc))
		for pp := range acc {
			order = append(order, pp)
		}
		sort.Slice(order, func(i, j int) bool {
			return order[i].Key() < order[j].Key()
		})
		coarseArea := skypix.PixelArea(resolution)
		for _, pp := range order {
			g := acc[pp]
			fn(pp, g.a/coarseArea, g.aw/g.a)
		}
	}
}

// GenerateRandomPoints draws n points uniformly over the unmasked area.
// With useWeighted, each point carries the weight of the pixel it lands
// in; otherwise weights are 1.
func (m *Map) GenerateRandomPoints(n int, useWeighted bool,
	rnd *xrand.Rand) []skypix.Point {

	if len(m.pix) == 0 || n <= 0 {
		return nil
	}
	if m.cum == nil {
		m.cum = make([]float64, len(m.pix))
		sum := 0.0
		for i, d := range m.pix {
			sum += d.Frac * d.Pixel.Area()
			m.cum[i] = sum
		}
	}
	total := m.cum[len(m.cum)-1]
	pts := make([]skypix.Point, n)
	for i := range pts {
		r := rnd.Float64() * total
		j := sort.SearchFloat64s(m.cum, r)
		if j >= len(m.pix) {
			j = len(m.pix) - 1
		}
		pts[i] = skypix.RandomIn(m.pix[j].Pixel, rnd)
		if useWeighted {
			pts[i].Weight = m.pix[j].Weight
		}
	}
	return pts
}
