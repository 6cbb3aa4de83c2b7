// Public domain.

package skypix

import (
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// SeparationBounds returns the minimum and maximum possible angular
// separation between the unit vector c and any position within the cell.
// Spatial index traversal prunes and short-circuits on these.
//
// The cell is a product of an RA interval and a z interval, so the extreme
// RA offset is constant across the cell and the remaining search is one
// dimensional in z.  For fixed RA offset dra the separation satisfies
//
//	cos theta = z*z2 + cos(dra)*sqrt(1-z^2)*sqrt(1-z2^2)
//
// which has at most one interior extremum in z2; the bounds are therefore
// attained at the z edges or at that stationary point.
func (p Pixel) SeparationBounds(c *coord.Cart) (min, max unit.Angle) {
	ra := math.Atan2(c.Y, c.X)
	if ra < 0 {
		ra += 2 * math.Pi
	}
	z := c.Z
	ra0, ra1, z0, z1 := p.Bounds()

	inRA := ra >= ra0 && ra < ra1
	var draMin float64
	if !inRA {
		draMin = math.Min(circDist(ra, ra0), circDist(ra, ra1))
	}
	draMax := math.Max(circDist(ra, ra0), circDist(ra, ra1))
	if inRA {
		// opposite edge can be most of the cell width away
		draMax = math.Max(draMax, ra1-ra0)
	}

	cz := math.Sqrt(1 - z*z)
	aNear := math.Cos(draMin) * cz
	aFar := math.Cos(draMax) * cz

	// cosine of separation at z2 for the given RA-offset cosine factor a
	f := func(a, z2 float64) float64 {
		return z*z2 + a*math.Sqrt(1-z2*z2)
	}
	clamp := func(z2 float64) float64 {
		if z2 < z0 {
			return z0
		}
		if z2 > z1 {
			return z1
		}
		return z2
	}
	candidates := func(a float64) [4]float64 {
		zc := 0.0
		if h := math.Hypot(z, a); h > 0 {
			zc = z / h
		}
		return [4]float64{z0, z1, clamp(zc), clamp(-zc)}
	}

	cosMax := math.Inf(-1) // max cosine = min separation
	for _, z2 := range candidates(aNear) {
		if v := f(aNear, z2); v > cosMax {
			cosMax = v
		}
	}
	cosMin := math.Inf(1) // min cosine = max separation
	for _, z2 := range candidates(aFar) {
		if v := f(aFar, z2); v < cosMin {
			cosMin = v
		}
	}

	if inRA && z >= z0 && z < z1 {
		min = 0
	} else {
		min = unit.Angle(math.Acos(clampCos(cosMax)))
	}
	max = unit.Angle(math.Acos(clampCos(cosMin)))
	return
}

func clampCos(c float64) float64 {
	if c > 1 {
		return 1
	}
	if c < -1 {
		return -1
	}
	return c
}

// circDist returns the circular distance between two RA values, in [0, pi].
func circDist(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
