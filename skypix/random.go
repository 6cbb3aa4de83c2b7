// Public domain.

package skypix

import (
	xrand "golang.org/x/exp/rand"
)

// RandomIn returns a unit weight point drawn uniformly from the solid
// angle of pixel p.  Cells are uniform in RA and in z, so two uniform
// deviates suffice.
func RandomIn(p Pixel, rnd *xrand.Rand) Point {
	ra0, ra1, z0, z1 := p.Bounds()
	ra := ra0 + rnd.Float64()*(ra1-ra0)
	z := z0 + rnd.Float64()*(z1-z0)
	return Point{
		Cart:   cartFromRAZ(ra, z),
		Weight: 1,
		Region: -1,
	}
}
