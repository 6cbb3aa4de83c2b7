// Public domain.

package footprint_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soniakeys/unit"
	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/wtheta/footprint"
	"github.com/soniakeys/wtheta/skypix"
)

func testDisk() *footprint.Map {
	return footprint.NewDisk(unit.AngleFromDeg(60), unit.AngleFromDeg(0),
		unit.AngleFromDeg(3), 128)
}

func TestDiskArea(t *testing.T) {
	fp := testDisk()
	if fp.Size() == 0 {
		t.Fatal("empty disk footprint")
	}
	// spherical cap area, 2*pi*(1-cos r)
	r := unit.AngleFromDeg(3).Rad()
	want := 2 * math.Pi * (1 - math.Cos(r)) * (180 / math.Pi) * (180 / math.Pi)
	if d := math.Abs(fp.Area()-want) / want; d > .05 {
		t.Fatalf("disk area %g, want %g within 5%%", fp.Area(), want)
	}
}

func TestDiskContains(t *testing.T) {
	fp := testDisk()
	if !fp.Contains(skypix.NewPoint(unit.AngleFromDeg(60), unit.AngleFromDeg(0))) {
		t.Fatal("disk does not contain its center")
	}
	if !fp.Contains(skypix.NewPoint(unit.AngleFromDeg(61), unit.AngleFromDeg(1))) {
		t.Fatal("disk does not contain an interior point")
	}
	if fp.Contains(skypix.NewPoint(unit.AngleFromDeg(120), unit.AngleFromDeg(40))) {
		t.Fatal("disk contains a faraway point")
	}
}

func TestGenerateRandomPoints(t *testing.T) {
	fp := testDisk()
	rnd := xrand.New(xrand.NewSource(1))
	pts := fp.GenerateRandomPoints(2000, false, rnd)
	if len(pts) != 2000 {
		t.Fatalf("generated %d points, want 2000", len(pts))
	}
	center := skypix.NewPoint(unit.AngleFromDeg(60), unit.AngleFromDeg(0))
	var maxSep unit.Angle
	for i := range pts {
		if !fp.Contains(pts[i]) {
			t.Fatal("random point outside footprint")
		}
		if pts[i].Weight != 1 {
			t.Fatalf("unweighted random has weight %g", pts[i].Weight)
		}
		if s := skypix.Separation(&center.Cart, &pts[i].Cart); s > maxSep {
			maxSep = s
		}
	}
	// boundary pixels poke slightly past the disk radius
	if maxSep > unit.AngleFromDeg(3.5) {
		t.Fatalf("random point %v from center", maxSep)
	}
}

func TestPixelIteratorRoundTrip(t *testing.T) {
	fp := testDisk()
	var data []footprint.PixelDatum
	fp.PixelIterator(fp.Resolution(), func(p skypix.Pixel, frac, weight float64) {
		data = append(data, footprint.PixelDatum{Pixel: p, Frac: frac, Weight: weight})
	})
	rebuilt := footprint.New(fp.Resolution(), data)

	var again []footprint.PixelDatum
	rebuilt.PixelIterator(rebuilt.Resolution(),
		func(p skypix.Pixel, frac, weight float64) {
			again = append(again, footprint.PixelDatum{Pixel: p, Frac: frac, Weight: weight})
		})
	if diff := cmp.Diff(data, again); diff != "" {
		t.Fatalf("coverage changed through rebuild (-want +got):\n%s", diff)
	}
	if math.Abs(rebuilt.Area()-fp.Area()) > 1e-9 {
		t.Fatalf("rebuilt area %g, want %g", rebuilt.Area(), fp.Area())
	}
}

func TestPixelIteratorResample(t *testing.T) {
	fp := testDisk()
	for _, res := range []uint32{32, 64, 256} {
		area := 0.0
		fp.PixelIterator(res, func(p skypix.Pixel, frac, weight float64) {
			if p.Res != res {
				t.Fatalf("iterator at %d yielded pixel at %d", res, p.Res)
			}
			if frac <= 0 || frac > 1+1e-12 {
				t.Fatalf("fraction %g out of range", frac)
			}
			area += frac * p.Area()
		})
		if d := math.Abs(area-fp.Area()) / fp.Area(); d > 1e-9 {
			t.Fatalf("area at %d is %g, want %g", res, area, fp.Area())
		}
	}
}

func TestInitializeRegions(t *testing.T) {
	fp := testDisk()
	n := fp.InitializeRegions(10)
	if n != 10 {
		t.Fatalf("regionated into %d, want 10", n)
	}
	if fp.NRegion() != 10 {
		t.Fatalf("NRegion = %d", fp.NRegion())
	}
	if fp.RegionResolution() < skypix.HPixResolution ||
		fp.RegionResolution() > fp.Resolution() {
		t.Fatalf("region resolution %d out of range", fp.RegionResolution())
	}

	// every covered pixel labeled, labels in range, areas not wildly
	// unbalanced
	areas := make([]float64, n)
	fp.PixelIterator(fp.Resolution(), func(p skypix.Pixel, frac, weight float64) {
		r := fp.Region(p)
		if r < 0 || r >= n {
			t.Fatalf("pixel %v region %d out of range", p, r)
		}
		areas[r] += frac * p.Area()
	})
	target := fp.Area() / float64(n)
	for r, a := range areas {
		if a < target/4 || a > target*4 {
			t.Fatalf("region %d area %g, target %g", r, a, target)
		}
	}

	seen := int16(0)
	fp.EachRegionPixel(func(p skypix.Pixel, region int16) {
		if p.Res != fp.RegionResolution() {
			t.Fatalf("region pixel at %d, want %d", p.Res, fp.RegionResolution())
		}
		if region+1 > seen {
			seen = region + 1
		}
	})
	if seen != n {
		t.Fatalf("region labels reach %d, want %d", seen, n)
	}
}

func TestRegionsInfeasible(t *testing.T) {
	// a footprint of a handful of pixels cannot make 50 regions
	var data []footprint.PixelDatum
	for x := uint32(0); x < 5; x++ {
		data = append(data, footprint.PixelDatum{
			Pixel:  skypix.Pixel{Res: 4, X: x, Y: 26},
			Frac:   1,
			Weight: 1,
		})
	}
	fp := footprint.New(4, data)
	n := fp.InitializeRegions(50)
	if n > 5 || n < 1 {
		t.Fatalf("achievable regions = %d, want between 1 and 5", n)
	}
	if fp.NRegion() != n {
		t.Fatalf("NRegion %d != returned %d", fp.NRegion(), n)
	}
}
