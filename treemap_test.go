// Public domain.

package wtheta_test

import (
	"math"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/wtheta"
	"github.com/soniakeys/wtheta/skypix"
)

// brutePairs counts weighted pairs between catalogs by direct comparison.
func brutePairs(a, b []skypix.Point, bin *wtheta.AngularBin) float64 {
	var sum float64
	for i := range a {
		for j := range b {
			s := skypix.SinSqSeparation(&a[i].Cart, &b[j].Cart)
			if bin.WithinSin2Bounds(s) {
				sum += a[i].Weight * b[j].Weight
			}
		}
	}
	return sum
}

func treeCatalog(n int, seed uint64) []skypix.Point {
	fp := diskMap(64)
	rnd := xrand.New(xrand.NewSource(seed))
	return fp.GenerateRandomPoints(n, false, rnd)
}

func TestTreeMapAdd(t *testing.T) {
	tree := wtheta.NewTreeMap(16, 8)
	cat := treeCatalog(500, 1)
	for _, p := range cat {
		require.True(t, tree.AddPoint(p))
	}
	assert.Equal(t, 500, tree.NPoints())
	assert.InDelta(t, 500, tree.Weight(), 1e-9)
}

func TestTreeMapWeightedAdd(t *testing.T) {
	tree := wtheta.NewTreeMap(16, 200)
	p := skypix.NewWeightedPoint(unit.AngleFromDeg(60), unit.AngleFromDeg(0), 3)
	require.True(t, tree.AddPoint(p))
	assert.InDelta(t, 3, tree.Weight(), 1e-12)
}

func TestFindWeightedPairsMatchesBruteForce(t *testing.T) {
	cat := treeCatalog(1200, 2)
	// small capacity forces deep splits, exercising all three traversal
	// outcomes
	for _, capacity := range []int{5, 50, 200} {
		tree := wtheta.NewTreeMap(16, capacity)
		for _, p := range cat {
			require.True(t, tree.AddPoint(p))
		}
		c := wtheta.New(unit.AngleFromDeg(.01), unit.AngleFromDeg(10), 6)
		c.UseOnlyPairs()
		for i := 0; i < c.NBins(); i++ {
			bin := c.Bin(i)
			tree.FindWeightedPairs(cat, bin)
			bin.MoveWeightToGalGal()
			want := brutePairs(cat, cat, bin)
			assert.InDelta(t, want, bin.GalGal(),
				1e-9*math.Max(1, want), "capacity %d bin %d", capacity, i)
			bin.Reset()
		}
	}
}

func TestFindWeightedPairsCrossCatalog(t *testing.T) {
	catA := treeCatalog(800, 3)
	catB := treeCatalog(600, 4)
	tree := wtheta.NewTreeMap(16, 30)
	for _, p := range catA {
		require.True(t, tree.AddPoint(p))
	}
	c := wtheta.New(unit.AngleFromDeg(.05), unit.AngleFromDeg(5), 4)
	c.UseOnlyPairs()
	for i := 0; i < c.NBins(); i++ {
		bin := c.Bin(i)
		tree.FindWeightedPairs(catB, bin)
		bin.MoveWeightToGalGal()
		want := brutePairs(catB, catA, bin)
		assert.InDelta(t, want, bin.GalGal(), 1e-9*math.Max(1, want),
			"bin %d", i)
		bin.Reset()
	}
}

func TestFindWeightedPairsWithRegions(t *testing.T) {
	fp := diskMap(64)
	require.EqualValues(t, 5, fp.InitializeRegions(5))
	rnd := xrand.New(xrand.NewSource(5))
	cat := fp.GenerateRandomPoints(800, false, rnd)
	for i := range cat {
		cat[i].Region = fp.Region(
			skypix.PixelFromCart(&cat[i].Cart, fp.RegionResolution()))
	}

	tree := wtheta.NewTreeMap(fp.RegionResolution(), 20)
	for _, p := range cat {
		require.True(t, tree.AddPoint(p))
	}
	require.NoError(t, tree.InitializeRegions(fp))
	assert.EqualValues(t, 5, tree.NRegion())

	c := wtheta.New(unit.AngleFromDeg(.05), unit.AngleFromDeg(5), 4)
	c.UseOnlyPairs()
	c.InitializeRegions(5)
	for i := 0; i < c.NBins(); i++ {
		bin := c.Bin(i)
		require.NoError(t, tree.FindWeightedPairsWithRegions(cat, bin))
		bin.MoveWeightToGalGal()

		// "all" accumulator agrees with brute force
		want := brutePairs(cat, cat, bin)
		require.InDelta(t, want, bin.GalGal(), 1e-9*math.Max(1, want))

		// leave-one-out replicas agree with brute force over the
		// reduced catalogs
		for r := int16(0); r < 5; r++ {
			var reduced []skypix.Point
			for _, p := range cat {
				if p.Region != r {
					reduced = append(reduced, p)
				}
			}
			wantR := brutePairs(reduced, reduced, bin)
			assert.InDelta(t, wantR, bin.GalGalRegion(r),
				1e-9*math.Max(1, wantR), "bin %d region %d", i, r)
		}
		bin.Reset()
	}
}

func TestFindWeightedPairsRegionsRequireInit(t *testing.T) {
	tree := wtheta.NewTreeMap(16, 200)
	c := wtheta.New(unit.AngleFromDeg(.05), unit.AngleFromDeg(5), 4)
	c.UseOnlyPairs()
	err := tree.FindWeightedPairsWithRegions(nil, c.Bin(0))
	assert.ErrorIs(t, err, wtheta.ErrNoRegions)
}

func TestTreeRegionResolutionTooFine(t *testing.T) {
	fp := diskMap(128)
	require.Greater(t, fp.InitializeRegions(40), int16(0))
	rr := fp.RegionResolution()
	if rr <= skypix.HPixResolution {
		t.Skip("regionation landed at base resolution")
	}
	tree := wtheta.NewTreeMap(rr/2, 200)
	err := tree.InitializeRegions(fp)
	assert.ErrorIs(t, err, wtheta.ErrRegionResolution)
}
