// Public domain.

package wtheta_test

import (
	"math"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/wtheta"
)

// pairBin returns a fresh pair-based bin for accumulator tests.
func pairBin(t *testing.T) *wtheta.AngularBin {
	c := wtheta.New(unit.AngleFromDeg(.1), unit.AngleFromDeg(1), 4)
	c.UseOnlyPairs()
	require.Greater(t, c.NBins(), 0)
	return c.Bin(0)
}

func TestMoveWeight(t *testing.T) {
	b := pairBin(t)

	b.AddToWeight(3, 2)
	b.MoveWeightToGalGal()
	assert.Equal(t, 3.0, b.GalGal())

	b.AddToWeight(5, 1)
	b.MoveWeightToGalRand(true)
	assert.Equal(t, 5.0, b.GalRand())
	assert.Equal(t, 5.0, b.RandGal(), "symmetric move doubles")

	b.AddToWeight(7, 1)
	b.MoveWeightToRandRand()
	assert.Equal(t, 7.0, b.RandRand())

	// scratch drained after each move
	b.MoveWeightToGalGal()
	assert.Equal(t, 3.0, b.GalGal(), "second move adds nothing")
}

func TestMoveWeightAsymmetric(t *testing.T) {
	b := pairBin(t)
	b.AddToWeight(4, 1)
	b.MoveWeightToGalRand(false)
	assert.Equal(t, 4.0, b.GalRand())
	assert.Zero(t, b.RandGal())
	b.AddToWeight(2, 1)
	b.MoveWeightToRandGal()
	assert.Equal(t, 2.0, b.RandGal())
}

func TestRescale(t *testing.T) {
	b := pairBin(t)
	for iter := 0; iter < 4; iter++ {
		b.AddToWeight(10, 5)
		b.MoveWeightToGalRand(true)
		b.AddToWeight(20, 5)
		b.MoveWeightToRandRand()
	}
	b.RescaleGalRand(4)
	b.RescaleRandGal(4)
	b.RescaleRandRand(4)
	assert.InDelta(t, 10, b.GalRand(), 1e-12)
	assert.InDelta(t, 10, b.RandGal(), 1e-12)
	assert.InDelta(t, 20, b.RandRand(), 1e-12)
}

func TestLandySzalay(t *testing.T) {
	b := pairBin(t)
	b.AddToWeight(120, 120)
	b.MoveWeightToGalGal()
	b.AddToWeight(100, 100)
	b.MoveWeightToGalRand(true)
	b.AddToWeight(100, 100)
	b.MoveWeightToRandRand()
	// (120 - 100 - 100 + 100)/100
	assert.InDelta(t, .2, b.Wtheta(), 1e-12)
	assert.False(t, b.Degenerate())
}

func TestEmptyRandRandIsNaN(t *testing.T) {
	b := pairBin(t)
	b.AddToWeight(10, 10)
	b.MoveWeightToGalGal()
	assert.True(t, math.IsNaN(b.Wtheta()))
	assert.True(t, b.Degenerate())
}

func TestResetAccumulators(t *testing.T) {
	b := pairBin(t)
	b.AddToWeight(1, 1)
	b.MoveWeightToGalRand(true)
	b.AddToWeight(1, 1)
	b.MoveWeightToRandRand()
	b.ResetGalRand()
	b.ResetRandGal()
	b.ResetRandRand()
	assert.Zero(t, b.GalRand())
	assert.Zero(t, b.RandGal())
	assert.Zero(t, b.RandRand())
}

func TestRegionReplicas(t *testing.T) {
	b := pairBin(t)
	b.InitializeRegions(3)
	require.EqualValues(t, 3, b.NRegion())

	// a pair touching regions 0 and 1 lands everywhere but replicas 0, 1
	b.AddToWeightRegions(6, 1, 0, 1)
	// a pair within region 2 lands in replicas 0 and 1
	b.AddToWeightRegions(4, 1, 2, 2)
	b.MoveWeightToGalGal()

	assert.Equal(t, 10.0, b.GalGal())
	assert.Equal(t, 4.0, b.GalGalRegion(0))
	assert.Equal(t, 4.0, b.GalGalRegion(1))
	assert.Equal(t, 6.0, b.GalGalRegion(2))
}

func TestMeanWtheta(t *testing.T) {
	b := pairBin(t)
	b.InitializeRegions(2)

	b.AddToWeightRegions(10, 10, 0, 0)
	b.AddToWeightRegions(12, 12, 1, 1)
	b.MoveWeightToGalGal()
	b.AddToWeightRegions(10, 10, 0, 0)
	b.AddToWeightRegions(10, 10, 1, 1)
	b.MoveWeightToGalRand(true)
	b.AddToWeightRegions(10, 10, 0, 0)
	b.AddToWeightRegions(10, 10, 1, 1)
	b.MoveWeightToRandRand()

	// replica 0 holds only region-1 pairs: GG 12, GR 10, RR 10
	w0 := (12.0 - 10 - 10 + 10) / 10
	// replica 1 holds only region-0 pairs: GG 10, GR 10, RR 10
	w1 := (10.0 - 10 - 10 + 10) / 10
	assert.InDelta(t, w0, b.WthetaRegion(0), 1e-12)
	assert.InDelta(t, w1, b.WthetaRegion(1), 1e-12)
	assert.InDelta(t, (w0+w1)/2, b.MeanWtheta(), 1e-12)

	mean := (w0 + w1) / 2
	want := math.Sqrt(.25 * ((w0-mean)*(w0-mean) + (w1-mean)*(w1-mean)))
	assert.InDelta(t, want, b.MeanWthetaError(), 1e-12)
}

func TestPoissonVariance(t *testing.T) {
	b := pairBin(t)
	b.AddToWeight(100, 100)
	b.MoveWeightToGalGal()
	b.AddToWeight(100, 100)
	b.MoveWeightToGalRand(true)
	b.AddToWeight(100, 100)
	b.MoveWeightToRandRand()
	w := b.Wtheta()
	assert.InDelta(t, (1+w)*(1+w)/100, b.PoissonVariance(), 1e-12)
	assert.InDelta(t, math.Sqrt(b.PoissonVariance()), b.WthetaError(), 1e-12)
}
