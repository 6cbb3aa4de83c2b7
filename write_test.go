// Public domain.

package wtheta_test

import (
	"strings"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/wtheta"
)

// failWriter errors after n successful writes.
type failWriter struct{ n int }

func (w *failWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, assert.AnError
	}
	w.n--
	return len(p), nil
}

func TestWritePairColumns(t *testing.T) {
	c := wtheta.New(unit.AngleFromDeg(.1), unit.AngleFromDeg(1), 4)
	c.UseOnlyPairs()
	for i := 0; i < c.NBins(); i++ {
		b := c.Bin(i)
		b.AddToWeight(120, 120)
		b.MoveWeightToGalGal()
		b.AddToWeight(100, 100)
		b.MoveWeightToGalRand(true)
		b.AddToWeight(100, 100)
		b.MoveWeightToRandRand()
	}

	var sb strings.Builder
	require.True(t, c.Write(&sb))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, c.NBins())
	for i, line := range lines {
		fields := strings.Fields(line)
		require.Len(t, fields, 6, "pair row %d", i)
		assert.Equal(t, "120", fields[2])
		assert.Equal(t, "100", fields[3])
		assert.Equal(t, "100", fields[4])
		assert.Equal(t, "100", fields[5])
		assert.Equal(t, "0.2", fields[1])
	}
}

func TestWritePixelColumns(t *testing.T) {
	c := wtheta.New(unit.AngleFromDeg(1), unit.AngleFromDeg(10), 4)
	// bins at these scales are naturally pixel-based
	for i := 0; i < c.NBins(); i++ {
		require.Greater(t, c.Bin(i).Resolution(), uint32(0))
		c.Bin(i).AddToPixelWtheta(.5, 10, 2)
	}
	var sb strings.Builder
	require.True(t, c.Write(&sb))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, c.NBins())
	for i, line := range lines {
		fields := strings.Fields(line)
		require.Len(t, fields, 4, "pixel row %d", i)
		assert.Equal(t, "0.05", fields[1], "w = num/den")
		assert.Equal(t, "0.5", fields[2])
		assert.Equal(t, "10", fields[3])
	}
}

func TestWriteRegionColumns(t *testing.T) {
	c := wtheta.New(unit.AngleFromDeg(.1), unit.AngleFromDeg(1), 4)
	c.UseOnlyPairs()
	c.InitializeRegions(4)
	for i := 0; i < c.NBins(); i++ {
		b := c.Bin(i)
		for r := int16(0); r < 4; r++ {
			b.AddToWeightRegions(30, 30, r, r)
		}
		b.MoveWeightToGalGal()
		for r := int16(0); r < 4; r++ {
			b.AddToWeightRegions(25, 25, r, r)
		}
		b.MoveWeightToGalRand(true)
		for r := int16(0); r < 4; r++ {
			b.AddToWeightRegions(25, 25, r, r)
		}
		b.MoveWeightToRandRand()
	}
	var sb strings.Builder
	require.True(t, c.Write(&sb))
	for i, line := range strings.Split(strings.TrimSpace(sb.String()), "\n") {
		fields := strings.Fields(line)
		require.Len(t, fields, 3, "region row %d", i)
	}
}

func TestWriteSixSignificantDigits(t *testing.T) {
	c := wtheta.New(unit.AngleFromDeg(.1), unit.AngleFromDeg(1), 4)
	c.UseOnlyPairs()
	b := c.Bin(0)
	b.AddToWeight(1234567.891, 1000)
	b.MoveWeightToGalGal()
	b.AddToWeight(1000, 1000)
	b.MoveWeightToGalRand(true)
	b.AddToWeight(1000, 1000)
	b.MoveWeightToRandRand()

	var sb strings.Builder
	require.True(t, c.Write(&sb))
	fields := strings.Fields(strings.Split(sb.String(), "\n")[0])
	assert.Equal(t, "1.23457e+06", fields[2])
}

func TestWriteFailure(t *testing.T) {
	c := wtheta.New(unit.AngleFromDeg(.1), unit.AngleFromDeg(1), 4)
	c.UseOnlyPairs()
	assert.False(t, c.Write(&failWriter{n: 1}))
	assert.False(t, c.WriteCovariance(&failWriter{n: 2}))
	assert.True(t, c.Write(&failWriter{n: 1000}))
}

func TestWriteCovarianceTriples(t *testing.T) {
	c := wtheta.New(unit.AngleFromDeg(.1), unit.AngleFromDeg(1), 4)
	c.UseOnlyPairs()
	var sb strings.Builder
	require.True(t, c.WriteCovariance(&sb))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	assert.Len(t, lines, c.NBins()*c.NBins())
	for _, line := range lines {
		assert.Len(t, strings.Fields(line), 3)
	}
}
