// Public domain.

package wtheta

import (
	"fmt"
	"math"

	"github.com/soniakeys/wtheta/skypix"
)

// FindAutoCorrelation measures the auto-correlation of a catalog over a
// footprint.  Unless a manual estimator break is in force, the break is
// chosen from the catalog size and footprint area.  Pair bins are
// measured against randomIterations random catalogs; randomIterations
// must be at least 1.
func (c *Correlation) FindAutoCorrelation(fp Footprint,
	catalog []skypix.Point, randomIterations int,
	useWeightedRandoms bool) error {

	if randomIterations < 1 {
		return fmt.Errorf("wtheta: random iterations %d < 1", randomIterations)
	}
	if !c.manualBreak {
		c.AutoMaxResolution(uint32(len(catalog)), fp.Area())
	}
	if c.pixelBegin != c.pixelEnd {
		if err := c.FindPixelAutoCorrelation(fp, catalog,
			useWeightedRandoms); err != nil {
			return err
		}
	}
	if c.pairBegin != c.pairEnd {
		return c.FindPairAutoCorrelation(fp, catalog, randomIterations,
			useWeightedRandoms)
	}
	return nil
}

// FindCrossCorrelation measures the cross-correlation of two catalogs
// over their footprints.  The automatic break uses the geometric mean of
// the catalog sizes and the smaller footprint area.
func (c *Correlation) FindCrossCorrelation(fpA, fpB Footprint,
	catalogA, catalogB []skypix.Point, randomIterations int,
	useWeightedRandoms bool) error {

	if randomIterations < 1 {
		return fmt.Errorf("wtheta: random iterations %d < 1", randomIterations)
	}
	if !c.manualBreak {
		nObj := uint32(geomMean(len(catalogA), len(catalogB)))
		area := fpA.Area()
		if a := fpB.Area(); a < area {
			area = a
		}
		c.AutoMaxResolution(nObj, area)
	}
	if c.pixelBegin != c.pixelEnd {
		if err := c.FindPixelCrossCorrelation(fpA, fpB, catalogA, catalogB,
			useWeightedRandoms); err != nil {
			return err
		}
	}
	if c.pairBegin != c.pairEnd {
		return c.FindPairCrossCorrelation(fpA, fpB, catalogA, catalogB,
			randomIterations, useWeightedRandoms)
	}
	return nil
}

func geomMean(a, b int) float64 {
	return math.Sqrt(float64(a) * float64(b))
}

// FindAutoCorrelationWithRegions is FindAutoCorrelation with jack-knife
// resampling over nRegions footprint regions (0 means twice the bin
// count).  If the footprint's regionation is finer than the maximum
// pixel resolution, the engine falls back to the pair-based estimator
// for every bin.
func (c *Correlation) FindAutoCorrelationWithRegions(fp Footprint,
	catalog []skypix.Point, randomIterations int, nRegions int16,
	useWeightedRandoms bool) error {

	if randomIterations < 1 {
		return fmt.Errorf("wtheta: random iterations %d < 1", randomIterations)
	}
	if !c.manualBreak {
		c.AutoMaxResolution(uint32(len(catalog)), fp.Area())
	}
	if err := c.setUpRegions(fp, nRegions); err != nil {
		return err
	}
	if c.pixelBegin != c.pixelEnd {
		if err := c.FindPixelAutoCorrelation(fp, catalog,
			useWeightedRandoms); err != nil {
			return err
		}
	}
	if c.pairBegin != c.pairEnd {
		return c.FindPairAutoCorrelation(fp, catalog, randomIterations,
			useWeightedRandoms)
	}
	return nil
}

// FindCrossCorrelationWithRegions is FindCrossCorrelation with jack-knife
// resampling.  Regionation is taken from (or created on) footprint A.
func (c *Correlation) FindCrossCorrelationWithRegions(fpA, fpB Footprint,
	catalogA, catalogB []skypix.Point, randomIterations int, nRegions int16,
	useWeightedRandoms bool) error {

	if randomIterations < 1 {
		return fmt.Errorf("wtheta: random iterations %d < 1", randomIterations)
	}
	if !c.manualBreak {
		nObj := uint32(geomMean(len(catalogA), len(catalogB)))
		area := fpA.Area()
		if a := fpB.Area(); a < area {
			area = a
		}
		c.AutoMaxResolution(nObj, area)
	}
	if err := c.setUpRegions(fpA, nRegions); err != nil {
		return err
	}
	if c.pixelBegin != c.pixelEnd {
		if err := c.FindPixelCrossCorrelation(fpA, fpB, catalogA, catalogB,
			useWeightedRandoms); err != nil {
			return err
		}
	}
	if c.pairBegin != c.pairEnd {
		return c.FindPairCrossCorrelation(fpA, fpB, catalogA, catalogB,
			randomIterations, useWeightedRandoms)
	}
	return nil
}

// setUpRegions regionates the footprint if needed, adopts the achievable
// region count, and reconciles the resolution bounds with the
// regionation resolution.
func (c *Correlation) setUpRegions(fp Footprint, nRegions int16) error {
	if nRegions == 0 {
		nRegions = int16(2 * len(c.bins))
	}
	c.log.Info().Int16("regions", nRegions).Msg("wtheta: regionating")
	nTrue := fp.NRegion()
	if nTrue == 0 {
		nTrue = fp.InitializeRegions(nRegions)
	}
	if nTrue <= 0 {
		return fmt.Errorf("%w: footprint regionation failed", ErrNoRegions)
	}
	if nTrue != nRegions {
		c.log.Warn().Int16("requested", nRegions).Int16("actual", nTrue).
			Msg("wtheta: adopting achievable region count")
	}
	c.regionResolution = fp.RegionResolution()
	c.log.Info().Uint32("resolution", c.regionResolution).
		Msg("wtheta: regionated")
	c.InitializeRegions(nTrue)
	if c.regionResolution > c.minResolution {
		c.SetMinResolution(c.regionResolution)
	}
	if c.regionResolution > c.maxResolution {
		c.log.Warn().Uint32("regionation", c.regionResolution).
			Uint32("max", c.maxResolution).
			Msg("wtheta: regionation exceeds maximum resolution, " +
				"using pair-based estimator only")
		c.UseOnlyPairs()
	}
	return nil
}

// FindPixelAutoCorrelation runs the pixel-based estimator: a density
// field is sampled from the footprint at the maximum pixel resolution,
// the catalog added to it, and every pixel bin measured at its assigned
// resolution as the field is aggregated down the resolution ladder.
func (c *Correlation) FindPixelAutoCorrelation(fp Footprint,
	catalog []skypix.Point, useWeightedRandoms bool) error {

	c.log.Info().Uint32("resolution", c.maxResolution).
		Msg("wtheta: initializing scalar map")
	sm := NewScalarMapWithOptions(fp, c.maxResolution, DensityField,
		ScalarMapOptions{UseMapWeightAsWeight: useWeightedRandoms})
	if c.nRegion > 0 && fp.NRegion() > 0 {
		if err := sm.InitializeRegions(fp); err != nil {
			return err
		}
	}
	c.addCatalog(sm, fp, catalog)
	return c.findPixelAuto(sm)
}

// addCatalog filters a catalog into a scalar map, logging points outside
// the footprint or rejected by the map.
func (c *Correlation) addCatalog(sm *ScalarMap, fp Footprint,
	catalog []skypix.Point) {

	nOutside, nFailed := 0, 0
	for _, p := range catalog {
		if !fp.Contains(p) {
			nOutside++
			continue
		}
		if !sm.Add(p) {
			nFailed++
		}
	}
	if nOutside > 0 {
		c.log.Warn().Int("outside", nOutside).Int("total", len(catalog)).
			Msg("wtheta: objects not within footprint")
	}
	if nFailed > 0 {
		c.log.Warn().Int("failed", nFailed).
			Msg("wtheta: objects not placed in scalar map")
	}
}

// findPixelAuto measures every pixel bin against the top map and its
// aggregates.
func (c *Correlation) findPixelAuto(sm *ScalarMap) error {
	regions := sm.NRegion() > 0
	if err := c.correlateAt(sm, regions); err != nil {
		return err
	}
	for res := sm.Resolution() / 2; res >= c.minResolution; res /= 2 {
		sub, err := NewSubMap(sm, res)
		if err != nil {
			return err
		}
		if regions {
			if err := sub.InitializeRegions(sm); err != nil {
				return err
			}
		}
		if err := c.correlateAt(sub, regions); err != nil {
			return err
		}
	}
	return nil
}

// correlateAt measures the bins assigned the map's resolution.
func (c *Correlation) correlateAt(sm *ScalarMap, regions bool) error {
	lo, hi := c.BinRange(sm.Resolution())
	if lo == hi {
		return nil
	}
	c.log.Info().Uint32("resolution", sm.Resolution()).Bool("regions", regions).
		Int("bins", hi-lo).Msg("wtheta: auto-correlating")
	for i := lo; i < hi; i++ {
		if regions {
			if err := sm.AutoCorrelateWithRegions(&c.bins[i]); err != nil {
				return err
			}
		} else {
			if err := sm.AutoCorrelate(&c.bins[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// FindPixelCrossCorrelation is the pixel sweep over two footprints and
// catalogs.  Both fields are sampled at the maximum pixel resolution;
// regionation, when active, is copied from footprint A onto both.
func (c *Correlation) FindPixelCrossCorrelation(fpA, fpB Footprint,
	catalogA, catalogB []skypix.Point, useWeightedRandoms bool) error {

	c.log.Info().Uint32("resolution", c.maxResolution).
		Msg("wtheta: initializing scalar maps")
	opt := ScalarMapOptions{UseMapWeightAsWeight: useWeightedRandoms}
	smA := NewScalarMapWithOptions(fpA, c.maxResolution, DensityField, opt)
	smB := NewScalarMapWithOptions(fpB, c.maxResolution, DensityField, opt)
	if c.nRegion > 0 && fpA.NRegion() > 0 {
		if err := smA.InitializeRegions(fpA); err != nil {
			return err
		}
		if err := smB.InitializeRegions(fpA); err != nil {
			return err
		}
	}
	c.addCatalog(smA, fpA, catalogA)
	c.addCatalog(smB, fpB, catalogB)
	return c.findPixelCross(smA, smB)
}

func (c *Correlation) findPixelCross(smA, smB *ScalarMap) error {
	if smA.Resolution() != smB.Resolution() {
		return fmt.Errorf("%w: maps at %d and %d", ErrResolutionMismatch,
			smA.Resolution(), smB.Resolution())
	}
	regions := smA.NRegion() > 0
	if err := c.crossCorrelateAt(smA, smB, regions); err != nil {
		return err
	}
	for res := smA.Resolution() / 2; res >= c.minResolution; res /= 2 {
		subA, err := NewSubMap(smA, res)
		if err != nil {
			return err
		}
		subB, err := NewSubMap(smB, res)
		if err != nil {
			return err
		}
		if regions {
			if err := subA.InitializeRegions(smA); err != nil {
				return err
			}
			if err := subB.InitializeRegions(smA); err != nil {
				return err
			}
		}
		if err := c.crossCorrelateAt(subA, subB, regions); err != nil {
			return err
		}
	}
	return nil
}

func (c *Correlation) crossCorrelateAt(smA, smB *ScalarMap,
	regions bool) error {

	lo, hi := c.BinRange(smA.Resolution())
	if lo == hi {
		return nil
	}
	c.log.Info().Uint32("resolution", smA.Resolution()).Bool("regions", regions).
		Int("bins", hi-lo).Msg("wtheta: cross-correlating")
	for i := lo; i < hi; i++ {
		if regions {
			if err := smA.CrossCorrelateWithRegions(smB,
				&c.bins[i]); err != nil {
				return err
			}
		} else {
			if err := smA.CrossCorrelate(smB, &c.bins[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// treeResolution is the base resolution of pair sweep indexes: fine
// enough for the regionation when one is active.
func (c *Correlation) treeResolution() uint32 {
	if c.regionResolution > c.minResolution {
		return c.regionResolution
	}
	return c.minResolution
}

// buildTree indexes the points of a catalog that fall in the footprint.
// With checkContains false the catalog is trusted (random catalogs are
// generated inside the footprint by construction).
func (c *Correlation) buildTree(fp Footprint, catalog []skypix.Point,
	checkContains bool) (*TreeMap, error) {

	tree := NewTreeMap(c.treeResolution(), DefaultTreeCapacity)
	nKept, nFail := 0, 0
	for _, p := range catalog {
		if checkContains && !fp.Contains(p) {
			continue
		}
		nKept++
		if !tree.AddPoint(p) {
			nFail++
		}
	}
	c.log.Info().Int("added", nKept-nFail).Int("total", len(catalog)).
		Int("failed", nFail).Msg("wtheta: objects added to tree")
	if c.nRegion > 0 && fp.NRegion() > 0 {
		if err := tree.InitializeRegions(fp); err != nil {
			return nil, fmt.Errorf("wtheta: tree regionation: %w", err)
		}
	}
	return tree, nil
}

// pairBins visits the pair-range bins.
func (c *Correlation) pairBins(fn func(b *AngularBin) error) error {
	for i := c.pairBegin; i < c.pairEnd; i++ {
		if err := fn(&c.bins[i]); err != nil {
			return err
		}
	}
	return nil
}

// findPairs runs one tree query for one bin, region-aware when the tree
// is regionated.
func findPairs(tree *TreeMap, catalog []skypix.Point, b *AngularBin) error {
	if tree.NRegion() > 0 {
		return tree.FindWeightedPairsWithRegions(catalog, b)
	}
	tree.FindWeightedPairs(catalog, b)
	return nil
}

// FindPairAutoCorrelation runs the pair-based estimator: galaxy-galaxy
// counts from an index on the catalog, then galaxy-random and
// random-random counts averaged over the random iterations.
func (c *Correlation) FindPairAutoCorrelation(fp Footprint,
	catalog []skypix.Point, randomIterations int,
	useWeightedRandoms bool) error {

	tree, err := c.buildTree(fp, catalog, true)
	if err != nil {
		return err
	}

	c.log.Info().Msg("wtheta: galaxy-galaxy pairs")
	if err := c.pairBins(func(b *AngularBin) error {
		if err := findPairs(tree, catalog, b); err != nil {
			return err
		}
		b.MoveWeightToGalGal()
		return nil
	}); err != nil {
		return err
	}
	tree = nil // release before the random trees are built

	c.pairBins(func(b *AngularBin) error {
		b.ResetGalRand()
		b.ResetRandGal()
		b.ResetRandRand()
		return nil
	})

	for iter := 0; iter < randomIterations; iter++ {
		c.log.Info().Int("iteration", iter).Msg("wtheta: random iteration")
		randCat := fp.GenerateRandomPoints(len(catalog),
			useWeightedRandoms, c.rnd)
		randTree, err := c.buildTree(fp, randCat, false)
		if err != nil {
			return err
		}

		// galaxy-random; symmetric, so the counts double into
		// random-galaxy as well
		if err := c.pairBins(func(b *AngularBin) error {
			if err := findPairs(randTree, catalog, b); err != nil {
				return err
			}
			b.MoveWeightToGalRand(true)
			return nil
		}); err != nil {
			return err
		}

		// random-random
		if err := c.pairBins(func(b *AngularBin) error {
			if err := findPairs(randTree, randCat, b); err != nil {
				return err
			}
			b.MoveWeightToRandRand()
			return nil
		}); err != nil {
			return err
		}
	}

	k := float64(randomIterations)
	return c.pairBins(func(b *AngularBin) error {
		b.RescaleGalRand(k)
		b.RescaleRandGal(k)
		b.RescaleRandRand(k)
		return nil
	})
}

// FindPairCrossCorrelation is the pair sweep over two catalogs: GG from
// an index on catalog A against catalog B, then GR, RG and RR against
// random catalogs drawn from each footprint.
func (c *Correlation) FindPairCrossCorrelation(fpA, fpB Footprint,
	catalogA, catalogB []skypix.Point, randomIterations int,
	useWeightedRandoms bool) error {

	treeA, err := c.buildTree(fpA, catalogA, true)
	if err != nil {
		return err
	}

	c.log.Info().Msg("wtheta: galaxy-galaxy pairs")
	if err := c.pairBins(func(b *AngularBin) error {
		if err := findPairs(treeA, catalogB, b); err != nil {
			return err
		}
		b.MoveWeightToGalGal()
		return nil
	}); err != nil {
		return err
	}

	c.pairBins(func(b *AngularBin) error {
		b.ResetGalRand()
		b.ResetRandGal()
		b.ResetRandRand()
		return nil
	})

	for iter := 0; iter < randomIterations; iter++ {
		c.log.Info().Int("iteration", iter).Msg("wtheta: random iteration")
		randA := fpA.GenerateRandomPoints(len(catalogA),
			useWeightedRandoms, c.rnd)
		randB := fpB.GenerateRandomPoints(len(catalogB),
			useWeightedRandoms, c.rnd)

		// galaxy-random
		if err := c.pairBins(func(b *AngularBin) error {
			if err := findPairs(treeA, randB, b); err != nil {
				return err
			}
			b.MoveWeightToGalRand(false)
			return nil
		}); err != nil {
			return err
		}

		randTreeA, err := c.buildTree(fpA, randA, false)
		if err != nil {
			return err
		}

		// random-galaxy
		if err := c.pairBins(func(b *AngularBin) error {
			if err := findPairs(randTreeA, catalogB, b); err != nil {
				return err
			}
			b.MoveWeightToRandGal()
			return nil
		}); err != nil {
			return err
		}

		// random-random
		if err := c.pairBins(func(b *AngularBin) error {
			if err := findPairs(randTreeA, randB, b); err != nil {
				return err
			}
			b.MoveWeightToRandRand()
			return nil
		}); err != nil {
			return err
		}
	}

	k := float64(randomIterations)
	return c.pairBins(func(b *AngularBin) error {
		b.RescaleGalRand(k)
		b.RescaleRandGal(k)
		b.RescaleRandRand(k)
		return nil
	})
}
