// Public domain.

// Package wtheta measures angular two-point correlation functions w(theta)
// of weighted point catalogs over arbitrary regions of the celestial
// sphere.
//
// A Correlation is a set of angular bins spanning some range of scales.
// Small scales are measured with a pair-based estimator over a
// hierarchical point index (TreeMap); large scales with a pixel-based
// estimator over uniform samplings of the survey density field
// (ScalarMap) at a ladder of resolutions.  The break between the two is
// set by hand or chosen automatically from catalog size and survey area.
// Splitting the survey footprint into regions turns every measurement
// into simultaneous jack-knife samples, from which the Correlation
// reports mean estimates, errors and a covariance matrix.
//
// Survey geometry enters through the Footprint interface; package
// footprint provides the standard implementation.
package wtheta

import (
	"errors"

	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/wtheta/skypix"
)

// Errors fatal to an engine call.
var (
	// ErrResolutionMismatch reports cross-correlating scalar maps of
	// different resolutions, or a bin whose resolution disagrees with
	// the map being swept.
	ErrResolutionMismatch = errors.New("wtheta: resolution mismatch")

	// ErrNoRegions reports a region-aware operation on an object whose
	// regions were never initialized.
	ErrNoRegions = errors.New("wtheta: regions not initialized")

	// ErrRegionMismatch reports mixing objects regionated with
	// different region counts.
	ErrRegionMismatch = errors.New("wtheta: region count mismatch")

	// ErrRegionResolution reports regionation finer than the structure
	// it is being copied onto can represent.
	ErrRegionResolution = errors.New("wtheta: regionation finer than resolution")
)

// Footprint is the survey geometry the engine measures against.
// Implementations must treat all methods as read-only except
// InitializeRegions, whose result is expected to be cached.
type Footprint interface {
	// Area returns the unmasked survey area in square degrees.
	Area() float64

	// Contains reports whether a point falls within the footprint.
	Contains(p skypix.Point) bool

	// NRegion returns the active jack-knife region count, 0 before
	// regionation.
	NRegion() int16

	// RegionResolution returns the resolution region labels live at.
	RegionResolution() uint32

	// InitializeRegions splits the footprint into n regions and
	// returns the count actually achieved.
	InitializeRegions(n int16) int16

	// EachRegionPixel visits every region-resolution pixel with its
	// region label, letting callers copy the regionation.
	EachRegionPixel(fn func(p skypix.Pixel, region int16))

	// GenerateRandomPoints draws n points uniformly over the unmasked
	// area using the supplied generator.  With useWeighted each point
	// carries the local footprint weight.
	GenerateRandomPoints(n int, useWeighted bool, rnd *xrand.Rand) []skypix.Point

	// PixelIterator visits the footprint coverage resampled at the
	// given resolution: pixel, unmasked fraction, weight.
	PixelIterator(resolution uint32, fn func(p skypix.Pixel, frac, weight float64))
}

// RegionSource is the part of a Footprint needed to copy regionation onto
// scalar maps and point indexes.  ScalarMap and TreeMap implement it too,
// so regionation flows down resolution ladders.
type RegionSource interface {
	NRegion() int16
	RegionResolution() uint32
	EachRegionPixel(fn func(p skypix.Pixel, region int16))
}
