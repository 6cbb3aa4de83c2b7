// Public domain.

package wtheta

import (
	"fmt"

	"github.com/soniakeys/unit"

	"github.com/soniakeys/wtheta/skypix"
)

// TreeMap is a hierarchical index over weighted points, the structure the
// pair-based estimator queries.  Each node covers one pixel and holds
// either a bucket of points or four children one resolution finer;
// buckets split when they exceed capacity.  Points are immutable once
// added.
type TreeMap struct {
	resolution uint32
	capacity   int
	nodes      map[skypix.Pixel]*treeNode

	nPoints int
	weight  float64

	nRegion   int16
	regionRes uint32
	regions   map[skypix.Pixel]int16
}

type treeNode struct {
	pixel    skypix.Pixel
	weight   float64
	npoints  int
	points   []skypix.Point
	children *[4]*treeNode // nil while a leaf
}

// NewTreeMap returns an empty index with base nodes at the given
// resolution.  A capacity below 1 takes DefaultTreeCapacity.
func NewTreeMap(resolution uint32, capacity int) *TreeMap {
	if capacity < 1 {
		capacity = DefaultTreeCapacity
	}
	return &TreeMap{
		resolution: resolution,
		capacity:   capacity,
		nodes:      make(map[skypix.Pixel]*treeNode),
	}
}

// Resolution returns the base node resolution.
func (t *TreeMap) Resolution() uint32 { return t.resolution }

// NPoints returns the number of points indexed.
func (t *TreeMap) NPoints() int { return t.nPoints }

// Weight returns the total weight indexed.
func (t *TreeMap) Weight() float64 { return t.weight }

// AddPoint descends to the bucket for p, splitting as needed, and
// reports success.  It fails only for points that do not resolve to a
// pixel, which cannot happen for unit vectors.
func (t *TreeMap) AddPoint(p skypix.Point) bool {
	px := skypix.PixelFromCart(&p.Cart, t.resolution)
	n := t.nodes[px]
	if n == nil {
		n = &treeNode{pixel: px}
		t.nodes[px] = n
	}
	n.add(p, t.capacity)
	t.nPoints++
	t.weight += p.Weight
	return true
}

func (n *treeNode) add(p skypix.Point, capacity int) {
	n.weight += p.Weight
	n.npoints++
	if n.children == nil {
		n.points = append(n.points, p)
		if len(n.points) > capacity &&
			n.pixel.Res < skypix.MaxPixelResolution {
			n.split(capacity)
		}
		return
	}
	n.childFor(&p).add(p, capacity)
}

// split pushes a leaf's bucket down into four children.
func (n *treeNode) split(capacity int) {
	n.children = new([4]*treeNode)
	pts := n.points
	n.points = nil
	for _, p := range pts {
		c := n.childFor(&p)
		// bypass add: subtree totals for these points already stand
		c.weight += p.Weight
		c.npoints++
		c.points = append(c.points, p)
	}
	for _, c := range n.children {
		if c != nil && len(c.points) > capacity &&
			c.pixel.Res < skypix.MaxPixelResolution {
			c.split(capacity)
		}
	}
}

// childFor returns (creating on demand) the child node covering p.
func (n *treeNode) childFor(p *skypix.Point) *treeNode {
	px := skypix.PixelFromCart(&p.Cart, n.pixel.Res*2)
	i := (px.X & 1) + (px.Y&1)*2
	c := n.children[i]
	if c == nil {
		c = &treeNode{pixel: px}
		n.children[i] = c
	}
	return c
}

// InitializeRegions copies regionation onto the index.  The region
// resolution must not be finer than the base node resolution, so every
// node lies in exactly one region.
func (t *TreeMap) InitializeRegions(src RegionSource) error {
	n := src.NRegion()
	if n <= 0 {
		return ErrNoRegions
	}
	rr := src.RegionResolution()
	if rr > t.resolution {
		return fmt.Errorf("%w: regions at %d, tree at %d",
			ErrRegionResolution, rr, t.resolution)
	}
	t.nRegion = n
	t.regionRes = rr
	t.regions = make(map[skypix.Pixel]int16)
	src.EachRegionPixel(func(p skypix.Pixel, region int16) {
		t.regions[p] = region
	})
	return nil
}

// NRegion returns the copied region count.
func (t *TreeMap) NRegion() int16 { return t.nRegion }

// RegionResolution returns the resolution region labels live at.
func (t *TreeMap) RegionResolution() uint32 { return t.regionRes }

// EachRegionPixel visits the copied regionation.
func (t *TreeMap) EachRegionPixel(fn func(p skypix.Pixel, region int16)) {
	for p, r := range t.regions {
		fn(p, r)
	}
}

// regionOf returns the region containing pixel px, or -1.
func (t *TreeMap) regionOf(px skypix.Pixel) int16 {
	if t.regions == nil {
		return -1
	}
	if px.Res > t.regionRes {
		px = px.ParentAt(t.regionRes)
	}
	if r, ok := t.regions[px]; ok {
		return r
	}
	return -1
}

// FindWeightedPairs accumulates, into the bin's scratch sum, the weighted
// count of pairs between each catalog point and the indexed points whose
// separation falls in the bin.  Nodes entirely outside the annulus are
// pruned; nodes entirely inside contribute their weight without descent;
// boundary nodes descend to exact per-point tests.  Callers drain the
// scratch with one of the bin's MoveWeightTo methods.
func (t *TreeMap) FindWeightedPairs(catalog []skypix.Point, bin *AngularBin) {
	tmin, tmax := bin.ThetaMin(), bin.ThetaMax()
	for i := range catalog {
		p := &catalog[i]
		for _, n := range t.nodes {
			n.findPairs(p, bin, tmin, tmax)
		}
	}
}

func (n *treeNode) findPairs(p *skypix.Point, bin *AngularBin,
	tmin, tmax unit.Angle) {

	min, max := n.pixel.SeparationBounds(&p.Cart)
	if max < tmin || min >= tmax {
		return
	}
	if min >= tmin && max < tmax {
		bin.AddToWeight(p.Weight*n.weight, float64(n.npoints))
		return
	}
	if n.children != nil {
		for _, c := range n.children {
			if c != nil {
				c.findPairs(p, bin, tmin, tmax)
			}
		}
		return
	}
	for i := range n.points {
		q := &n.points[i]
		if bin.WithinSin2Bounds(skypix.SinSqSeparation(&p.Cart, &q.Cart)) {
			bin.AddToWeight(p.Weight*q.Weight, 1)
		}
	}
}

// FindWeightedPairsWithRegions is FindWeightedPairs maintaining the bin's
// leave-one-out replicas.  Each pair is attributed to the regions of the
// target point and of the node or point supplying the indexed side.
func (t *TreeMap) FindWeightedPairsWithRegions(catalog []skypix.Point,
	bin *AngularBin) error {

	if t.nRegion <= 0 {
		return ErrNoRegions
	}
	if bin.NRegion() != t.nRegion {
		return ErrRegionMismatch
	}
	tmin, tmax := bin.ThetaMin(), bin.ThetaMax()
	for i := range catalog {
		p := &catalog[i]
		rp := t.regionOf(skypix.PixelFromCart(&p.Cart, t.regionRes))
		for _, n := range t.nodes {
			t.findPairsRegions(n, p, rp, bin, tmin, tmax)
		}
	}
	return nil
}

func (t *TreeMap) findPairsRegions(n *treeNode, p *skypix.Point, rp int16,
	bin *AngularBin, tmin, tmax unit.Angle) {

	min, max := n.pixel.SeparationBounds(&p.Cart)
	if max < tmin || min >= tmax {
		return
	}
	rn := t.regionOf(n.pixel)
	if min >= tmin && max < tmax {
		bin.AddToWeightRegions(p.Weight*n.weight, float64(n.npoints), rp, rn)
		return
	}
	if n.children != nil {
		for _, c := range n.children {
			if c != nil {
				t.findPairsRegions(c, p, rp, bin, tmin, tmax)
			}
		}
		return
	}
	for i := range n.points {
		q := &n.points[i]
		if bin.WithinSin2Bounds(skypix.SinSqSeparation(&p.Cart, &q.Cart)) {
			bin.AddToWeightRegions(p.Weight*q.Weight, 1, rp, rn)
		}
	}
}
