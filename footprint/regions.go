// Public domain.

package footprint

import (
	"sort"

	"github.com/soniakeys/wtheta/skypix"
)

// regionPixelFactor is the minimum number of region-resolution pixels per
// requested region; below it the split cannot be balanced.
const regionPixelFactor = 4

// InitializeRegions splits the footprint into n regions of roughly equal
// unmasked area for jack-knife resampling and returns the count actually
// created, which may be smaller when the footprint cannot support n
// balanced pieces.  Calling it again re-regionates.
func (m *Map) InitializeRegions(n int16) int16 {
	if n <= 0 || len(m.pix) == 0 {
		return 0
	}

	// coarsest resolution giving enough pixels to balance n regions
	res := skypix.HPixResolution
	for res < m.resolution && m.coveredAt(res) < int(n)*regionPixelFactor {
		res *= 2
	}

	type coarse struct {
		pix  skypix.Pixel
		area float64
	}
	acc := make(map[skypix.Pixel]float64)
	for _, d := range m.pix {
		pp := d.Pixel
		if res < m.resolution {
			pp = pp.ParentAt(res)
		}
		acc[pp] += d.Frac * d.Pixel.Area()
	}
	cs := make([]coarse, 0, len(acc))
	for p, a := range acc {
		cs = append(cs, coarse{p, a})
	}
	sort.Slice(cs, func(i, j int) bool {
		return cs[i].pix.Key() < cs[j].pix.Key()
	})

	if int(n) > len(cs) {
		m.log.Warn().Int16("requested", n).Int("available", len(cs)).
			Msg("footprint: fewer region pixels than regions")
		n = int16(len(cs))
	}

	target := m.area / float64(n)
	m.regions = make(map[skypix.Pixel]int16, len(cs))
	var r int16
	accum := 0.0
	for _, c := range cs {
		if accum >= target*float64(r+1) && r < n-1 {
			r++
		}
		m.regions[c.pix] = r
		accum += c.area
	}

	m.nRegion = r + 1
	m.regionRes = res
	if m.nRegion != n {
		m.log.Warn().Int16("requested", n).Int16("actual", m.nRegion).
			Msg("footprint: adopting achievable region count")
	}
	return m.nRegion
}

// coveredAt counts distinct covering pixels at resolution res.
func (m *Map) coveredAt(res uint32) int {
	if res >= m.resolution {
		return len(m.pix)
	}
	seen := make(map[skypix.Pixel]struct{})
	for _, d := range m.pix {
		seen[d.Pixel.ParentAt(res)] = struct{}{}
	}
	return len(seen)
}

// ClearRegions discards regionation state.
func (m *Map) ClearRegions() {
	m.nRegion = 0
	m.regionRes = 0
	m.regions = nil
}

// NRegion returns the number of active regions, 0 before regionation.
func (m *Map) NRegion() int16 { return m.nRegion }

// RegionResolution returns the resolution region labels are stored at.
func (m *Map) RegionResolution() uint32 { return m.regionRes }

// EachRegionPixel visits every region-resolution pixel with its region
// label.  Consumers copy the regionation through it.
func (m *Map) EachRegionPixel(fn func(p skypix.Pixel, region int16)) {
	for p, r := range m.regions {
		fn(p, r)
	}
}

// Region returns the region label of the given pixel, which may be at any
// resolution at or finer than the region resolution.  -1 means outside the
// footprint or regionation inactive.
func (m *Map) Region(p skypix.Pixel) int16 {
	if m.regions == nil {
		return -1
	}
	if p.Res > m.regionRes {
		p = p.ParentAt(m.regionRes)
	} else if p.Res < m.regionRes {
		return -1
	}
	if r, ok := m.regions[p]; ok {
		return r
	}
	return -1
}
