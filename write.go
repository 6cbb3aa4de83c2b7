// Public domain.

package wtheta

import (
	"fmt"
	"io"
	"os"
)

// Write emits one row per bin in increasing theta order and reports
// success.  Column layouts, space separated at six significant digits:
//
//	regionated bin:       theta  mean_w  jackknife_error
//	pixel bin, no regions: theta  w  pixel_num  pixel_den
//	pair bin, no regions:  theta  w  GG  GR  RG  RR
//
// Theta is in degrees.
func (c *Correlation) Write(w io.Writer) bool {
	for i := range c.bins {
		b := &c.bins[i]
		var err error
		switch {
		case b.NRegion() > 0:
			_, err = fmt.Fprintf(w, "%.6g %.6g %.6g\n",
				b.Theta().Deg(), b.MeanWtheta(), b.MeanWthetaError())
		case b.Resolution() == 0:
			_, err = fmt.Fprintf(w, "%.6g %.6g %.6g %.6g %.6g %.6g\n",
				b.Theta().Deg(), b.Wtheta(),
				b.GalGal(), b.GalRand(), b.RandGal(), b.RandRand())
		default:
			_, err = fmt.Fprintf(w, "%.6g %.6g %.6g %.6g\n",
				b.Theta().Deg(), b.Wtheta(),
				b.PixelWtheta(), b.PixelWeight())
		}
		if err != nil {
			return false
		}
	}
	return true
}

// WriteFile writes the w(theta) table to a file, reporting success.
func (c *Correlation) WriteFile(name string) bool {
	f, err := os.Create(name)
	if err != nil {
		return false
	}
	ok := c.Write(f)
	if err := f.Close(); err != nil {
		return false
	}
	return ok
}

// WriteCovariance emits the covariance matrix row major, one
//
//	theta_a  theta_b  cov(a,b)
//
// triple per line, and reports success.
func (c *Correlation) WriteCovariance(w io.Writer) bool {
	for a := range c.bins {
		for b := range c.bins {
			_, err := fmt.Fprintf(w, "%.6g %.6g %.6g\n",
				c.bins[a].Theta().Deg(), c.bins[b].Theta().Deg(),
				c.Covariance(a, b))
			if err != nil {
				return false
			}
		}
	}
	return true
}

// WriteCovarianceFile writes the covariance triples to a file, reporting
// success.
func (c *Correlation) WriteCovarianceFile(name string) bool {
	f, err := os.Create(name)
	if err != nil {
		return false
	}
	ok := c.WriteCovariance(f)
	if err := f.Close(); err != nil {
		return false
	}
	return ok
}
