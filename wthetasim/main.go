// Public domain.

/*
Command wthetasim measures the angular auto-correlation of a simulated
catalog on a disk footprint.

It generates a uniform random catalog over a disk of the sky, runs the
wtheta correlation engine on it, and writes the w(theta) table.  With
-cov naming a file it also writes the covariance matrix: jack-knife when
regions are requested, the Poisson diagonal otherwise.  A
uniform catalog should produce w(theta) consistent with zero in every
bin, which makes the command a quick end-to-end check and a template for
wiring the library to real catalogs.

Usage:

	wthetasim [options]
	wthetasim -v

The output file holds one row per angular bin; see the wtheta package
documentation for column layouts.
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/soniakeys/exit"
	"github.com/soniakeys/unit"
	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/wtheta"
	"github.com/soniakeys/wtheta/footprint"
)

const versionString = "wthetasim version 0.1"
const copyrightString = "Public domain."

func main() {
	defer exit.Handler()

	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
   wthetasim [options]
   wthetasim -v

For full documentation:
   go doc github.com/soniakeys/wtheta/wthetasim
`)
		flag.PrintDefaults()
	}
	n := flag.Int("n", 100000, "catalog size")
	ra := flag.Float64("ra", 60, "disk center RA, degrees")
	dec := flag.Float64("dec", 0, "disk center Dec, degrees")
	radius := flag.Float64("radius", 3, "disk radius, degrees")
	res := flag.Uint("res", 256, "footprint resolution")
	thetaMin := flag.Float64("theta-min", .01, "minimum angular scale, degrees")
	thetaMax := flag.Float64("theta-max", 10, "maximum angular scale, degrees")
	bpd := flag.Float64("bins", 6, "bins per decade")
	randIter := flag.Int("rand", 1, "random iterations")
	regions := flag.Int("regions", 0, "jack-knife regions, 0 for none")
	seed := flag.Uint64("seed", 0, "random seed, 0 for a fixed default")
	outFile := flag.String("o", "wtheta.dat", "w(theta) output file")
	covFile := flag.String("cov", "", "covariance output file")
	quiet := flag.Bool("q", false, "suppress progress logging")
	vers := flag.Bool("v", false, "display version and copyright")
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()
	if *quiet {
		log = zerolog.Nop()
	}

	rnd := xrand.New(&xrand.PCGSource{})
	if *seed != 0 {
		rnd.Seed(*seed)
	}

	log.Info().Float64("radius", *radius).Uint("res", *res).
		Msg("building disk footprint")
	fp := footprint.NewDisk(unit.AngleFromDeg(*ra), unit.AngleFromDeg(*dec),
		unit.AngleFromDeg(*radius), uint32(*res))
	fp.SetLogger(log)
	if fp.Size() == 0 {
		exit.Log("empty footprint; check disk parameters")
	}
	log.Info().Float64("area", fp.Area()).Int("pixels", fp.Size()).
		Msg("footprint ready")

	catalog := fp.GenerateRandomPoints(*n, false, rnd)

	corr := wtheta.New(unit.AngleFromDeg(*thetaMin),
		unit.AngleFromDeg(*thetaMax), *bpd)
	corr.SetLogger(log)
	corr.SetRand(rnd)

	var err error
	if *regions > 0 {
		err = corr.FindAutoCorrelationWithRegions(fp, catalog, *randIter,
			int16(*regions), false)
	} else {
		err = corr.FindAutoCorrelation(fp, catalog, *randIter, false)
	}
	if err != nil {
		exit.Log(err)
	}

	if !corr.WriteFile(*outFile) {
		exit.Log("writing", *outFile, "failed")
	}
	log.Info().Str("file", *outFile).Msg("wrote w(theta)")

	if *covFile != "" {
		if !corr.WriteCovarianceFile(*covFile) {
			exit.Log("writing", *covFile, "failed")
		}
		log.Info().Str("file", *covFile).Msg("wrote covariance")
	}
}
