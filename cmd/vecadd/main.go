// vecadd offloads an element-wise vector addition to a parallel device
// and verifies the result on the host. It prints "Done." and exits 0 on
// success; any failure is reported on stderr and exits 1.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/parlab/vecadd/device"
	"github.com/parlab/vecadd/kernels"
	"github.com/parlab/vecadd/runner"
)

var (
	count     = flag.Int("n", runner.DefaultN, "Number of vector elements.")
	groupSize = flag.Int("group", kernels.AddVectorsGroupSize, "Work-group size for the kernel launch.")
	relTol    = flag.Float64("rel", runner.DefaultRelTol, "Relative tolerance for result validation.")
	absTol    = flag.Float64("abs", runner.DefaultAbsTol, "Absolute tolerance for result validation.")
	devProps  = flag.String("device", `{"mode": "Parallel"}`, "OCCA-style device properties JSON.")
	debug     = flag.Bool("debug", false, "Enable debug logs.")
)

var log = logrus.New()

func main() {
	flag.Parse()

	log.SetOutput(os.Stderr)
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	os.Exit(execute(os.Stdout))
}

// execute maps the run outcome onto the process contract: "Done." on
// stdout and status 0 on success, one stderr diagnostic and status 1 on
// any failure.
func execute(stdout io.Writer) int {
	if err := run(); err != nil {
		report(err)
		return 1
	}
	fmt.Fprintln(stdout, "Done.")
	return 0
}

func run() error {
	if *relTol < 0 || *absTol < 0 {
		return fmt.Errorf("tolerances must be non-negative: rel=%v, abs=%v", *relTol, *absTol)
	}

	dev, err := device.New(*devProps)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := dev.Free(); ferr != nil {
			log.WithError(ferr).Warn("device release failed")
		}
	}()

	log.WithField("mode", dev.Mode()).Debug("device created")

	return runner.VectorAdd(dev, runner.VectorAddConfig{
		N:         *count,
		GroupSize: *groupSize,
		RelTol:    *relTol,
		AbsTol:    *absTol,
	})
}

// report writes one diagnostic line for the failure, keyed by its
// category in the error taxonomy.
func report(err error) {
	var (
		hostAlloc *runner.AllocationError
		devAlloc  *runner.DeviceAllocationError
		transfer  *runner.TransferError
		kernel    *runner.KernelError
		valid     *runner.ValidationError
		dealloc   *runner.DeallocationError
	)
	switch {
	case errors.As(err, &hostAlloc):
		log.WithField("buffer", hostAlloc.Buffer).Error(err)
	case errors.As(err, &devAlloc):
		log.WithField("buffer", devAlloc.Buffer).Error(err)
	case errors.As(err, &transfer):
		log.WithField("buffer", transfer.Buffer).Error(err)
	case errors.As(err, &kernel):
		log.WithField("kernel", kernel.Kernel).Error(err)
	case errors.As(err, &valid):
		log.WithFields(logrus.Fields{
			"index":    valid.Index,
			"expected": valid.Expected,
			"actual":   valid.Actual,
		}).Error(err)
	case errors.As(err, &dealloc):
		log.WithField("buffer", dealloc.Buffer).Error(err)
	default:
		log.Error(err)
	}
}
