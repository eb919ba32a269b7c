// Package kernels holds the device kernels shared by every backend.
// Each kernel is registered once, under one name, with its OKL source
// for the OCCA backends and the matching Go lane function for the
// Parallel backend.
package kernels

import "github.com/parlab/vecadd/device"

// AddVectors computes the element-wise sum c[i] = a[i] + b[i]. Each lane
// owns exactly one output element; lanes past N do nothing.
const AddVectors = "addVectors"

// AddVectorsGroupSize is the inner loop width of the OKL form and the
// default launch group size. Any positive group size covers the range
// on the Parallel backend via ceiling division.
const AddVectorsGroupSize = 256

const addVectorsOKL = `
@kernel void addVectors(const int N,
                        const double *a,
                        const double *b,
                        double *c) {
  for (int g = 0; g < (N + 255) / 256; ++g; @outer) {
    for (int i = 0; i < 256; ++i; @inner) {
      const int gid = g * 256 + i;
      if (gid < N) {
        c[gid] = a[gid] + b[gid];
      }
    }
  }
}
`

func addVectorsLane(gid int, args []interface{}) {
	n := device.IntArg(args[0])
	if gid >= n {
		return
	}
	a := device.Float64Arg(args[1])
	b := device.Float64Arg(args[2])
	c := device.Float64Arg(args[3])
	c[gid] = a[gid] + b[gid]
}

func init() {
	device.Register(AddVectors, addVectorsOKL, addVectorsLane)
}
