//go:build blas

package main

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Building with `-tags blas` swaps gonum's native kernels for the system
// BLAS, which matters once DModel grows past toy sizes.
func init() {
	blas64.Use(netlib.Implementation{})
}
