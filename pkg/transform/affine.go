package transform

import (
	"gonum.org/v1/gonum/mat"
)

// Axis along which a section dataset was sliced.
type Axis string

const (
	Coronal    Axis = "coronal"
	Transverse Axis = "transverse"
	Sagittal   Axis = "sagittal"
)

// Reference space dimensions in microns. The order matters: it matches the
// (p, i, r) coordinate order of the Allen common coordinate framework.
var refSpace = []struct {
	axis Axis
	size int
}{
	{Coronal, 13200},
	{Transverse, 8000},
	{Sagittal, 11400},
}

// Affine2D is a 2x3 affine transformation between the intermediate section
// plane and image pixel coordinates.
type Affine2D struct {
	m *mat.Dense
}

// NewAffine2D builds an Affine2D from row-major elements.
func NewAffine2D(v [6]float64) Affine2D {
	return Affine2D{m: mat.NewDense(2, 3, v[:])}
}

// At returns the element at row i, column j.
func (a Affine2D) At(i, j int) float64 {
	return a.m.At(i, j)
}

// Affine3D is a 3x4 affine transformation between the reference space and
// the intermediate section plane.
type Affine3D struct {
	m *mat.Dense
}

// NewAffine3D builds an Affine3D from row-major elements, the last column
// being the translation.
func NewAffine3D(v [12]float64) Affine3D {
	return Affine3D{m: mat.NewDense(3, 4, v[:])}
}

// At returns the element at row i, column j.
func (a Affine3D) At(i, j int) float64 {
	return a.m.At(i, j)
}
