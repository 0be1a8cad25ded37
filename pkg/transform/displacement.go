package transform

import (
	"github.com/samber/oops"
	"gonum.org/v1/gonum/mat"
)

// DisplacementField maps points of a downsampled reference-space slice onto
// image pixel coordinates. It is stored as deltas from the identity grid so
// that an all-zero field is a no-op.
type DisplacementField struct {
	deltaX *mat.Dense
	deltaY *mat.Dense
}

// FromTransform builds a DisplacementField from absolute target coordinates.
// tx holds the image x coordinate and ty the image y coordinate for every
// grid point. Both must have the same shape.
func FromTransform(tx, ty *mat.Dense) (*DisplacementField, error) {
	rows, cols := tx.Dims()
	if r, c := ty.Dims(); r != rows || c != cols {
		return nil, oops.Code("shape_mismatch").In("transform").
			Errorf("tx is %dx%d but ty is %dx%d", rows, cols, r, c)
	}

	deltaX := mat.NewDense(rows, cols, nil)
	deltaY := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			deltaX.Set(i, j, tx.At(i, j)-float64(j))
			deltaY.Set(i, j, ty.At(i, j)-float64(i))
		}
	}
	return &DisplacementField{deltaX: deltaX, deltaY: deltaY}, nil
}

// Shape returns the grid dimensions of the field.
func (df *DisplacementField) Shape() (rows, cols int) {
	return df.deltaX.Dims()
}

// At returns the absolute image coordinates the grid point (row, col) maps to.
func (df *DisplacementField) At(row, col int) (x, y float64) {
	return df.deltaX.At(row, col) + float64(col), df.deltaY.At(row, col) + float64(row)
}

// ParallelTransform computes the displacement field between the reference
// space and a section image, assuming the slice is parallel to one of the
// reference axes.
//
// The grid spans the two non-fixed reference axes, each divided by
// downsampleRef, while the fixed axis is held at sliceCoord. Reference
// coordinates run through the dataset's 3D alignment, then the image's 2D
// alignment, and finally get scaled down by 2^downsampleImg to match the
// resolution of the downloaded image.
func ParallelTransform(sliceCoord float64, a2d Affine2D, a3d Affine3D, axis Axis, downsampleRef, downsampleImg int) (*DisplacementField, error) {
	errBuilder := oops.Code("parallel_transform_error").In("transform").With("axis", axis)

	if downsampleRef < 1 {
		return nil, errBuilder.Errorf("downsampleRef must be positive: %d", downsampleRef)
	}
	if downsampleImg < 0 {
		return nil, errBuilder.Errorf("downsampleImg must not be negative: %d", downsampleImg)
	}

	axisFixed := -1
	var axesVariable []int
	for i, a := range refSpace {
		if a.axis == axis {
			axisFixed = i
		} else {
			axesVariable = append(axesVariable, i)
		}
	}
	if axisFixed < 0 {
		return nil, errBuilder.Errorf("unknown axis: %s", axis)
	}

	gridRows := refSpace[axesVariable[0]].size / downsampleRef
	gridCols := refSpace[axesVariable[1]].size / downsampleRef
	n := gridRows * gridCols

	// Homogeneous reference coordinates, one column per grid point.
	coordsRef := mat.NewDense(4, n, nil)
	for k := 0; k < n; k++ {
		coordsRef.Set(axisFixed, k, sliceCoord)
		coordsRef.Set(axesVariable[0], k, float64(k/gridCols*downsampleRef))
		coordsRef.Set(axesVariable[1], k, float64(k%gridCols*downsampleRef))
		coordsRef.Set(3, k, 1)
	}

	var planar mat.Dense
	planar.Mul(a3d.m, coordsRef)

	coordsTemp := mat.NewDense(3, n, nil)
	coordsTemp.SetRow(0, planar.RawRowView(0))
	coordsTemp.SetRow(1, planar.RawRowView(1))
	for k := 0; k < n; k++ {
		coordsTemp.Set(2, k, 1)
	}

	var coordsImg mat.Dense
	coordsImg.Mul(a2d.m, coordsTemp)

	scale := float64(int(1) << downsampleImg)
	tx := mat.NewDense(gridRows, gridCols, nil)
	ty := mat.NewDense(gridRows, gridCols, nil)
	for k := 0; k < n; k++ {
		tx.Set(k/gridCols, k%gridCols, coordsImg.At(0, k)/scale)
		ty.Set(k/gridCols, k%gridCols, coordsImg.At(1, k)/scale)
	}

	df, err := FromTransform(tx, ty)
	if err != nil {
		return nil, errBuilder.Wrap(err)
	}
	return df, nil
}

// GridShape returns the displacement field grid dimensions for the given
// axis and reference downsampling, without computing the field.
func GridShape(axis Axis, downsampleRef int) (rows, cols int, err error) {
	if downsampleRef < 1 {
		return 0, 0, oops.Code("grid_shape_error").In("transform").
			Errorf("downsampleRef must be positive: %d", downsampleRef)
	}
	var sizes []int
	for _, a := range refSpace {
		if a.axis != axis {
			sizes = append(sizes, a.size/downsampleRef)
		}
	}
	if len(sizes) != 2 {
		return 0, 0, oops.Code("grid_shape_error").In("transform").Errorf("unknown axis: %s", axis)
	}
	return sizes[0], sizes[1], nil
}
