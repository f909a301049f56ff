package ransac

import (
	"slices"

	"go.viam.com/robustpose/spatialmath"
)

const eps = spatialmath.Epsilon

// compareWithin orders a and b, treating them as equal when they are at most tol apart.
func compareWithin(a, b, tol float64) int {
	switch d := a - b; {
	case d < -tol:
		return -1
	case d > tol:
		return 1
	default:
		return 0
	}
}

// compareObject orders correspondences by the squared norm of their world point, then by X, Y
// and Z. Zero means the world points are duplicates.
func compareObject(a, b spatialmath.Correspondence) int {
	if c := compareWithin(a.World.Norm2(), b.World.Norm2(), 3*eps*eps); c != 0 {
		return c
	}
	if c := compareWithin(a.World.X, b.World.X, eps); c != 0 {
		return c
	}
	if c := compareWithin(a.World.Y, b.World.Y, eps); c != 0 {
		return c
	}
	return compareWithin(a.World.Z, b.World.Z, eps)
}

// compareImage is compareObject for the image points.
func compareImage(a, b spatialmath.Correspondence) int {
	na := a.Image.X*a.Image.X + a.Image.Y*a.Image.Y
	nb := b.Image.X*b.Image.X + b.Image.Y*b.Image.Y
	if c := compareWithin(na, nb, 2*eps*eps); c != 0 {
		return c
	}
	if c := compareWithin(a.Image.X, b.Image.X, eps); c != 0 {
		return c
	}
	return compareWithin(a.Image.Y, b.Image.Y, eps)
}

type indexedPoint struct {
	point spatialmath.Correspondence
	index int
}

// uniqueSorted inserts points in order into a slice sorted by cmp, dropping every point that
// compares equal to one already inserted.
func uniqueSorted(points []indexedPoint, cmp func(a, b spatialmath.Correspondence) int) []indexedPoint {
	unique := make([]indexedPoint, 0, len(points))
	for _, p := range points {
		pos, found := slices.BinarySearchFunc(unique, p, func(e, target indexedPoint) int {
			return cmp(e.point, target.point)
		})
		if found {
			continue
		}
		unique = slices.Insert(unique, pos, p)
	}
	return unique
}

// FilterDegenerate removes duplicated correspondences. A first pass drops points whose world
// point duplicates an earlier one, a second pass over the survivors drops points whose image
// point duplicates an earlier one. The filtered points are ordered by their world point and
// indexMap[i] is the index in points of filtered[i]; the first occurrence of a duplicate is the
// one kept.
func FilterDegenerate(points []spatialmath.Correspondence) (filtered []spatialmath.Correspondence, indexMap []int) {
	all := make([]indexedPoint, len(points))
	for i, p := range points {
		all[i] = indexedPoint{point: p, index: i}
	}
	byObject := uniqueSorted(all, compareObject)

	// The second pass only decides membership, the survivors keep their world point order.
	seen := uniqueSorted(byObject, compareImage)
	kept := make(map[int]bool, len(seen))
	for _, p := range seen {
		kept[p.index] = true
	}

	filtered = make([]spatialmath.Correspondence, 0, len(seen))
	indexMap = make([]int, 0, len(seen))
	for _, p := range byObject {
		if kept[p.index] {
			filtered = append(filtered, p.point)
			indexMap = append(indexMap, p.index)
		}
	}
	return filtered, indexMap
}
