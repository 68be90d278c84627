// internal/geometry/geometry.go
package geometry

import "github.com/web-traces/wlprep/pkg/models"

// IntersectionOverUnion returns the overlap area of a and b divided by the
// area of their union. Degenerate boxes never overlap anything: whenever
// the union would be empty or negative the result is 0 rather than NaN.
func IntersectionOverUnion(a, b models.BoundingBox) float64 {
	left := max(a.X, b.X)
	top := max(a.Y, b.Y)
	right := min(a.X+a.Width, b.X+b.Width)
	bottom := min(a.Y+a.Height, b.Y+b.Height)

	if right <= left || bottom <= top {
		return 0
	}
	overlap := (right - left) * (bottom - top)

	union := a.Area() + b.Area() - overlap
	if union <= 0 {
		return 0
	}
	return overlap / union
}

// VisibilityFraction returns the fraction of box lying inside the screen
// rectangle: 0 when degenerate or fully off-screen, 1 when fully contained,
// otherwise clipped area over total area, clamped to [0,1].
func VisibilityFraction(box models.BoundingBox, screen models.Screen) float64 {
	total := box.Area()
	if total <= 0 {
		return 0
	}

	if box.X+box.Width < 0 || box.X > screen.Width ||
		box.Y+box.Height < 0 || box.Y > screen.Height {
		return 0
	}
	if box.X >= 0 && box.Y >= 0 &&
		box.X+box.Width <= screen.Width && box.Y+box.Height <= screen.Height {
		return 1
	}

	left := max(box.X, 0)
	top := max(box.Y, 0)
	right := min(box.X+box.Width, screen.Width)
	bottom := min(box.Y+box.Height, screen.Height)

	frac := (right - left) * (bottom - top) / total
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}
