package zone

import "math"

// anchor is a peer with a known position and a measured range to it.
type anchor struct {
	id   int
	x, y float64
	r    float64
}

const degenerateDet = 1e-9

// locate estimates a 2-D position from ranges to known peers. prevX/prevY
// break ties between candidate solutions and seed the one-peer case.
func locate(prevX, prevY float64, peers []anchor) (float64, float64, bool) {
	switch len(peers) {
	case 0:
		return 0, 0, false
	case 1:
		x, y := project(prevX, prevY, peers[0])
		return x, y, true
	case 2:
		x, y := intersect(prevX, prevY, peers[0], peers[1])
		return x, y, true
	}
	if x, y, ok := leastSquares(peers); ok {
		return x, y, true
	}
	x, y := intersect(prevX, prevY, peers[0], peers[1])
	return x, y, true
}

// project moves the previous estimate radially so it sits r away from a.
func project(prevX, prevY float64, a anchor) (float64, float64) {
	dx, dy := prevX-a.x, prevY-a.y
	n := math.Hypot(dx, dy)
	if n == 0 {
		return a.x + a.r, a.y
	}
	return a.x + dx/n*a.r, a.y + dy/n*a.r
}

// intersect picks the intersection of two range circles nearest the previous
// estimate. Circles that do not meet resolve to the best point on the line
// between their centres.
func intersect(prevX, prevY float64, a, b anchor) (float64, float64) {
	dx, dy := b.x-a.x, b.y-a.y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return project(prevX, prevY, a)
	}
	ux, uy := dx/d, dy/d

	if d >= a.r+b.r || d <= math.Abs(a.r-b.r) {
		var t float64
		switch {
		case d >= a.r+b.r:
			// apart: split the gap in proportion to the ranges
			if a.r+b.r == 0 {
				t = d / 2
			} else {
				t = d * a.r / (a.r + b.r)
			}
		case a.r >= b.r:
			// b's circle inside a's: go past b
			t = (a.r + d + b.r) / 2
		default:
			t = (d - b.r - a.r) / 2
		}
		return a.x + ux*t, a.y + uy*t
	}

	along := (a.r*a.r - b.r*b.r + d*d) / (2 * d)
	h := math.Sqrt(math.Max(0, a.r*a.r-along*along))
	mx, my := a.x+ux*along, a.y+uy*along

	x1, y1 := mx-uy*h, my+ux*h
	x2, y2 := mx+uy*h, my-ux*h
	if math.Hypot(x1-prevX, y1-prevY) <= math.Hypot(x2-prevX, y2-prevY) {
		return x1, y1
	}
	return x2, y2
}

// leastSquares linearises the range equations against the first peer and
// solves the 2x2 normal equations.
func leastSquares(peers []anchor) (float64, float64, bool) {
	p0 := peers[0]
	var a11, a12, a22, b1, b2 float64
	for _, p := range peers[1:] {
		ax := 2 * (p.x - p0.x)
		ay := 2 * (p.y - p0.y)
		rhs := p0.r*p0.r - p.r*p.r + p.x*p.x - p0.x*p0.x + p.y*p.y - p0.y*p0.y

		a11 += ax * ax
		a12 += ax * ay
		a22 += ay * ay
		b1 += ax * rhs
		b2 += ay * rhs
	}

	det := a11*a22 - a12*a12
	if math.Abs(det) < degenerateDet {
		return 0, 0, false
	}
	x := (b1*a22 - b2*a12) / det
	y := (a11*b2 - a12*b1) / det
	return x, y, true
}
