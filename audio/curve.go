package audio

import (
	"sort"
	"sync"
)

type curvePoint struct {
	at    float64
	value float64
	ramp  bool
}

// Curve is a value automated over clock seconds. Setting or ramping to a
// time drops every later point, so a restarted automation replaces the
// previous plan.
type Curve struct {
	mu      sync.Mutex
	initial float64
	points  []curvePoint
}

// NewCurve returns a curve holding initial until the first point
func NewCurve(initial float64) *Curve {
	return &Curve{initial: initial}
}

// SetValueAtTime jumps to value at the second at
func (c *Curve) SetValueAtTime(value, at float64) {
	c.insert(curvePoint{at: at, value: value})
}

// LinearRampToValueAtTime moves linearly from the previous point to value,
// arriving at the second at
func (c *Curve) LinearRampToValueAtTime(value, at float64) {
	c.insert(curvePoint{at: at, value: value, ramp: true})
}

func (c *Curve) insert(p curvePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].at >= p.at })
	c.points = append(c.points[:i], p)
}

// ValueAt returns the value at clock second t
func (c *Curve) ValueAt(t float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	pts := c.points
	i := sort.Search(len(pts), func(i int) bool { return pts[i].at > t })
	prevAt, prevVal := t, c.initial
	if i > 0 {
		prevAt, prevVal = pts[i-1].at, pts[i-1].value
	}
	if i == len(pts) || !pts[i].ramp || i == 0 {
		return prevVal
	}
	next := pts[i]
	frac := (t - prevAt) / (next.at - prevAt)
	return prevVal + (next.value-prevVal)*frac
}

// Prune forgets points no longer needed to evaluate times from t on
func (c *Curve) Prune(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].at > t })
	if i <= 1 {
		return
	}
	keep := c.points[i-1]
	c.initial = keep.value
	c.points = append([]curvePoint{keep}, c.points[i:]...)
}

// Len returns the number of pending points
func (c *Curve) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.points)
}
