package timeline

import (
	"sort"

	"go-transport/transport"
)

// Point is one automation breakpoint. Time is in beats from the start of the
// automation content.
type Point struct {
	Time  float64
	Value float64
}

type automationPayload struct {
	param  Param
	points []Point
}

// valueAt interpolates linearly between breakpoints and holds the ends
func (a *automationPayload) valueAt(beat float64) float64 {
	pts := a.points
	if beat <= pts[0].Time {
		return pts[0].Value
	}
	last := pts[len(pts)-1]
	if beat >= last.Time {
		return last.Value
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Time > beat })
	lo, hi := pts[i-1], pts[i]
	frac := (beat - lo.Time) / (hi.Time - lo.Time)
	return lo.Value + (hi.Value-lo.Value)*frac
}

// play sets the value at content position pos and ramps through the
// remaining breakpoints up to end
func (a *automationPayload) play(tr *transport.Transport, at, pos, end float64) {
	ctx := tr.Context()
	a.param.SetValueAtTime(a.valueAt(pos), at)
	for _, pt := range a.points {
		if pt.Time <= pos {
			continue
		}
		if pt.Time > end {
			a.param.LinearRampToValueAtTime(a.valueAt(end), at+ctx.BeatsToSeconds(end-pos))
			return
		}
		a.param.LinearRampToValueAtTime(pt.Value, at+ctx.BeatsToSeconds(pt.Time-pos))
	}
}

var automationBehavior = behavior{
	onStart: func(it *Item, tr *transport.Transport, at float64) {
		offset := it.offset.Get()
		it.automation.play(tr, at, offset, offset+it.duration.Get())
	},
	onMidStart: func(it *Item, tr *transport.Transport, at, elapsed float64) {
		offset := it.offset.Get()
		pos := offset + tr.Context().SecondsToBeats(elapsed)
		it.automation.play(tr, at, pos, offset+it.duration.Get())
	},
}

// NewAutomation creates a curve driving param. Points are sorted by time; at
// least one is required. The final value holds after the end.
func NewAutomation(p Placement, param Param, points []Point) (*Item, error) {
	if param == nil || len(points) == 0 {
		return nil, ErrNilPayload
	}
	it, err := newItem(KindAutomation, p, automationBehavior)
	if err != nil {
		return nil, err
	}
	pts := append([]Point(nil), points...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time < pts[j].Time })
	it.automation = &automationPayload{param: param, points: pts}
	return it, nil
}

// ValueAt returns the automation value at beat of its content
func (it *Item) ValueAt(beat float64) float64 {
	if it.automation == nil {
		return 0
	}
	return it.automation.valueAt(beat)
}
