package tempo

import "fmt"

// Unit tags a Time value
type Unit int

const (
	UnitBeats Unit = iota
	UnitTicks
	UnitSeconds
)

func (u Unit) String() string {
	switch u {
	case UnitTicks:
		return "ticks"
	case UnitSeconds:
		return "s"
	default:
		return "beats"
	}
}

// Time is a dimensioned position or length
type Time struct {
	Value float64
	Unit  Unit
}

func Ticks(v float64) Time   { return Time{Value: v, Unit: UnitTicks} }
func Beats(v float64) Time   { return Time{Value: v, Unit: UnitBeats} }
func Seconds(v float64) Time { return Time{Value: v, Unit: UnitSeconds} }

func (t Time) String() string {
	return fmt.Sprintf("%g%s", t.Value, t.Unit)
}

// BarsBeatsTicks formats a tick position as bar:beat:tick (4/4, 1-based bar and beat)
func BarsBeatsTicks(ticks float64, ppq int) string {
	if ticks < 0 {
		ticks = 0
	}
	total := int64(ticks)
	perBeat := int64(ppq)
	perBar := perBeat * 4
	bar := total / perBar
	beat := (total % perBar) / perBeat
	tick := total % perBeat
	return fmt.Sprintf("%03d:%d:%03d", bar+1, beat+1, tick)
}
