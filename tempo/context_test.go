package tempo

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestConversionsAt120(t *testing.T) {
	c, err := NewContext(120, 192)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if got := c.BeatsToSeconds(1); got != 0.5 {
		t.Fatalf("BeatsToSeconds(1) = %v, want 0.5", got)
	}
	if got := c.TicksToSeconds(192); got != 0.5 {
		t.Fatalf("TicksToSeconds(192) = %v, want 0.5", got)
	}
	if got := c.BeatsToTicks(2); got != 384 {
		t.Fatalf("BeatsToTicks(2) = %v, want 384", got)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, bpm := range []float64{31, 60, 97.5, 120, 174, 300} {
		for _, ppq := range []int{24, 96, 192, 480, 960} {
			c, err := NewContext(bpm, ppq)
			if err != nil {
				t.Fatalf("NewContext(%v, %d): %v", bpm, ppq, err)
			}
			for _, ticks := range []float64{0, 1, 17, 192, 1000.5, 123456} {
				back := c.SecondsToTicks(c.TicksToSeconds(ticks))
				if diff := math.Abs(c.TicksToBeats(back - ticks)); diff > 1e-6 {
					t.Errorf("bpm=%v ppq=%d ticks=%v: round trip off by %v beats", bpm, ppq, ticks, diff)
				}
			}
		}
	}
}

func TestRoundIdempotent(t *testing.T) {
	c := Default()
	for _, b := range []float64{0, 0.001, 0.3333, 1.25, 7.99999, 1e3 + 0.1234} {
		once := c.Round(b)
		if twice := c.Round(once); twice != once {
			t.Errorf("Round(%v) = %v, Round again = %v", b, once, twice)
		}
		if diff := math.Abs(once - b); diff > 0.5/float64(c.PPQ())+1e-12 {
			t.Errorf("Round(%v) moved by %v", b, diff)
		}
	}
}

func TestInvalidTempo(t *testing.T) {
	if _, err := NewContext(0, 192); !errors.Is(err, ErrInvalidBPM) {
		t.Fatalf("bpm 0: err = %v", err)
	}
	if _, err := NewContext(120, 0); !errors.Is(err, ErrInvalidPPQ) {
		t.Fatalf("ppq 0: err = %v", err)
	}
	c := Default()
	if err := c.SetBPM(-5); !errors.Is(err, ErrInvalidBPM) {
		t.Fatalf("SetBPM(-5): err = %v", err)
	}
	if c.BPM() != DefaultBPM {
		t.Fatalf("BPM changed after rejected SetBPM: %v", c.BPM())
	}
}

func TestTempoChangeUsesCurrentBPM(t *testing.T) {
	c := Default()
	var seen []float64
	dispose := c.OnTempoChange(func(bpm float64) { seen = append(seen, bpm) })

	if err := c.SetBPM(60); err != nil {
		t.Fatal(err)
	}
	if got := c.BeatsToSeconds(1); got != 1 {
		t.Fatalf("BeatsToSeconds(1) at 60bpm = %v", got)
	}
	dispose()
	_ = c.SetBPM(90)
	if len(seen) != 1 || seen[0] != 60 {
		t.Fatalf("listener calls = %v", seen)
	}
}

func TestConvert(t *testing.T) {
	c := Default()
	tests := []struct {
		in   Time
		unit Unit
		want float64
	}{
		{Beats(1), UnitSeconds, 0.5},
		{Seconds(1), UnitTicks, 384},
		{Ticks(96), UnitBeats, 0.5},
		{Beats(3), UnitBeats, 3},
	}
	for _, tt := range tests {
		got := c.Convert(tt.in, tt.unit)
		if got.Unit != tt.unit || math.Abs(got.Value-tt.want) > 1e-9 {
			t.Errorf("Convert(%v, %v) = %v, want %v", tt.in, tt.unit, got, tt.want)
		}
	}
}

func TestBarsBeatsTicks(t *testing.T) {
	if got := BarsBeatsTicks(0, 192); got != "001:1:000" {
		t.Fatalf("got %q", got)
	}
	if got := BarsBeatsTicks(192*5+10, 192); got != "002:2:010" {
		t.Fatalf("got %q", got)
	}
}
