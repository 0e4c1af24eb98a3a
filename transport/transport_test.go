package transport

import (
	"fmt"
	"math"
	"testing"

	"github.com/pkg/errors"

	"go-transport/tempo"
)

// manualClock ticks only when told to
type manualClock struct {
	now  float64
	next int
	subs map[int]func(float64)
	ids  []int
}

func newManualClock() *manualClock {
	return &manualClock{subs: map[int]func(float64){}}
}

func (c *manualClock) Now() float64 { return c.now }

func (c *manualClock) OnDidTick(fn func(float64)) func() {
	c.next++
	id := c.next
	c.subs[id] = fn
	c.ids = append(c.ids, id)
	return func() { delete(c.subs, id) }
}

func (c *manualClock) listeners() int { return len(c.subs) }

// advance moves time forward in steps of dt, ticking after each step
func (c *manualClock) advance(total, dt float64) {
	for elapsed := 0.0; elapsed < total-1e-9; elapsed += dt {
		c.now += dt
		for _, id := range c.ids {
			if fn, ok := c.subs[id]; ok {
				fn(c.now)
			}
		}
	}
}

type recorder struct {
	log []string
	at  map[string]float64
}

func newRecorder() *recorder { return &recorder{at: map[string]float64{}} }

func (r *recorder) add(name string, at float64) {
	r.log = append(r.log, name)
	r.at[name] = at
}

func (r *recorder) event(name string, beat, duration float64) Event {
	return Event{
		Time:     beat,
		Duration: duration,
		OnStart:  func(at float64) { r.add(name+":start", at) },
		OnMidStart: func(at, elapsed float64) {
			r.add(name+":mid", elapsed)
		},
		OnEnd: func(at float64) { r.add(name+":end", at) },
	}
}

func newTestTransport(t *testing.T, opts ...Option) (*Transport, *manualClock) {
	t.Helper()
	ctx, err := tempo.NewContext(120, 192)
	if err != nil {
		t.Fatal(err)
	}
	clock := newManualClock()
	return New(ctx, clock, opts...), clock
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func equalLog(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log = %v, want %v", got, want)
		}
	}
}

func TestEventsFireOnceInOrder(t *testing.T) {
	tr, clock := newTestTransport(t)
	var starts, ends []string
	at := map[string]float64{}
	// registered out of order, with lengths that make ends overlap later starts
	for i := 4; i >= 0; i-- {
		name := fmt.Sprintf("n%d", i)
		ev := Event{
			Time:     float64(i) * 0.5,
			Duration: 0.75,
			OnStart:  func(s float64) { starts = append(starts, name); at[name+":start"] = s },
			OnEnd:    func(s float64) { ends = append(ends, name); at[name+":end"] = s },
		}
		if _, err := tr.Schedule(ev); err != nil {
			t.Fatal(err)
		}
	}

	tr.Start()
	clock.advance(2, 0.03)

	want := []string{"n0", "n1", "n2", "n3", "n4"}
	equalLog(t, starts, want)
	equalLog(t, ends, want)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("n%d", i)
		start := float64(i) * 0.25
		if got := at[name+":start"]; !near(got, start) {
			t.Errorf("%s start at %v, want %v", name, got, start)
		}
		if got := at[name+":end"]; !near(got, start+0.375) {
			t.Errorf("%s end at %v, want %v", name, got, start+0.375)
		}
	}
}

func TestNoteTimesAt120(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(rec.event("a", 0, 0.25))
	tr.Schedule(rec.event("b", 1, 0.25))

	tr.Start()
	clock.advance(1, 0.03)

	if !near(rec.at["a:start"], 0) || !near(rec.at["b:start"], 0.5) {
		t.Fatalf("starts = %v %v", rec.at["a:start"], rec.at["b:start"])
	}
	if !near(rec.at["a:end"], 0.125) || !near(rec.at["b:end"], 0.625) {
		t.Fatalf("ends = %v %v", rec.at["a:end"], rec.at["b:end"])
	}
}

func TestLookaheadStampsExactTimes(t *testing.T) {
	tr, clock := newTestTransport(t, WithLookahead(0.1))
	rec := newRecorder()
	tr.Schedule(rec.event("x", 0.3, 0))

	tr.Start()
	clock.advance(0.06, 0.03)
	if _, ok := rec.at["x:start"]; !ok {
		t.Fatal("event inside lookahead did not fire")
	}
	if !near(rec.at["x:start"], 0.15) {
		t.Fatalf("at = %v, want 0.15", rec.at["x:start"])
	}
}

func TestZeroDurationStartThenEnd(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(rec.event("z", 0.1, 0))

	tr.Start()
	clock.advance(0.3, 0.03)

	equalLog(t, rec.log, []string{"z:start", "z:end"})
	if rec.at["z:start"] != rec.at["z:end"] {
		t.Fatal("instant event ended at a different time")
	}
}

func TestTieBreakEndsBeforeStarts(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(rec.event("b", 1, 0.5))
	tr.Schedule(rec.event("a", 0.5, 0.5))
	tr.Schedule(rec.event("c", 1, 0.5))

	tr.Start()
	clock.advance(2, 0.5)

	equalLog(t, rec.log, []string{"a:start", "a:end", "b:start", "c:start", "b:end", "c:end"})
}

func TestStartFromMidStart(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(rec.event("long", 0, 4))
	tr.Schedule(rec.event("edge", 1, 1))
	tr.Schedule(rec.event("past", 0, 0.5))

	if err := tr.StartFrom(1); err != nil {
		t.Fatal(err)
	}
	equalLog(t, rec.log, []string{"long:mid"})
	if !near(rec.at["long:mid"], 0.5) {
		t.Fatalf("elapsed = %v, want 0.5", rec.at["long:mid"])
	}

	clock.advance(0.03, 0.03)
	equalLog(t, rec.log, []string{"long:mid", "edge:start"})
	if _, ok := rec.at["past:start"]; ok {
		t.Fatal("event before start position fired")
	}
}

func TestStopFlushesAndRewinds(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(rec.event("held", 0, 8))

	tr.Start()
	clock.advance(0.3, 0.03)
	tr.Stop()

	equalLog(t, rec.log, []string{"held:start", "held:end"})
	if !near(rec.at["held:end"], clock.now) {
		t.Fatalf("synthetic end at %v, want %v", rec.at["held:end"], clock.now)
	}
	if tr.State() != Stopped || tr.Ticks() != 0 {
		t.Fatalf("state %s ticks %v", tr.State(), tr.Ticks())
	}
	if clock.listeners() != 0 {
		t.Fatal("stopped transport still subscribed")
	}

	tr.Start()
	clock.advance(0.03, 0.03)
	if len(rec.log) != 3 || rec.log[2] != "held:start" {
		t.Fatalf("restart log = %v", rec.log)
	}
}

func TestPauseResumeKeepsActivation(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(rec.event("a", 0, 1))
	tr.Schedule(rec.event("b", 1, 0.5))

	tr.Start()
	clock.advance(0.24, 0.03)
	if err := tr.Pause(); err != nil {
		t.Fatal(err)
	}
	pausedAt := tr.Ticks()
	clock.advance(5, 0.5)
	if tr.Ticks() != pausedAt {
		t.Fatal("playhead moved while paused")
	}
	equalLog(t, rec.log, []string{"a:start"})

	tr.Start()
	clock.advance(1, 0.03)
	equalLog(t, rec.log, []string{"a:start", "a:end", "b:start", "b:end"})

	if err := tr.Pause(); err != nil {
		t.Fatal(err)
	}
	tr.Stop()
	if err := tr.Pause(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("pause while stopped: %v", err)
	}
}

func TestPauseRefiresLookaheadStarts(t *testing.T) {
	tr, clock := newTestTransport(t, WithLookahead(0.1))
	rec := newRecorder()
	tr.Schedule(rec.event("n", 0.5, 0.5))

	tr.Start()
	clock.advance(0.18, 0.03)
	equalLog(t, rec.log, []string{"n:start"})

	if err := tr.Pause(); err != nil {
		t.Fatal(err)
	}
	// started early by the lookahead, so pausing ends it at once
	equalLog(t, rec.log, []string{"n:start", "n:end"})
	if !near(rec.at["n:end"], clock.now) {
		t.Fatalf("end at %v, want %v", rec.at["n:end"], clock.now)
	}

	clock.advance(10, 1)
	tr.Start()
	clock.advance(0.12, 0.03)
	equalLog(t, rec.log, []string{"n:start", "n:end", "n:start"})
	if got := rec.at["n:start"]; !near(got, 10.25) {
		t.Fatalf("resumed start at %v, want 10.25", got)
	}
}

func TestPauseRewindsEmbeddedLookahead(t *testing.T) {
	parent, clock := newTestTransport(t, WithLookahead(0.1))
	child := New(parent.Context(), clock, WithName("pattern"))
	rec := newRecorder()
	child.Schedule(rec.event("n", 0.5, 0.5))
	if _, err := parent.Embed(child, 0, 4); err != nil {
		t.Fatal(err)
	}

	parent.Start()
	clock.advance(0.18, 0.03)
	if err := parent.Pause(); err != nil {
		t.Fatal(err)
	}
	equalLog(t, rec.log, []string{"n:start", "n:end"})
	if child.State() != Started {
		t.Fatalf("child state %s, want it kept under the paused placement", child.State())
	}

	clock.advance(10, 1)
	parent.Start()
	clock.advance(0.12, 0.03)
	equalLog(t, rec.log, []string{"n:start", "n:end", "n:start"})
	if got := rec.at["n:start"]; !near(got, 10.25) {
		t.Fatalf("resumed start at %v, want 10.25", got)
	}
}

func TestSeekWhileStopped(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(rec.event("early", 0, 0.5))
	tr.Schedule(rec.event("late", 2, 0.5))

	if err := tr.Seek(2); err != nil {
		t.Fatal(err)
	}
	tr.Start()
	clock.advance(0.03, 0.03)
	equalLog(t, rec.log, []string{"late:start"})
}

func TestRejectsNegativeValues(t *testing.T) {
	tr, _ := newTestTransport(t)
	cases := []struct {
		ev   Event
		want error
	}{
		{Event{Time: -1}, ErrNegativeTime},
		{Event{Duration: -0.5}, ErrNegativeDuration},
		{Event{Offset: -2}, ErrNegativeOffset},
		{Event{Time: math.NaN()}, ErrNegativeTime},
	}
	for _, c := range cases {
		if _, err := tr.Schedule(c.ev); !errors.Is(err, c.want) {
			t.Errorf("Schedule(%+v) = %v, want %v", c.ev, err, c.want)
		}
	}
	if tr.Len() != 0 {
		t.Fatal("rejected events were registered")
	}
	if err := tr.StartFrom(-1); !errors.Is(err, ErrNegativePosition) {
		t.Fatalf("StartFrom(-1) = %v", err)
	}
}

func TestDisposeActiveFiresEnd(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	dispose, err := tr.Schedule(rec.event("a", 0, 4))
	if err != nil {
		t.Fatal(err)
	}
	tr.Start()
	clock.advance(0.09, 0.03)

	dispose()
	dispose()
	equalLog(t, rec.log, []string{"a:start", "a:end"})
	if tr.Len() != 0 {
		t.Fatal("still registered")
	}

	clock.advance(3, 0.03)
	if len(rec.log) != 2 {
		t.Fatalf("disposed event fired again: %v", rec.log)
	}
}

func TestDisposeIdleIsSilent(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	dispose, _ := tr.Schedule(rec.event("a", 1, 1))
	tr.Start()
	clock.advance(0.03, 0.03)
	dispose()
	clock.advance(2, 0.03)
	if len(rec.log) != 0 {
		t.Fatalf("log = %v", rec.log)
	}
}

func TestScheduleFromCallback(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(Event{Time: 0, OnStart: func(at float64) {
		tr.Schedule(rec.event("later", 1, 0))
	}})

	tr.Start()
	clock.advance(1, 0.03)
	if _, ok := rec.at["later:start"]; !ok {
		t.Fatal("event scheduled from a callback did not fire")
	}
}

func TestEmbeddedNoteTime(t *testing.T) {
	parent, clock := newTestTransport(t)
	child := New(parent.Context(), clock, WithName("pattern"))
	rec := newRecorder()
	child.Schedule(rec.event("note", 2, 0.5))

	if _, err := parent.Embed(child, 10, 4); err != nil {
		t.Fatal(err)
	}
	parent.Start()
	clock.advance(8, 0.03)

	if !near(rec.at["note:start"], 6) {
		t.Fatalf("note at %v, want 6 (beat 12)", rec.at["note:start"])
	}
	if !near(rec.at["note:end"], 6.25) {
		t.Fatalf("note end at %v", rec.at["note:end"])
	}
	if child.State() != Stopped {
		t.Fatalf("child state %s after placement end", child.State())
	}
}

func TestEmbedWithOffsetSkipsEarlyNotes(t *testing.T) {
	parent, clock := newTestTransport(t)
	child := New(parent.Context(), clock)
	rec := newRecorder()
	child.Schedule(rec.event("first", 0, 0.5))
	child.Schedule(rec.event("second", 2, 0.5))

	parent.EmbedWithOffset(child, 4, 4, 1)
	parent.Start()
	clock.advance(6, 0.03)

	equalLog(t, rec.log, []string{"second:start", "second:end"})
	// child beat 2 plays at parent beat 4 + (2 - 1)
	if !near(rec.at["second:start"], 2.5) {
		t.Fatalf("second at %v", rec.at["second:start"])
	}
}

func TestEmbedMidStartAndStop(t *testing.T) {
	parent, clock := newTestTransport(t)
	child := New(parent.Context(), clock)
	rec := newRecorder()
	child.Schedule(rec.event("pad", 0, 4))
	child.Schedule(rec.event("hit", 3, 0))

	parent.Embed(child, 2, 4)
	if err := parent.StartFrom(3); err != nil {
		t.Fatal(err)
	}
	equalLog(t, rec.log, []string{"pad:mid"})
	if !near(rec.at["pad:mid"], 0.5) {
		t.Fatalf("elapsed = %v", rec.at["pad:mid"])
	}

	clock.advance(1.1, 0.03)
	equalLog(t, rec.log, []string{"pad:mid", "hit:start", "hit:end"})

	parent.Stop()
	equalLog(t, rec.log, []string{"pad:mid", "hit:start", "hit:end", "pad:end"})
	if child.State() != Stopped {
		t.Fatal("child not stopped with parent")
	}
}

func TestEmbeddedCallbacksSortWithParent(t *testing.T) {
	parent, clock := newTestTransport(t, WithLookahead(1))
	child := New(parent.Context(), clock)
	rec := newRecorder()
	child.Schedule(rec.event("child", 1, 0))
	parent.Schedule(rec.event("parent", 1, 0))
	if _, err := parent.Embed(child, 0.5, 4); err != nil {
		t.Fatal(err)
	}

	parent.Start()
	clock.advance(0.03, 0.03)

	// parent beat 1 comes before the child's beat 1 at parent beat 1.5
	equalLog(t, rec.log, []string{"parent:start", "parent:end", "child:start", "child:end"})
	if !near(rec.at["child:start"], 0.75) {
		t.Fatalf("child at %v", rec.at["child:start"])
	}
}

func TestOverlappingPlacementTakesOver(t *testing.T) {
	parent, clock := newTestTransport(t)
	child := New(parent.Context(), clock)
	rec := newRecorder()
	child.Schedule(rec.event("pad", 0, 8))
	parent.Embed(child, 0, 4)
	parent.Embed(child, 2, 4)

	parent.Start()
	clock.advance(2.5, 0.03)

	// the second placement restarts the child and the first one's end
	// leaves it running
	equalLog(t, rec.log, []string{"pad:start", "pad:end", "pad:start"})
	if child.State() != Started {
		t.Fatalf("child state %s", child.State())
	}
	if !near(rec.at["pad:start"], 1) {
		t.Fatalf("restart at %v", rec.at["pad:start"])
	}

	parent.Stop()
	equalLog(t, rec.log, []string{"pad:start", "pad:end", "pad:start", "pad:end"})
}

func TestEmbedCycle(t *testing.T) {
	a, clock := newTestTransport(t)
	b := New(a.Context(), clock)
	c := New(a.Context(), clock)

	if _, err := a.Embed(a, 0, 1); !errors.Is(err, ErrEmbedCycle) {
		t.Fatalf("self embed: %v", err)
	}
	if _, err := a.Embed(b, 0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Embed(c, 0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed(a, 0, 1); !errors.Is(err, ErrEmbedCycle) {
		t.Fatalf("indirect cycle: %v", err)
	}
	if _, err := a.Embed(c, 2, 1); err != nil {
		t.Fatalf("repeat placement: %v", err)
	}
}

func TestTempoChangeAffectsSpacing(t *testing.T) {
	tr, clock := newTestTransport(t)
	rec := newRecorder()
	tr.Schedule(rec.event("a", 0, 0))
	tr.Schedule(rec.event("b", 4, 0))

	tr.Start()
	clock.advance(0.03, 0.03)
	if err := tr.Context().SetBPM(60); err != nil {
		t.Fatal(err)
	}
	clock.advance(5, 0.03)
	// at 60 bpm four beats take about four seconds
	if got := rec.at["b:start"]; got < 3.9 || got > 4.1 {
		t.Fatalf("b at %v", got)
	}
}

func TestEventsSnapshot(t *testing.T) {
	tr, clock := newTestTransport(t)
	child := New(tr.Context(), clock)
	tr.Schedule(Event{Time: 1, Duration: 2})
	tr.Embed(child, 4, 4)

	infos := tr.Events()
	if len(infos) != 2 {
		t.Fatalf("infos = %+v", infos)
	}
	if infos[0].Time != 1 || infos[0].Duration != 2 || infos[0].Embedded {
		t.Fatalf("first = %+v", infos[0])
	}
	if !infos[1].Embedded || infos[1].ID <= infos[0].ID {
		t.Fatalf("second = %+v", infos[1])
	}
}
