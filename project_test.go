package main

import (
	"testing"
	"time"

	"go-transport/tempo"
	"go-transport/ticker"
	"go-transport/transport"
	"go-transport/tui"
)

func TestBuildProjectWithoutOutputs(t *testing.T) {
	clock := ticker.New(10 * time.Millisecond)
	defer clock.Close()
	tr := transport.New(tempo.Default(), clock)

	tracks, err := buildProject(project{transport: tr, clock: clock, notes: tui.NewActivity(nil, 4)})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("tracks = %d, want bass and lead only", len(tracks))
	}
	if tr.Len() != 2*bars {
		t.Fatalf("registrations = %d", tr.Len())
	}
	first := tracks[0].Items.At(0).Pattern()
	if first == nil || first.Transport().Len() != 4 {
		t.Fatal("bass pattern should hold four notes")
	}
}
