package midi

import "sync"

// Instrument plays notes on one MIDI channel. Note on and off messages are
// held back until their absolute times.
type Instrument struct {
	*output

	mu       sync.Mutex
	sounding map[uint8]int
	triggers map[uint8][]trigger
}

// trigger is the pending message pair of one TriggerAttackRelease
type trigger struct{ on, off int }

// NewInstrument sends on channel (0-15). now must read the clock the
// transport stamps callbacks with, usually ticker.Default().Now.
func NewInstrument(send Send, channel uint8, now func() float64, opts ...Option) *Instrument {
	return &Instrument{
		output:   newOutput(send, channel, now, opts),
		sounding: make(map[uint8]int),
		triggers: make(map[uint8][]trigger),
	}
}

// TriggerAttackRelease sends note on at the second at and note off duration
// seconds later. velocity is 0..1.
func (i *Instrument) TriggerAttackRelease(note uint8, duration, at, velocity float64) {
	note &= 0x7F
	vel := toByte(velocity)
	if vel == 0 {
		vel = 1
	}

	// Held across both requests so the off callback sees its own id
	i.mu.Lock()
	defer i.mu.Unlock()
	var tr trigger
	tr.on = i.at(at, func() { i.noteOn(note, vel) })
	if tr.on == 0 {
		return
	}
	tr.off = i.at(at+duration, func() {
		i.mu.Lock()
		off := tr.off
		i.mu.Unlock()
		i.noteOff(note, off)
	})
	i.triggers[note] = append(i.triggers[note], tr)
}

// Release cuts every trigger of note short at the second at. Notes not yet
// sounding are dropped; sounding ones get their note off moved to at, sent
// before returning when at is not in the future.
func (i *Instrument) Release(note uint8, at float64) {
	note &= 0x7F
	i.mu.Lock()
	trs := i.triggers[note]
	delete(i.triggers, note)
	i.mu.Unlock()

	held := 0
	for _, tr := range trs {
		if !i.stop(tr.on) {
			held++
		}
		i.stop(tr.off)
	}
	late := at <= i.now()
	for ; held > 0; held-- {
		if late {
			i.noteOff(note, 0)
			continue
		}
		i.at(at, func() { i.noteOff(note, 0) })
	}
}

func (i *Instrument) noteOn(note, vel uint8) {
	i.mu.Lock()
	i.sounding[note]++
	i.mu.Unlock()
	i.write(Event{Type: NoteOn, Note: note, Velocity: vel})
}

// noteOff releases note. off is the id of the trigger it completes, 0 for
// an early release.
func (i *Instrument) noteOff(note uint8, off int) {
	i.mu.Lock()
	if n := i.sounding[note]; n > 1 {
		i.sounding[note] = n - 1
	} else {
		delete(i.sounding, note)
	}
	if off != 0 {
		i.forgetLocked(note, off)
	}
	i.mu.Unlock()
	i.write(Event{Type: NoteOff, Note: note})
}

func (i *Instrument) forgetLocked(note uint8, off int) {
	trs := i.triggers[note]
	for k, tr := range trs {
		if tr.off == off {
			trs = append(trs[:k], trs[k+1:]...)
			break
		}
	}
	if len(trs) == 0 {
		delete(i.triggers, note)
	} else {
		i.triggers[note] = trs
	}
}

// Sounding returns how many notes are currently held
func (i *Instrument) Sounding() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sounding)
}

// Panic cancels pending messages and silences the channel
func (i *Instrument) Panic() {
	dropped := i.cancel()

	i.mu.Lock()
	notes := make([]uint8, 0, len(i.sounding))
	for n := range i.sounding {
		notes = append(notes, n)
	}
	i.sounding = make(map[uint8]int)
	i.triggers = make(map[uint8][]trigger)
	i.mu.Unlock()

	for _, n := range notes {
		i.write(Event{Type: NoteOff, Note: n})
	}
	i.write(Event{Type: CC, Note: ccAllNotesOff})
	i.write(Event{Type: CC, Note: ccAllSoundOff})
	i.log.Debug().Int("dropped", dropped).Int("released", len(notes)).Msg("panic")
}

// Close silences the channel and rejects further triggers
func (i *Instrument) Close() {
	i.Panic()
	i.close()
}

// Param returns an automation target for controller cc on this channel
func (i *Instrument) Param(cc uint8) *CCParam {
	return &CCParam{out: i.output, controller: cc & 0x7F}
}
