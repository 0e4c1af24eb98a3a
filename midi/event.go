package midi

import gomidi "gitlab.com/gomidi/midi/v2"

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// Controller numbers used by Panic
const (
	ccAllSoundOff uint8 = 120
	ccAllNotesOff uint8 = 123
)

// Event is one channel message as the instrument sends it
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8
	Note     uint8 // key, or controller number for CC
	Velocity uint8 // velocity, or value for CC
}

// Message encodes e for the wire
func (e Event) Message() gomidi.Message {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(e.Channel, e.Note)
	default:
		return gomidi.ControlChange(e.Channel, e.Note, e.Velocity)
	}
}

// toByte maps 0..1 onto 0..127
func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 127
	}
	return uint8(v*127 + 0.5)
}
