package sonant

import (
	"encoding/binary"
	"math"
)

// Filter is the closed set of state-variable filter outputs a Sonant
// instrument can select.
type Filter uint8

const (
	FilterNone Filter = iota
	FilterHighPass
	FilterLowPass
	FilterBandPass
	FilterNotch
)

func parseFilter(b byte) (Filter, error) {
	if b > byte(FilterNotch) {
		return 0, ErrInvalidFilter
	}
	return Filter(b), nil
}

// Oscillator is one of the two tone generators inside an Instrument.
type Oscillator struct {
	Octave     uint8    // octave offset, already folded into a pitch delta (see decodeOscillator)
	DetuneFreq uint8    // detune frequency, folded into the note pitch at note-on
	Detune     float32  // detune multiplier in [1.0, 1.2]
	Envelope   bool     // whether the envelope modulates this oscillator's frequency
	Volume     float32  // output gain in [0, 1]
	Waveform   Waveform // wave shape
}

// Envelope shapes a voice's amplitude over its lifetime: a linear ramp up
// over Attack samples, a flat plateau for Sustain samples, then a linear
// ramp down over Release samples.
type Envelope struct {
	Attack  uint32 // samples at 44100 Hz
	Sustain uint32 // samples at 44100 Hz
	Release uint32 // samples at 44100 Hz
	Master  float32
}

// Effects bundles an instrument's filter, delay, and panning parameters.
type Effects struct {
	Filter      Filter
	Freq        float32 // filter cutoff, stored as a raw IEEE-754 bit pattern in the byte image
	Resonance   float32 // in [0, 1]
	DelayTime   uint8   // in eighth notes
	DelayAmount float32 // per-tap gain, in [0, 1]
	PanFreq     uint8
	PanAmount   float32 // in [0, 1/512 * 255]
}

// LFO is the low-frequency modulator that can perturb oscillator 0's pitch
// and/or the filter's cutoff frequency.
type LFO struct {
	Osc0Freq bool // modulate oscillator 0's frequency
	FxFreq   bool // modulate the filter's cutoff frequency
	Freq     uint8
	Amount   float32
	Waveform Waveform
}

// Pattern is one column of up to PatternLength note pitches; 0 means "rest".
type Pattern struct {
	Notes [PatternLength]uint8
}

// Instrument owns two oscillators, a noise generator, an envelope, an
// effects chain, an LFO, and the tracker sequence/pattern data that drives
// them.
type Instrument struct {
	Osc        [2]Oscillator
	NoiseFader float32 // in [0, 1]
	Env        Envelope
	Fx         Effects
	Lfo        LFO
	Seq        [SequenceLength]uint8 // 0 means rest, else a 1-based pattern index
	Pat        [NumPatterns]Pattern
}

// Song is the decoded, immutable root of a Sonant song. A Song is never
// mutated after Decode returns it; all per-playback state lives in a Synth.
type Song struct {
	Instruments       [NumInstruments]Instrument
	SeqLength         int    // last sequence position played (positions 0..=SeqLength play), 0..=SequenceLength
	QuarterNoteLength uint32 // in samples at 44100 Hz, always even
}

// Decode parses a fixed 3333-byte Sonant song image into a Song. Decoding is
// total and side-effect-free: it either fully succeeds or returns one of
// ErrFileLength, ErrInvalidWaveform, ErrInvalidFilter.
func Decode(b []byte) (*Song, error) {
	if len(b) != songLength {
		return nil, ErrFileLength
	}

	quarterNoteLength := binary.LittleEndian.Uint32(b[:headerLength])
	quarterNoteLength -= quarterNoteLength % 2

	song := &Song{
		SeqLength:         int(b[headerLength+instrumentLength*NumInstruments]),
		QuarterNoteLength: quarterNoteLength,
	}

	for i := 0; i < NumInstruments; i++ {
		inst, err := decodeInstrument(b, i)
		if err != nil {
			return nil, err
		}
		song.Instruments[i] = inst
	}

	return song, nil
}

func decodeInstrument(b []byte, idx int) (Instrument, error) {
	base := headerLength + idx*instrumentLength

	var inst Instrument

	osc0, err := decodeOscillator(b, base, 0)
	if err != nil {
		return Instrument{}, err
	}
	osc1, err := decodeOscillator(b, base, 1)
	if err != nil {
		return Instrument{}, err
	}
	inst.Osc = [2]Oscillator{osc0, osc1}

	i := base + oscillatorLength*2
	inst.NoiseFader = float32(b[i]) / 255.0

	i += 4
	inst.Env = decodeEnvelope(b, i)

	i += 13
	fx, err := decodeEffects(b, i)
	if err != nil {
		return Instrument{}, err
	}
	inst.Fx = fx

	i += 12
	lfo, err := decodeLFO(b, i)
	if err != nil {
		return Instrument{}, err
	}
	inst.Lfo = lfo

	i += 5
	copy(inst.Seq[:], b[i:i+SequenceLength])

	i += SequenceLength
	for p := 0; p < NumPatterns; p++ {
		off := i + p*PatternLength
		copy(inst.Pat[p].Notes[:], b[off:off+PatternLength])
	}

	return inst, nil
}

// decodeOscillator reads the o-th (0 or 1) oscillator block inside the
// instrument at local offset base.
func decodeOscillator(b []byte, base, o int) (Oscillator, error) {
	i := base + o*oscillatorLength

	// Octave offset: (byte - 8) * 12, computed with 8-bit wraparound. Go's
	// uint8 arithmetic already wraps on overflow, so a literal subtraction
	// and multiplication on uint8 operands reproduces the original's
	// Wrapping<u8> behaviour exactly.
	octave := (uint8(b[i]) - 8) * 12

	waveform, err := parseWaveform(b[i+5])
	if err != nil {
		return Oscillator{}, err
	}

	return Oscillator{
		Octave:     octave,
		DetuneFreq: b[i+1],
		Detune:     float32(b[i+2])*0.2/255.0 + 1.0,
		Envelope:   b[i+3] != 0,
		Volume:     float32(b[i+4]) / 255.0,
		Waveform:   waveform,
	}, nil
}

func decodeEnvelope(b []byte, i int) Envelope {
	return Envelope{
		Attack:  binary.LittleEndian.Uint32(b[i : i+4]),
		Sustain: binary.LittleEndian.Uint32(b[i+4 : i+8]),
		Release: binary.LittleEndian.Uint32(b[i+8 : i+12]),
		Master:  float32(b[i+12]) * 156.0,
	}
}

func decodeEffects(b []byte, i int) (Effects, error) {
	filter, err := parseFilter(b[i])
	if err != nil {
		return Effects{}, err
	}

	i += 3
	freq := math.Float32frombits(binary.LittleEndian.Uint32(b[i : i+4]))

	return Effects{
		Filter:      filter,
		Freq:        freq,
		Resonance:   float32(b[i+4]) / 255.0,
		DelayTime:   b[i+5],
		DelayAmount: float32(b[i+6]) / 255.0,
		PanFreq:     b[i+7],
		PanAmount:   float32(b[i+8]) / 512.0,
	}, nil
}

func decodeLFO(b []byte, i int) (LFO, error) {
	waveform, err := parseWaveform(b[i+4])
	if err != nil {
		return LFO{}, err
	}

	return LFO{
		Osc0Freq: b[i] != 0,
		FxFreq:   b[i+1] != 0,
		Freq:     b[i+2],
		Amount:   float32(b[i+3]) / 512.0,
		Waveform: waveform,
	}, nil
}
