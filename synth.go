package sonant

import "math"

// scaledEnvelope holds an instrument's attack/sustain/release durations
// after rescaling from the song's native 44100 Hz time base to the synth's
// actual sample rate.
type scaledEnvelope struct {
	attack, sustain, release uint32
}

// voice is per-note synthesis state: phase accumulators, filter memory,
// pitch, and the sample index the note was born at. A zero pitch marks an
// empty slot.
type voice struct {
	pitch       uint8
	sampleCount uint32
	volume      float32
	swapStereo  bool // odd delay repeats swap stereo channels

	oscTime [2]float32
	oscFreq [2]float32

	low, band float32 // state-variable filter memory
}

// track is per-instrument playback state: the instrument's voice pool, its
// rate-scaled envelope, delay parameters, and precomputed LFO/pan
// frequencies.
type track struct {
	voices [MaxOverlappingNote]voice

	env scaledEnvelope

	delaySamples uint32
	delayCount   uint32

	panFreq float32
	lfoFreq float32
}

// Synth is a lazy stereo sample generator over a decoded Song. It holds an
// immutable borrow of the Song; the Song must outlive the Synth. All
// per-playback mutation lives in Synth's own tracks, so multiple Synths can
// share one Song safely as long as each is driven from a single goroutine.
type Synth struct {
	song  *Song
	noise *noiseSource

	sampleRate  float32
	sampleRatio float32 // sampleRate / 44100

	quarterNoteLength uint32 // in samples, rescaled by sampleRatio
	eighthNoteLength  uint32

	seqCount    int
	noteCount   int
	sampleCount uint32

	tracks [NumInstruments]track
}

// NewSynth builds a Synth that will play song at sampleRate (Hz), using
// seed as the 128-bit seed for the noise oscillator's PRNG.
func NewSynth(song *Song, seed [2]uint64, sampleRate float64) *Synth {
	rate := float32(sampleRate)
	sampleRatio := rate / nativeSampleRate
	quarterNoteLength := uint32(math.Round(float64(song.QuarterNoteLength) * float64(sampleRatio)))
	eighthNoteLength := quarterNoteLength / 2

	s := &Synth{
		song:              song,
		noise:             newNoiseSource(seed),
		sampleRate:        rate,
		sampleRatio:       sampleRatio,
		quarterNoteLength: quarterNoteLength,
		eighthNoteLength:  eighthNoteLength,
	}

	for i := range song.Instruments {
		inst := &song.Instruments[i]
		tr := &s.tracks[i]

		tr.env = scaledEnvelope{
			attack:  uint32(math.Round(float64(inst.Env.Attack) * float64(sampleRatio))),
			sustain: uint32(math.Round(float64(inst.Env.Sustain) * float64(sampleRatio))),
			release: uint32(math.Round(float64(inst.Env.Release) * float64(sampleRatio))),
		}

		tr.delaySamples = uint32(inst.Fx.DelayTime) * eighthNoteLength
		tr.delayCount = delayRepeatCount(inst.Fx.DelayAmount, tr.delaySamples)

		// Both LFO and pan rate are expressed on the same 12-TET scale as
		// note pitch, anchored so that byte value 8 means one cycle per
		// quarter note.
		tr.lfoFreq = frequency(1.0, semitoneRatio, inst.Lfo.Freq, 8) / float32(quarterNoteLength)
		tr.panFreq = frequency(1.0, semitoneRatio, inst.Fx.PanFreq, 8) / float32(quarterNoteLength)
	}

	s.loadNotes()

	return s
}

// delayRepeatCount computes how many delay-tap rounds an instrument's echo
// should produce: enough for the tap volume to fall below the audible
// threshold, with special cases for no repeats, infinite repeats, and a
// zero-length delay grid.
func delayRepeatCount(delayAmount float32, delaySamples uint32) uint32 {
	switch {
	case delayAmount == 0:
		return 0
	case delayAmount == 1:
		return math.MaxUint32
	case delaySamples == 0:
		return 1
	default:
		return uint32(math.Log(256) / math.Log(1/float64(delayAmount)))
	}
}

// Position reports the synth's current place in the tracker transport, for
// progress reporting by callers.
type Position struct {
	SeqCount    int
	NoteCount   int
	SampleCount uint32
}

// Position returns the synth's current transport position.
func (s *Synth) Position() Position {
	return Position{SeqCount: s.seqCount, NoteCount: s.noteCount, SampleCount: s.sampleCount}
}

// Next produces the next stereo frame. The second return value is false
// once the song has finished: every instrument has passed its last
// sequence position and every voice has fallen silent.
func (s *Synth) Next() ([NumChannels]float32, bool) {
	if s.seqCount > s.song.SeqLength && !s.anyVoiceActive() {
		return [NumChannels]float32{}, false
	}

	samples := s.renderFrame()

	s.sampleCount++
	sampleInQuarter := s.sampleCount % s.quarterNoteLength
	switch sampleInQuarter {
	case 0:
		s.noteCount++
		if s.noteCount >= PatternLength {
			s.noteCount = 0
			s.seqCount++
		}
		s.loadDelayedNotes()
		s.loadNotes()
	case s.eighthNoteLength:
		s.loadDelayedNotes()
	}

	return samples, true
}

func (s *Synth) anyVoiceActive() bool {
	for i := range s.tracks {
		for j := range s.tracks[i].voices {
			if s.tracks[i].voices[j].pitch != 0 {
				return true
			}
		}
	}
	return false
}

// renderFrame mixes every active voice at the synth's current sample
// position into one stereo frame, clipped to [-1, 1].
func (s *Synth) renderFrame() [NumChannels]float32 {
	position := float32(s.sampleCount)

	var samples [NumChannels]float32
	for i := range s.song.Instruments {
		inst := &s.song.Instruments[i]
		tr := &s.tracks[i]

		for j := range tr.voices {
			v := &tr.voices[j]
			if v.pitch == 0 {
				continue
			}

			out, alive := s.generateVoice(inst, tr, v, position)
			if !alive {
				*v = voice{}
				continue
			}

			samples[0] += out[0]
			samples[1] += out[1]
		}
	}

	const amplitude = 32767.0
	for c := range samples {
		samples[c] = clampFloat32(samples[c]/amplitude, -1.0, 1.0)
	}

	return samples
}

// generateVoice runs one voice through the full per-sample signal chain:
// envelope, LFO, both oscillators, noise, the state-variable filter, and
// stereo panning. It returns false once the voice's envelope has completed
// its attack/sustain/release window, signalling the caller to free the
// slot.
func (s *Synth) generateVoice(inst *Instrument, tr *track, v *voice, position float32) ([NumChannels]float32, bool) {
	age := s.sampleCount - v.sampleCount
	env, envSq, alive := voiceEnvelope(age, tr.env)
	if !alive {
		return [NumChannels]float32{}, false
	}

	lfo := oscOutput(inst.Lfo.Waveform, tr.lfoFreq*position)*inst.Lfo.Amount*s.sampleRatio + 0.5

	sample := s.osc0(inst, v, lfo, envSq)
	sample += s.osc1(inst, v, envSq)

	// Noise oscillator: one PRNG draw per voice per frame.
	sample += oscSine(s.noise.sample()) * inst.NoiseFader * env

	sample *= env * v.volume

	// The filtered path runs in parallel with, not instead of, the
	// unfiltered sample (see the design note on this in DESIGN.md).
	sample += s.applyFilter(inst, v, lfo, sample)

	panT := oscSine(tr.panFreq*position)*inst.Fx.PanAmount*s.sampleRatio + 0.5

	if v.swapStereo {
		return [NumChannels]float32{sample * (1 - panT), sample * panT}, true
	}
	return [NumChannels]float32{sample * panT, sample * (1 - panT)}, true
}

// voiceEnvelope computes the linear attack/sustain/release envelope value
// and its square at the given age (samples since note-on). alive is false
// once the voice has outlived its full attack+sustain+release window.
func voiceEnvelope(age uint32, env scaledEnvelope) (e, eSq float32, alive bool) {
	switch {
	case age < env.attack:
		e = float32(age) / float32(env.attack)
	case age >= env.attack+env.sustain+env.release:
		return 0, 0, false
	case age >= env.attack+env.sustain:
		e = 1.0 - float32(age-env.attack-env.sustain)/float32(env.release)
	default:
		e = 1.0
	}
	return e, e * e, true
}

func (s *Synth) osc0(inst *Instrument, v *voice, lfo, envSq float32) float32 {
	out := oscOutput(inst.Osc[0].Waveform, v.oscTime[0])

	t := v.oscFreq[0]
	if inst.Lfo.Osc0Freq {
		t += lfo
	}
	if inst.Osc[0].Envelope {
		t *= envSq
	}
	v.oscTime[0] += t

	return out * inst.Osc[0].Volume
}

func (s *Synth) osc1(inst *Instrument, v *voice, envSq float32) float32 {
	out := oscOutput(inst.Osc[1].Waveform, v.oscTime[1])

	t := v.oscFreq[1]
	if inst.Osc[1].Envelope {
		t *= envSq
	}
	v.oscTime[1] += t

	return out * inst.Osc[1].Volume
}

// applyFilter runs the state-variable filter and returns the selected
// output (none/high/low/band/notch), scaled by the envelope master volume.
// The caller adds this to the running sample rather than replacing it.
func (s *Synth) applyFilter(inst *Instrument, v *voice, lfo, sample float32) float32 {
	f := inst.Fx.Freq * s.sampleRatio
	if inst.Lfo.FxFreq {
		f *= lfo
	}
	f = float32(math.Sin(float64(f)*math.Pi/float64(s.sampleRate))) * 1.5

	low := v.low + f*v.band
	high := inst.Fx.Resonance*(sample-v.band) - low
	band := v.band + f*high
	v.low = low
	v.band = band

	var filtered float32
	switch inst.Fx.Filter {
	case FilterNone:
		filtered = sample
	case FilterHighPass:
		filtered = high
	case FilterLowPass:
		filtered = low
	case FilterBandPass:
		filtered = band
	case FilterNotch:
		filtered = low + high
	}

	return filtered * inst.Env.Master
}

// loadNotes triggers the current column of every instrument's pattern.
func (s *Synth) loadNotes() {
	if s.seqCount > s.song.SeqLength {
		return
	}
	for i := range s.song.Instruments {
		s.addNote(i, s.seqCount, s.noteCount, 1.0, false)
	}
}

// loadDelayedNotes retriggers every due delay tap across all instruments.
func (s *Synth) loadDelayedNotes() {
	for i := range s.song.Instruments {
		inst := &s.song.Instruments[i]
		tr := &s.tracks[i]

		for round := uint32(1); round <= tr.delayCount; round++ {
			delay := tr.delaySamples * round
			if delay > s.sampleCount {
				// Delay grows monotonically with round, so every later
				// round is also not yet due.
				break
			}

			position := s.sampleCount - delay
			if position%s.quarterNoteLength != 0 {
				continue
			}

			patternLength := s.quarterNoteLength * PatternLength
			seqCount := int(position / patternLength)
			if seqCount > s.song.SeqLength {
				continue
			}
			noteCount := int((position % patternLength) / s.quarterNoteLength)

			volume := float32(math.Pow(float64(inst.Fx.DelayAmount), float64(round)))
			s.addNote(i, seqCount, noteCount, volume, round%2 == 1)
		}
	}
}

// addNote triggers instrument i's note at (seqCount, noteCount), if any, at
// the given volume and stereo-swap state. It allocates a voice slot
// (stealing the oldest voice if the track is fully polyphonic) and
// initializes its oscillator frequencies from the note pitch.
func (s *Synth) addNote(i, seqCount, noteCount int, volume float32, swapStereo bool) {
	inst := &s.song.Instruments[i]

	// Positions past the end of the sequence array are rests.
	if seqCount >= SequenceLength {
		return
	}

	p := inst.Seq[seqCount]
	if p == 0 {
		return
	}

	pitch := inst.Pat[p-1].Notes[noteCount]
	if pitch == 0 {
		return
	}

	tr := &s.tracks[i]
	j := voiceSlot(&tr.voices)
	v := &tr.voices[j]
	*v = voice{pitch: pitch, sampleCount: s.sampleCount, volume: volume, swapStereo: swapStereo}

	for o := 0; o < 2; o++ {
		// Octave and detune are folded into the pitch with 8-bit
		// wraparound, exactly as the decoder's octave field is derived.
		effectivePitch := pitch + inst.Osc[o].Octave + inst.Osc[o].DetuneFreq
		v.oscFreq[o] = noteFrequency(effectivePitch) * inst.Osc[o].Detune / s.sampleRatio
	}
}

// voiceSlot picks the first empty voice, or the oldest voice if the track
// is fully polyphonic (voice stealing).
func voiceSlot(voices *[MaxOverlappingNote]voice) int {
	for i := range voices {
		if voices[i].pitch == 0 {
			return i
		}
	}

	oldest := 0
	for i := 1; i < len(voices); i++ {
		if voices[i].sampleCount < voices[oldest].sampleCount {
			oldest = i
		}
	}
	return oldest
}

func clampFloat32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
