package sonant

import "math"

// Waveform is the closed set of oscillator/LFO wave shapes a Sonant song can
// select. Dispatched by a switch rather than an interface so the per-sample
// hot path stays inlinable.
type Waveform uint8

const (
	WaveformSine Waveform = iota
	WaveformSquare
	WaveformSaw
	WaveformTriangle
)

func parseWaveform(b byte) (Waveform, error) {
	if b > byte(WaveformTriangle) {
		return 0, ErrInvalidWaveform
	}
	return Waveform(b), nil
}

// oscSine is the reference waveform; the others are derived from it or share
// its phase convention (phase 0 sits at the zero crossing, not the peak).
func oscSine(t float32) float32 {
	return float32(math.Sin(float64(t+0.5) * 2 * math.Pi))
}

func oscSquare(t float32) float32 {
	if oscSine(t) < 0 {
		return -1.0
	}
	return 1.0
}

func oscSaw(t float32) float32 {
	_, frac := math.Modf(float64(t))
	return float32(1.0-frac) - 0.5
}

func oscTriangle(t float32) float32 {
	_, frac := math.Modf(float64(t))
	v2 := float32(frac) * 4.0
	if v2 < 2.0 {
		return v2 - 1.0
	}
	return 3.0 - v2
}

// oscOutput samples waveform w at phase t.
func oscOutput(w Waveform, t float32) float32 {
	switch w {
	case WaveformSine:
		return oscSine(t)
	case WaveformSquare:
		return oscSquare(t)
	case WaveformSaw:
		return oscSaw(t)
	case WaveformTriangle:
		return oscTriangle(t)
	default:
		return 0
	}
}

// frequency returns the frequency of `note` on an exponential scale anchored
// at (refFreq, refPitch) with the given semitone ratio between adjacent
// notes.
func frequency(refFreq, semitone float32, note, refPitch uint8) float32 {
	exp := float64(int(note) - int(refPitch))
	return refFreq * float32(math.Pow(float64(semitone), exp))
}

const semitoneRatio float32 = 1.059463094 // twelfth root of two, 12-TET

// noteFrequency returns the absolute frequency of an 8-bit pitch value on
// Sonant's 12-TET scale, where pitch 128 maps to 1/256 Hz (the scale is
// relative; the synth multiplies by sample-domain increments, not Hz).
func noteFrequency(note uint8) float32 {
	return frequency(1.0/256.0, semitoneRatio, note, 128)
}
