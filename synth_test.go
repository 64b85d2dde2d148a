package sonant

import (
	"encoding/binary"
	"testing"
)

func TestVoiceEnvelope(t *testing.T) {
	env := scaledEnvelope{attack: 10, sustain: 5, release: 4}

	if e, _, alive := voiceEnvelope(0, env); !alive || e != 0 {
		t.Errorf("age=0: e=%v alive=%v, want 0 true", e, alive)
	}
	if e, _, alive := voiceEnvelope(5, env); !alive || e != 0.5 {
		t.Errorf("age=5: e=%v alive=%v, want 0.5 true", e, alive)
	}
	if e, _, alive := voiceEnvelope(12, env); !alive || e != 1.0 {
		t.Errorf("age=12 (sustain): e=%v alive=%v, want 1.0 true", e, alive)
	}
	if e, _, alive := voiceEnvelope(17, env); !alive || e != 0.5 {
		t.Errorf("age=17 (mid-release): e=%v alive=%v, want 0.5 true", e, alive)
	}
	if _, _, alive := voiceEnvelope(19, env); alive {
		t.Errorf("age=19 (past release): alive=true, want false")
	}
}

func TestVoiceEnvelopeZeroAttackNeverDividesByZero(t *testing.T) {
	env := scaledEnvelope{attack: 0, sustain: 2, release: 0}

	if e, _, alive := voiceEnvelope(0, env); !alive || e != 1.0 {
		t.Errorf("age=0, attack=0: e=%v alive=%v, want 1.0 true", e, alive)
	}
	if _, _, alive := voiceEnvelope(2, env); alive {
		t.Errorf("age=2, attack=0 release=0: alive=true, want false")
	}
}

func TestDelayRepeatCount(t *testing.T) {
	cases := []struct {
		amount  float32
		samples uint32
		want    uint32
	}{
		{0, 100, 0},
		{1, 100, 1<<32 - 1},
		{0.5, 0, 1},
	}
	for _, c := range cases {
		if got := delayRepeatCount(c.amount, c.samples); got != c.want {
			t.Errorf("delayRepeatCount(%v, %d) = %d, want %d", c.amount, c.samples, got, c.want)
		}
	}

	// A mid-range decay should yield a small positive number of repeats.
	if got := delayRepeatCount(0.5, 100); got == 0 || got > 32 {
		t.Errorf("delayRepeatCount(0.5, 100) = %d, want a small positive count", got)
	}
}

// emptySongWithQuarterNote builds a silent, valid Song whose only non-zero
// field is QuarterNoteLength, for transport-only tests.
func emptySongWithQuarterNote(t *testing.T, quarterNoteLength uint32) *Song {
	t.Helper()
	b := newEmptySongBytes()
	setQuarterNoteLength(b, quarterNoteLength)

	song, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: unexpected error %v", err)
	}
	return song
}

func TestSynthSilenceTerminates(t *testing.T) {
	song := emptySongWithQuarterNote(t, 8)
	synth := NewSynth(song, [2]uint64{1, 2}, 44100)

	const maxFrames = 10000
	n := 0
	for {
		frame, ok := synth.Next()
		if !ok {
			break
		}
		if frame[0] != 0 || frame[1] != 0 {
			t.Fatalf("frame %d = %v, want silence", n, frame)
		}
		n++
		if n > maxFrames {
			t.Fatalf("synth did not terminate within %d frames", maxFrames)
		}
	}
	if n == 0 {
		t.Fatal("synth produced no frames before terminating")
	}
}

// songWithOneNote builds a Song with a single instrument that plays one
// note at the very start of its sequence.
func songWithOneNote(t *testing.T, quarterNoteLength uint32, note uint8) *Song {
	t.Helper()
	b := newEmptySongBytes()
	setQuarterNoteLength(b, quarterNoteLength)
	setSeqLength(b, 1)

	base := instrumentBase(0)
	b[base+oscOffset+4] = 255 // osc0 volume = 1.0
	b[base+noiseFaderOffset] = 0
	binary.LittleEndian.PutUint32(b[base+attackOffset:], 10)
	binary.LittleEndian.PutUint32(b[base+sustainOffset:], 200)
	b[base+masterOffset] = 1
	b[base+seqOffset] = 1 // seq[0] -> pattern 1
	b[base+patternsOffset] = note

	song, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: unexpected error %v", err)
	}
	return song
}

func TestSynthDeterministic(t *testing.T) {
	song := songWithOneNote(t, 64, 140)

	run := func() [][2]float32 {
		synth := NewSynth(song, [2]uint64{42, 99}, 44100)
		var frames [][2]float32
		for {
			f, ok := synth.Next()
			if !ok {
				break
			}
			frames = append(frames, f)
			if len(frames) > 4096 {
				t.Fatal("runaway synth, did not terminate")
			}
		}
		return frames
	}

	a := run()
	b := run()

	if len(a) != len(b) {
		t.Fatalf("frame counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("frame %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSynthProducesSoundForTriggeredNote(t *testing.T) {
	song := songWithOneNote(t, 64, 140)
	synth := NewSynth(song, [2]uint64{1, 2}, 44100)

	sawNonZero := false
	for i := 0; i < 200; i++ {
		f, ok := synth.Next()
		if !ok {
			break
		}
		if f[0] != 0 || f[1] != 0 {
			sawNonZero = true
			break
		}
	}
	if !sawNonZero {
		t.Fatal("triggered note produced only silence")
	}
}

func TestAddNoteVoiceStealing(t *testing.T) {
	song := songWithOneNote(t, 64, 140)
	synth := NewSynth(song, [2]uint64{1, 2}, 44100)

	tr := &synth.tracks[0]
	for i := range tr.voices {
		tr.voices[i] = voice{pitch: 60, sampleCount: uint32(i * 10)}
	}

	synth.sampleCount = 1000
	synth.addNote(0, 0, 0, 1.0, false)

	// Slot 0 had the oldest sampleCount (0) and should have been replaced.
	if tr.voices[0].sampleCount != 1000 {
		t.Errorf("oldest voice slot not stolen: sampleCount=%d, want 1000", tr.voices[0].sampleCount)
	}
	for i := 1; i < len(tr.voices); i++ {
		if tr.voices[i].sampleCount == 1000 {
			t.Errorf("voice slot %d unexpectedly stolen", i)
		}
	}
}

func TestAddNoteSkipsRestNotes(t *testing.T) {
	song := songWithOneNote(t, 64, 0) // pattern's first note is a rest (0)
	synth := NewSynth(song, [2]uint64{1, 2}, 44100)

	for _, v := range synth.tracks[0].voices {
		if v.pitch != 0 {
			t.Fatalf("rest note triggered a voice: %+v", v)
		}
	}
}
