package sonant

// Fixed dimensions of the Sonant song format. These are compile-time
// constants of the binary layout, not configuration.
const (
	NumChannels = 2 // stereo output

	NumInstruments     = 8  // instruments per song
	NumPatterns        = 10 // patterns per instrument
	SequenceLength     = 48 // pattern slots per instrument sequence
	PatternLength      = 32 // notes per pattern
	MaxOverlappingNote = 8   // simultaneous voices per track

	headerLength     = 4       // quarter_note_length, u32 LE
	instrumentLength = 0x1A0   // 416 bytes per instrument block
	footerLength     = 1       // seq_length byte
	songLength       = headerLength + instrumentLength*NumInstruments + footerLength

	oscillatorLength = 6 // bytes per Oscillator block

	nativeSampleRate = 44100.0 // the sample rate the byte image's timing fields assume
)
