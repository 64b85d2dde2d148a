package sonant

import "errors"

// Decode errors. All three are terminal and non-retryable: the byte image
// either matches the Sonant layout or it doesn't.
var (
	// ErrFileLength is returned when the input is not exactly songLength bytes.
	ErrFileLength = errors.New("sonant: incorrect file length")

	// ErrInvalidWaveform is returned when an oscillator or LFO waveform byte
	// is outside the 0..3 range.
	ErrInvalidWaveform = errors.New("sonant: invalid waveform")

	// ErrInvalidFilter is returned when a filter kind byte is outside the
	// 0..4 range.
	ErrInvalidFilter = errors.New("sonant: invalid filter")
)
