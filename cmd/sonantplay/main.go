// sonantplay plays a Sonant song byte image through the default audio
// device.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chriskillpack/sonant"
)

var log zerolog.Logger

func main() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var rate int
	var seed string

	root := &cobra.Command{
		Use:   "sonantplay <song.snt>",
		Short: "Play a Sonant song through the default audio device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(args[0], rate, seed)
		},
	}
	root.Flags().IntVar(&rate, "rate", 44100, "output sample rate in Hz")
	root.Flags().StringVar(&seed, "seed", "", "PRNG seed as lo:hi hex, default OS entropy")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("sonantplay failed")
	}
}

func play(path string, rate int, seedFlag string) error {
	songBytes, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	song, err := sonant.Decode(songBytes)
	if err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}

	seed, err := resolveSeed(seedFlag)
	if err != nil {
		return errors.Wrap(err, "resolving seed")
	}

	synth := sonant.NewSynth(song, seed, float64(rate))

	if err := portaudio.Initialize(); err != nil {
		return errors.Wrap(err, "initializing portaudio")
	}
	defer portaudio.Terminate()

	doneCh := make(chan struct{})
	var closeDoneOnce sync.Once
	streamCB := func(out []int16) {
		for i := 0; i < len(out); i += 2 {
			frame, ok := synth.Next()
			if !ok {
				closeDoneOnce.Do(func() { close(doneCh) })
				out[i], out[i+1] = 0, 0
				continue
			}
			out[i] = toPCM16(frame[0])
			out[i+1] = toPCM16(frame[1])
		}
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(rate), portaudio.FramesPerBufferUnspecified, streamCB)
	if err != nil {
		return errors.Wrap(err, "opening audio stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return errors.Wrap(err, "starting audio stream")
	}
	defer stream.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)

	log.Info().Str("path", path).Int("rate", rate).Msg("playing")

	select {
	case <-sigCh:
		log.Debug().Msg("caught SIGINT, stopping")
	case <-doneCh:
		log.Info().Msg("playback finished")
	}

	return nil
}

func toPCM16(sample float32) int16 {
	if sample < -1.0 {
		sample = -1.0
	}
	if sample > 1.0 {
		sample = 1.0
	}
	return int16(sample * 32767.0)
}

// resolveSeed parses a "lo:hi" hex seed pair, or draws a fresh 128-bit seed
// from OS entropy when none is given.
func resolveSeed(flag string) ([2]uint64, error) {
	if flag == "" {
		var raw [16]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return [2]uint64{}, errors.Wrap(err, "reading OS entropy")
		}
		return [2]uint64{
			binary.LittleEndian.Uint64(raw[:8]),
			binary.LittleEndian.Uint64(raw[8:]),
		}, nil
	}

	loStr, hiStr, found := strings.Cut(flag, ":")
	if !found {
		return [2]uint64{}, errors.Errorf("seed %q must be lo:hi hex", flag)
	}
	lo, err := strconv.ParseUint(loStr, 16, 64)
	if err != nil {
		return [2]uint64{}, errors.Wrapf(err, "parsing seed low half %q", loStr)
	}
	hi, err := strconv.ParseUint(hiStr, 16, 64)
	if err != nil {
		return [2]uint64{}, errors.Wrapf(err, "parsing seed high half %q", hiStr)
	}
	return [2]uint64{lo, hi}, nil
}
