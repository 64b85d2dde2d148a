// sonantwav renders a Sonant song byte image to a WAV file.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chriskillpack/sonant"
	"github.com/chriskillpack/sonant/wav"
)

var log zerolog.Logger

func main() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var rate int
	var seed string

	root := &cobra.Command{
		Use:   "sonantwav <in.snt> <out.wav>",
		Short: "Render a Sonant song to a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(args[0], args[1], rate, seed)
		},
	}
	root.Flags().IntVar(&rate, "rate", 44100, "output sample rate in Hz")
	root.Flags().StringVar(&seed, "seed", "", "PRNG seed as lo:hi hex, default OS entropy")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("sonantwav failed")
	}
}

func render(inPath, outPath string, rate int, seedFlag string) error {
	songBytes, err := os.ReadFile(inPath)
	if err != nil {
		return errors.Wrapf(err, "reading %s", inPath)
	}

	song, err := sonant.Decode(songBytes)
	if err != nil {
		return errors.Wrapf(err, "decoding %s", inPath)
	}

	seed, err := resolveSeed(seedFlag)
	if err != nil {
		return errors.Wrap(err, "resolving seed")
	}

	outF, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", outPath)
	}
	defer outF.Close()

	wavW, err := wav.NewWriter(outF, rate)
	if err != nil {
		return errors.Wrap(err, "writing WAV header")
	}

	synth := sonant.NewSynth(song, seed, float64(rate))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)

	stopping := false
	go func() {
		<-sigCh
		stopping = true
	}()

	log.Info().Str("in", inPath).Str("out", outPath).Int("rate", rate).Msg("rendering")

	const batchSize = 2048
	batch := make([][2]float32, 0, batchSize)
	frames := 0
	for !stopping {
		frame, ok := synth.Next()
		if !ok {
			break
		}
		batch = append(batch, frame)
		frames++

		if len(batch) == batchSize {
			if err := wavW.WriteFrame(batch); err != nil {
				return errors.Wrap(err, "writing frame batch")
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := wavW.WriteFrame(batch); err != nil {
			return errors.Wrap(err, "writing final frame batch")
		}
	}

	if _, err := wavW.Finish(); err != nil {
		return errors.Wrap(err, "finishing WAV file")
	}

	log.Info().Int("frames", frames).Msg("render complete")
	return nil
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
