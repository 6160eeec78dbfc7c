package main

import (
	"context"
	"fmt"
	mrand "math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/dvb-go/dvb-go/internal/wire"
	"github.com/dvb-go/dvb-go/ldpc"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	app := cli.NewApp()
	app.Name = "ldpc_eval"
	app.Usage = "run frames through the LDPC accumulation core and check them against the software model"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "frames", Value: 8, Usage: "number of frames to encode"},
		cli.StringFlag{Name: "frame-type", Value: "short", Usage: "frame size class: normal or short"},
		cli.StringFlag{Name: "rate", Value: "1/2", Usage: "code rate label carried in the config latch"},
		cli.StringFlag{Name: "mod", Value: "QPSK", Usage: "constellation label carried in the config latch"},
		cli.IntFlag{Name: "info-length", Value: 7200, Usage: "systematic bits per frame"},
		cli.IntFlag{Name: "entries-per-bit", Value: 3, Usage: "table entries generated per systematic bit"},
		cli.StringFlag{Name: "table", Usage: "optional offset file (little-endian int64) instead of random offsets"},
		cli.StringFlag{Name: "capture", Usage: "write the first frame's parity to this file"},
		cli.StringFlag{Name: "trace", Usage: "write frame events as JSON lines to this file"},
		cli.Int64Flag{Name: "seed", Value: 1, Usage: "seed for generated offsets and data bits"},
	}
	app.Action = func(c *cli.Context) error {
		return run(c, log)
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("eval failed")
	}
}

func parseConfig(c *cli.Context) (ldpc.Config, error) {
	var cfg ldpc.Config
	switch c.String("frame-type") {
	case "normal":
		cfg.FrameType = ldpc.FrameNormal
	case "short":
		cfg.FrameType = ldpc.FrameShort
	default:
		return cfg, fmt.Errorf("unknown frame type %q", c.String("frame-type"))
	}
	rates := map[string]ldpc.CodeRate{
		"1/4": ldpc.Rate1_4, "1/3": ldpc.Rate1_3, "2/5": ldpc.Rate2_5,
		"1/2": ldpc.Rate1_2, "3/5": ldpc.Rate3_5, "2/3": ldpc.Rate2_3,
		"3/4": ldpc.Rate3_4, "4/5": ldpc.Rate4_5, "5/6": ldpc.Rate5_6,
		"8/9": ldpc.Rate8_9, "9/10": ldpc.Rate9_10,
	}
	rate, ok := rates[c.String("rate")]
	if !ok {
		return cfg, fmt.Errorf("unknown code rate %q", c.String("rate"))
	}
	cfg.CodeRate = rate
	mods := map[string]ldpc.Constellation{
		"QPSK": ldpc.ModQPSK, "8PSK": ldpc.Mod8PSK,
		"16APSK": ldpc.Mod16APSK, "32APSK": ldpc.Mod32APSK,
	}
	mod, ok := mods[c.String("mod")]
	if !ok {
		return cfg, fmt.Errorf("unknown constellation %q", c.String("mod"))
	}
	cfg.Constellation = mod
	return cfg, nil
}

func run(c *cli.Context, log zerolog.Logger) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}
	infoLength := c.Int("info-length")
	if infoLength <= 0 || infoLength >= cfg.FrameType.Bits() {
		return fmt.Errorf("info-length %d out of range for %s frames", infoLength, cfg.FrameType)
	}
	r := mrand.New(mrand.NewSource(c.Int64("seed")))

	var offsets []uint32
	if path := c.String("table"); path != "" {
		offsets, err = ldpc.LoadOffsets(path)
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Int("entries", len(offsets)).Msg("loaded offset table")
	} else {
		paritySpan := cfg.FrameType.Bits() - infoLength
		offsets = make([]uint32, infoLength*c.Int("entries-per-bit"))
		for i := range offsets {
			offsets[i] = uint32(r.Intn(paritySpan))
		}
		log.Info().Int("entries", len(offsets)).Msg("generated random offset table")
	}
	entries := ldpc.BuildEntries(offsets, infoLength)

	opts := ldpc.RunnerOptions{Config: cfg, Logger: &log}
	if path := c.String("trace"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts.Tracer = ldpc.NewTracer(f)
	}
	runner := ldpc.NewRunner(opts)

	frames := c.Int("frames")
	var firstParity []bool
	start := time.Now()
	for frame := 0; frame < frames; frame++ {
		bits := make([]bool, len(entries))
		for i := range bits {
			bits[i] = r.Intn(2) == 1
		}

		tables := make(chan ldpc.TableEntry, 64)
		data := make(chan ldpc.DataBit, 64)
		out := make(chan ldpc.ParityBit, 64)

		g, ctx := errgroup.WithContext(context.Background())
		g.Go(func() error {
			defer close(tables)
			for _, e := range entries {
				select {
				case tables <- e:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		g.Go(func() error {
			defer close(data)
			for i, b := range bits {
				d := ldpc.DataBit{Bit: b, Last: i == len(bits)-1}
				select {
				case data <- d:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		g.Go(func() error {
			defer close(out)
			return runner.Run(ctx, tables, data, out)
		})

		var parity []bool
		g.Go(func() error {
			for p := range out {
				parity = append(parity, p.Bit)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		want := ldpc.ReferenceParity(cfg, entries, bits)
		if len(parity) != len(want) {
			return fmt.Errorf("frame %d: got %d parity bits, want %d", frame, len(parity), len(want))
		}
		for i := range want {
			if parity[i] != want[i] {
				return fmt.Errorf("frame %d: parity mismatch at bit %d", frame, i)
			}
		}
		if frame == 0 {
			firstParity = parity
		}
	}
	elapsed := time.Since(start)
	enc := runner.Encoder()
	log.Info().
		Int("frames", frames).
		Dur("elapsed", elapsed).
		Uint64("cycles", enc.Cycles()).
		Uint64("cycles_per_frame", enc.Cycles()/uint64(frames)).
		Msg("all frames matched the software model")

	if path := c.String("capture"); path != "" {
		hdr := wire.CaptureHeader{
			Version:    wire.CaptureVersion,
			FrameType:  uint8(cfg.FrameType),
			CodeRate:   uint8(cfg.CodeRate),
			Modulation: uint8(cfg.Constellation),
			InfoLength: uint32(infoLength),
			ParityBits: uint32(len(firstParity)),
		}
		buf := hdr.MarshalBinary(nil)
		buf = append(buf, ldpc.PackBits(firstParity)...)
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return err
		}
		log.Info().Str("path", path).Int("bytes", len(buf)).Msg("captured parity")
	}
	return nil
}
