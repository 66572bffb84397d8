// Command vibinfo runs a synthetic tone through the vibrato engine and
// prints the engine sizing together with a spectral summary per channel.
//
// Usage:
//
//	vibinfo [flags]
//
// Examples:
//
//	vibinfo
//	vibinfo -delay 0.01 -width 0.004 -mod-freq 7
//	vibinfo -rate 44100 -channels 1 -tone 440 -comb iir -comb-gain 0.6
//	vibinfo -duration 0.1 -dump out.txt
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-vibrato/dsp/core"
	"github.com/cwbudde/algo-vibrato/dsp/effects/modulation"
	"github.com/cwbudde/algo-vibrato/dsp/filter/comb"
	"github.com/cwbudde/algo-vibrato/dsp/spectrum"
	"github.com/cwbudde/algo-vibrato/dsp/window"
	"github.com/cwbudde/algo-vibrato/internal/buildinfo"
)

// analysisLen caps the tail of the output handed to the spectrum analysis.
const analysisLen = 16384

type options struct {
	sampleRate float64
	blockSize  int
	channels   int

	maxDelay float64
	delay    float64
	width    float64
	modFreq  float64

	tone     float64
	levelDB  float64
	duration float64

	comb      string
	combDelay float64
	combGain  float64

	window   string
	parallel bool
	dump     string
}

func main() {
	var opts options
	flag.Float64Var(&opts.sampleRate, "rate", 48000, "sample rate in Hz")
	flag.IntVar(&opts.blockSize, "block", 512, "processing block size in frames")
	flag.IntVar(&opts.channels, "channels", 2, "number of channels")
	flag.Float64Var(&opts.maxDelay, "max-delay", 0.05, "maximum delay in seconds")
	flag.Float64Var(&opts.delay, "delay", 0.005, "vibrato center delay in seconds")
	flag.Float64Var(&opts.width, "width", 0.002, "vibrato modulation width in seconds")
	flag.Float64Var(&opts.modFreq, "mod-freq", 5, "vibrato modulation frequency in Hz")
	flag.Float64Var(&opts.tone, "tone", 1000, "test tone frequency in Hz")
	flag.Float64Var(&opts.levelDB, "level", -6, "test tone level in dBFS")
	flag.Float64Var(&opts.duration, "duration", 1, "signal duration in seconds")
	flag.StringVar(&opts.comb, "comb", "", "optional comb filter before the vibrato: fir or iir")
	flag.Float64Var(&opts.combDelay, "comb-delay", 0.001, "comb filter delay in seconds")
	flag.Float64Var(&opts.combGain, "comb-gain", 0.5, "comb filter gain")
	flag.StringVar(&opts.window, "window", "hann", "analysis window: rectangular, hann, hamming, blackman, blackman-harris-4t")
	flag.BoolVar(&opts.parallel, "parallel", false, "process channels concurrently")
	flag.StringVar(&opts.dump, "dump", "", "write the processed samples as text (one column per channel)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vibinfo [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a sine tone through the vibrato and prints sizing and spectrum.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vibinfo -delay 0.01 -width 0.004 -mod-freq 7\n")
		fmt.Fprintf(os.Stderr, "  vibinfo -channels 1 -comb iir -comb-gain 0.6\n")
		fmt.Fprintf(os.Stderr, "  vibinfo -duration 0.1 -dump out.txt\n")
	}
	flag.Parse()

	if *version {
		fmt.Printf("vibinfo %s\n", buildinfo.String())
		return
	}

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, w io.Writer) error {
	// core options silently keep defaults for out-of-range values.
	if opts.sampleRate <= 0 || math.IsNaN(opts.sampleRate) || math.IsInf(opts.sampleRate, 0) {
		return fmt.Errorf("sample rate must be > 0 and finite: %g", opts.sampleRate)
	}
	if opts.blockSize <= 0 {
		return fmt.Errorf("block size must be > 0: %d", opts.blockSize)
	}
	if opts.channels <= 0 {
		return fmt.Errorf("channels must be > 0: %d", opts.channels)
	}

	win, err := window.Parse(opts.window)
	if err != nil {
		return err
	}

	cfg := core.ApplyProcessorOptions(
		core.WithSampleRate(opts.sampleRate),
		core.WithBlockSize(opts.blockSize),
		core.WithChannels(opts.channels),
	)

	vib, err := modulation.NewVibrato(opts.maxDelay, cfg.SampleRate, cfg.Channels,
		modulation.WithVibratoDelay(opts.delay),
		modulation.WithVibratoWidth(opts.width),
		modulation.WithVibratoModFreq(opts.modFreq),
	)
	if err != nil {
		return err
	}

	filter, err := newComb(opts, cfg)
	if err != nil {
		return err
	}

	frames := int(math.Round(opts.duration * cfg.SampleRate))
	if frames <= 0 {
		return fmt.Errorf("duration too short: %g s", opts.duration)
	}

	buf := toneChannels(opts.tone, core.DBToLinear(opts.levelDB), cfg, frames)
	if err := process(ctx, vib, filter, buf, cfg, opts.parallel); err != nil {
		return err
	}

	if err := printSizing(w, vib, cfg, frames); err != nil {
		return err
	}
	if err := printSpectrum(w, buf, opts.tone, win, cfg); err != nil {
		return err
	}

	if opts.dump != "" {
		return dumpFile(opts.dump, buf)
	}
	return nil
}

func newComb(opts options, cfg core.ProcessorConfig) (*comb.Filter, error) {
	var kind comb.Kind
	switch opts.comb {
	case "":
		return nil, nil
	case "fir":
		kind = comb.FIR
	case "iir":
		kind = comb.IIR
	default:
		return nil, fmt.Errorf("unknown comb kind %q (want fir or iir)", opts.comb)
	}

	filter, err := comb.New(kind, opts.combDelay, cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, err
	}
	if err := filter.SetDelay(opts.combDelay); err != nil {
		return nil, err
	}
	if err := filter.SetGain(opts.combGain); err != nil {
		return nil, err
	}
	return filter, nil
}

// toneChannels returns one sine per channel, each shifted by a quarter
// period against the previous one.
func toneChannels(freq, amplitude float64, cfg core.ProcessorConfig, frames int) [][]float64 {
	step := 2 * math.Pi * freq / cfg.SampleRate
	buf := make([][]float64, cfg.Channels)
	for c := range buf {
		phase := float64(c) * math.Pi / 2
		buf[c] = make([]float64, frames)
		for i := range buf[c] {
			buf[c][i] = amplitude * math.Sin(step*float64(i)+phase)
		}
	}
	return buf
}

func process(ctx context.Context, vib *modulation.Vibrato, filter *comb.Filter, buf [][]float64, cfg core.ProcessorConfig, parallel bool) error {
	view := make([][]float64, len(buf))
	pos := 0
	for _, n := range cfg.Blocks(len(buf[0])) {
		for c := range buf {
			view[c] = buf[c][pos : pos+n]
		}

		if filter != nil {
			if err := filter.Process(view, view, n); err != nil {
				return fmt.Errorf("comb at frame %d: %w", pos, err)
			}
		}

		var err error
		if parallel {
			err = vib.ProcessParallel(ctx, view, view, n)
		} else {
			err = vib.Process(view, view, n)
		}
		if err != nil {
			return fmt.Errorf("vibrato at frame %d: %w", pos, err)
		}
		pos += n
	}
	return nil
}

func printSizing(w io.Writer, vib *modulation.Vibrato, cfg core.ProcessorConfig, frames int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		name  string
		value string
	}{
		{"Version", buildinfo.Version()},
		{"Sample rate [Hz]", fmt.Sprintf("%.0f", cfg.SampleRate)},
		{"Channels", fmt.Sprintf("%d", cfg.Channels)},
		{"Block size", fmt.Sprintf("%d", cfg.BlockSize)},
		{"Frames", fmt.Sprintf("%d", frames)},
		{"Delay [samples]", fmt.Sprintf("%d", vib.DelaySamples())},
		{"Width [samples]", fmt.Sprintf("%d", vib.WidthSamples())},
		{"Buffer length", fmt.Sprintf("%d", vib.BufferLen())},
		{"LFO period", fmt.Sprintf("%d", vib.LFOPeriod())},
	}

	if _, err := fmt.Fprintf(tw, "Parameter\tValue\n---------\t-----\n"); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r.name, r.value); err != nil {
			return fmt.Errorf("failed to write output row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func printSpectrum(w io.Writer, buf [][]float64, tone float64, win window.Type, cfg core.ProcessorConfig) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(w, "Window: %s\n", win); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "Channel\tFFT Size\tPeak [Hz]\tCarrier [dB]\tSidebands [dB]\n"); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "-------\t--------\t---------\t------------\t--------------\n"); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}

	for c, ch := range buf {
		n := min(len(ch), analysisLen)
		a, err := spectrum.AnalyzeWindow(ch[len(ch)-n:], cfg.SampleRate, win)
		if err != nil {
			return fmt.Errorf("channel %d: %w", c, err)
		}

		total := a.TotalEnergy()
		bin := a.FrequencyBin(tone)
		carrier := a.BandEnergy(bin-2, bin+2)

		carrierDB, sidebandDB := math.Inf(-1), math.Inf(-1)
		if total > 0 {
			carrierDB = core.LinearPowerToDB(carrier / total)
			sidebandDB = core.LinearPowerToDB((total - carrier) / total)
		}

		if _, err := fmt.Fprintf(tw, "%d\t%d\t%.1f\t%.2f\t%.2f\n",
			c,
			a.FFTSize,
			a.BinFrequency(a.PeakBin()),
			carrierDB,
			sidebandDB,
		); err != nil {
			return fmt.Errorf("failed to write output row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

func dumpFile(path string, buf [][]float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return writeColumns(f, buf)
}

// writeColumns writes one line per frame with tab-separated channel values.
func writeColumns(w io.Writer, buf [][]float64) error {
	bw := bufio.NewWriter(w)
	for i := range buf[0] {
		for c := range buf {
			if c > 0 {
				if err := bw.WriteByte('\t'); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(bw, "%.16g", buf[c][i]); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
