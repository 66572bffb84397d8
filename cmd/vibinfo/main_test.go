package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testOptions() options {
	return options{
		sampleRate: 8000,
		blockSize:  171,
		channels:   2,
		maxDelay:   0.2,
		delay:      0.1,
		width:      0.05,
		modFreq:    10,
		tone:       1000,
		levelDB:    -6,
		duration:   0.5,
		combDelay:  0.001,
		combGain:   0.5,
		window:     "hann",
	}
}

func TestRunPrintsSizing(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), testOptions(), &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	rows := map[string]string{
		"Delay [samples]": "800",
		"Width [samples]": "400",
		"Buffer length":   "1602",
		"LFO period":      "800",
	}
	for name, want := range rows {
		if got := tableValue(out.String(), name); got != want {
			t.Fatalf("%s = %q, want %q\n%s", name, got, want, out.String())
		}
	}
	if !strings.Contains(out.String(), "Carrier [dB]") {
		t.Fatalf("spectrum table missing:\n%s", out.String())
	}
}

// tableValue returns the last column of the row starting with name.
func tableValue(table, name string) string {
	for _, line := range strings.Split(table, "\n") {
		if strings.HasPrefix(line, name+" ") {
			fields := strings.Fields(line)
			return fields[len(fields)-1]
		}
	}
	return ""
}

func TestRunParallelWithComb(t *testing.T) {
	for _, kind := range []string{"fir", "iir"} {
		opts := testOptions()
		opts.comb = kind
		opts.parallel = true

		var out bytes.Buffer
		if err := run(context.Background(), opts, &out); err != nil {
			t.Fatalf("run(comb=%s) error = %v", kind, err)
		}
	}
}

func TestRunAnalysisWindow(t *testing.T) {
	opts := testOptions()
	opts.window = "blackman"

	var out bytes.Buffer
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Window: blackman") {
		t.Fatalf("window not reported:\n%s", out.String())
	}
}

func TestRunRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*options)
	}{
		{"width above delay", func(o *options) { o.width = 0.2 }},
		{"zero mod freq", func(o *options) { o.modFreq = 0 }},
		{"unknown comb", func(o *options) { o.comb = "allpass" }},
		{"unstable comb", func(o *options) { o.comb = "iir"; o.combGain = 1.5 }},
		{"zero duration", func(o *options) { o.duration = 0 }},
		{"zero sample rate", func(o *options) { o.sampleRate = 0 }},
		{"nan sample rate", func(o *options) { o.sampleRate = math.NaN() }},
		{"zero block size", func(o *options) { o.blockSize = 0 }},
		{"zero channels", func(o *options) { o.channels = 0 }},
		{"negative channels", func(o *options) { o.channels = -1 }},
		{"unknown window", func(o *options) { o.window = "kaiser" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			if err := run(context.Background(), opts, &bytes.Buffer{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWriteColumns(t *testing.T) {
	var out bytes.Buffer
	if err := writeColumns(&out, [][]float64{{1, 0.5}, {-2, 0.25}}); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "1\t-2\n0.5\t0.25\n"; got != want {
		t.Fatalf("writeColumns() = %q, want %q", got, want)
	}
}

func TestRunDump(t *testing.T) {
	opts := testOptions()
	opts.channels = 1
	opts.duration = 0.01
	opts.dump = filepath.Join(t.TempDir(), "out.txt")

	if err := run(context.Background(), opts, &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	data, err := os.ReadFile(opts.dump)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 80 {
		t.Fatalf("dump has %d lines, want 80", len(lines))
	}
	// The first D frames are the primed silence of the delay line.
	if lines[0] != "0" || lines[79] != "0" {
		t.Fatalf("expected silence within the delay, got %q and %q", lines[0], lines[79])
	}
}
