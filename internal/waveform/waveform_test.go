package waveform

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNormalizeRangeAndLength(t *testing.T) {
	inputs := [][]float64{
		nil,
		{0.5},
		{0.2, 0.9, 0.4},
		make([]float64, 500),
	}
	ramp := make([]float64, 1000)
	for i := range ramp {
		ramp[i] = float64(i) / 1000
	}
	inputs = append(inputs, ramp)

	for _, in := range inputs {
		out := Normalize(in)
		if len(out) != Bars {
			t.Fatalf("len=%d for input of %d", len(out), len(in))
		}
		for i, v := range out {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("bar %d=%v out of range", i, v)
			}
		}
	}
}

func TestNormalizeSilenceIsFlat(t *testing.T) {
	for _, in := range [][]float64{nil, make([]float64, 300), {0.005, 0.009, 0}} {
		for i, v := range Normalize(in) {
			if v != FlatLine {
				t.Fatalf("bar %d=%v want %v", i, v, FlatLine)
			}
		}
	}
}

func TestNormalizeConstantSignalIsFlat(t *testing.T) {
	in := make([]float64, 140)
	for i := range in {
		in[i] = 0.6
	}
	for _, v := range Normalize(in) {
		if v != FlatLine {
			t.Fatalf("constant input should be flat, got %v", v)
		}
	}
}

func TestNormalizeShiftInvariant(t *testing.T) {
	base := make([]float64, 700)
	shifted := make([]float64, 700)
	for i := range base {
		base[i] = 0.1 + 0.4*math.Abs(math.Sin(float64(i)/20))
		shifted[i] = base[i] + 0.3
	}
	a := Normalize(base)
	b := Normalize(shifted)
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			t.Fatalf("bar %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestNormalizeEndpoints(t *testing.T) {
	out := NormalizeN([]float64{0.2, 0.6, 1.0, 0.4}, 4)
	want := []float64{0, 0.5, 1, 0.25}
	for i := range want {
		if !almost(out[i], want[i]) {
			t.Fatalf("out=%v want %v", out, want)
		}
	}
}

func TestNormalizeShortInputLeavesEmptyBuckets(t *testing.T) {
	// Fewer samples than bars: most buckets are empty and draw at zero.
	out := NormalizeN([]float64{0.2, 0.8}, 4)
	want := []float64{0, 0, 0, 1}
	for i := range want {
		if !almost(out[i], want[i]) {
			t.Fatalf("out=%v want %v", out, want)
		}
	}
	if got := NormalizeN([]float64{1}, 0); len(got) != 0 {
		t.Fatalf("n=0 should be empty, got %v", got)
	}
}

func TestMeterToAmplitude(t *testing.T) {
	cases := map[float64]float64{
		-160: 0,
		-200: 0,
		0:    1,
		12:   1,
		-80:  0.5,
	}
	for db, want := range cases {
		if got := MeterToAmplitude(db); !almost(got, want) {
			t.Fatalf("MeterToAmplitude(%v)=%v want %v", db, got, want)
		}
	}
	if MeterToAmplitude(math.NaN()) != 0 {
		t.Fatalf("NaN should map to 0")
	}
}

func TestSamplerSnapshotIsCopy(t *testing.T) {
	var s Sampler
	s.AddDB(-80)
	s.Add(2)
	snap := s.Snapshot()
	if len(snap) != 2 || !almost(snap[0], 0.5) || snap[1] != 1 {
		t.Fatalf("snapshot=%v", snap)
	}
	snap[0] = 0
	if !almost(s.Snapshot()[0], 0.5) {
		t.Fatalf("snapshot aliased internal state")
	}
	if s.Len() != 2 {
		t.Fatalf("len=%d", s.Len())
	}
}

func writeTestWAV(t *testing.T, rate int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestAnalyzeWAV(t *testing.T) {
	const rate = 8000
	// One second of tone followed by half a second of silence.
	data := make([]int, rate+rate/2)
	for i := 0; i < rate; i++ {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	path := writeTestWAV(t, rate, data)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	res, err := AnalyzeWAV(f, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Duration != 1500*time.Millisecond {
		t.Fatalf("duration=%v", res.Duration)
	}
	if len(res.Samples) != 15 {
		t.Fatalf("samples=%d", len(res.Samples))
	}
	if res.Samples[0] < 0.8 {
		t.Fatalf("tone window too quiet: %v", res.Samples[0])
	}
	if res.Samples[14] != 0 {
		t.Fatalf("silent window=%v", res.Samples[14])
	}
}

func TestAnalyzeWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := os.WriteFile(path, []byte("definitely not riff data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := AnalyzeWAV(f, 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResample(t *testing.T) {
	in := []float32{0, 1, 2, 3}
	if got := Resample(in, 16000, 8000); len(got) != 2 {
		t.Fatalf("downsample length got %d", len(got))
	}
	if got := Resample(in, 8000, 16000); len(got) != 8 {
		t.Fatalf("upsample length got %d", len(got))
	}
	out := Resample([]float32{0, 10}, 1000, 2000)
	if out[0] != 0 || out[len(out)-1] != 10 {
		t.Fatalf("endpoints not preserved: %v", out)
	}
}
