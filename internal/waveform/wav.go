package waveform

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/wav"
)

// DefaultInterval matches the recorder's metering cadence.
const DefaultInterval = 100 * time.Millisecond

// ErrNotWAV is returned for inputs that are not PCM WAV files.
var ErrNotWAV = errors.New("not a PCM WAV file")

// PCM is decoded mono audio in [-1,1].
type PCM struct {
	Samples    []float32
	SampleRate int
}

func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// DecodeWAV reads a PCM WAV file and downmixes it to mono.
func DecodeWAV(r io.ReadSeeker) (PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return PCM{}, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return PCM{}, ErrNotWAV
	}
	chans := buf.Format.NumChannels
	if chans <= 0 {
		chans = 1
	}
	depth := int(dec.BitDepth)
	if depth <= 0 {
		depth = buf.SourceBitDepth
	}
	if depth <= 0 {
		depth = 16
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(buf.Data) / chans
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < chans; c++ {
			sum += float32(buf.Data[i*chans+c]) / scale
		}
		out[i] = sum / float32(chans)
	}
	return PCM{Samples: out, SampleRate: buf.Format.SampleRate}, nil
}

// Analysis is what AnalyzeWAV recovers from a file.
type Analysis struct {
	Duration time.Duration
	Samples  []float64
}

// AnalyzeWAV decodes a WAV file and meters it the way the recorder does: one
// amplitude per interval, from the window's RMS level in dBFS.
func AnalyzeWAV(r io.ReadSeeker, interval time.Duration) (Analysis, error) {
	pcm, err := DecodeWAV(r)
	if err != nil {
		return Analysis{}, err
	}
	return Meter(pcm, interval), nil
}

// Meter splits pcm into interval-long windows and records one amplitude each.
func Meter(pcm PCM, interval time.Duration) Analysis {
	if interval <= 0 {
		interval = DefaultInterval
	}
	res := Analysis{Duration: pcm.Duration(), Samples: []float64{}}
	if pcm.SampleRate <= 0 || len(pcm.Samples) == 0 {
		return res
	}
	window := int(int64(pcm.SampleRate) * int64(interval) / int64(time.Second))
	if window < 1 {
		window = 1
	}
	var s Sampler
	for start := 0; start < len(pcm.Samples); start += window {
		end := start + window
		if end > len(pcm.Samples) {
			end = len(pcm.Samples)
		}
		s.AddFrame(pcm.Samples[start:end])
	}
	res.Samples = s.Snapshot()
	return res
}

// Resample converts in from srcSR to dstSR with linear interpolation.
func Resample(in []float32, srcSR, dstSR int) []float32 {
	if srcSR == dstSR || srcSR <= 0 || dstSR <= 0 || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstSR) / float64(srcSR)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
