// Package waveform turns raw metering samples into display bars.
package waveform

const (
	// Bars is the number of bars drawn for a recording.
	Bars = 70
	// SilenceThreshold marks bucket values treated as silence when picking
	// the baseline and peak.
	SilenceThreshold = 0.01
	// FlatLine is drawn for every bar when the input carries no signal.
	FlatLine = 0.1

	minRange = 0.01
)

// Normalize reduces samples to Bars values in [0,1].
func Normalize(samples []float64) []float64 {
	return NormalizeN(samples, Bars)
}

// NormalizeN reduces samples to n values in [0,1]. The quietest non-silent
// bucket maps to 0 and the loudest to 1, so a constant offset in the input
// does not change the shape. Inputs with no usable range yield a flat line.
func NormalizeN(samples []float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	buckets := downsample(samples, n)

	baseline, peak, ok := bounds(buckets)
	out := make([]float64, n)
	if !ok || peak-baseline < minRange {
		for i := range out {
			out[i] = FlatLine
		}
		return out
	}
	span := peak - baseline
	for i, v := range buckets {
		if v < baseline {
			continue
		}
		out[i] = clamp01((v - baseline) / span)
	}
	return out
}

// downsample averages samples into n buckets. Bucket i covers
// [floor(i*len/n), floor((i+1)*len/n)); empty buckets are 0.
func downsample(samples []float64, n int) []float64 {
	out := make([]float64, n)
	total := len(samples)
	if total == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		start := i * total / n
		end := (i + 1) * total / n
		if end <= start {
			continue
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += s
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

func bounds(values []float64) (lo, hi float64, ok bool) {
	for _, v := range values {
		if v < SilenceThreshold {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
