package waveform

import (
	"math"
	"sync"
)

// MeterFloorDB is the quietest level a meter reports.
const MeterFloorDB = -160.0

// MeterToAmplitude maps a dBFS meter reading onto [0,1].
func MeterToAmplitude(db float64) float64 {
	if math.IsNaN(db) {
		return 0
	}
	return clamp01((db - MeterFloorDB) / -MeterFloorDB)
}

// RMSToDB converts a linear RMS level in [0,1] to dBFS, floored at MeterFloorDB.
func RMSToDB(rms float64) float64 {
	if rms <= 0 {
		return MeterFloorDB
	}
	db := 20 * math.Log10(rms)
	if db < MeterFloorDB {
		return MeterFloorDB
	}
	return db
}

// Sampler collects one amplitude per metering tick. It is safe for one writer
// and any number of readers.
type Sampler struct {
	mu      sync.Mutex
	samples []float64
}

// AddDB records a meter reading in dBFS.
func (s *Sampler) AddDB(db float64) {
	s.Add(MeterToAmplitude(db))
}

// Add records an amplitude, clamped to [0,1].
func (s *Sampler) Add(amp float64) {
	s.mu.Lock()
	s.samples = append(s.samples, clamp01(amp))
	s.mu.Unlock()
}

// AddFrame records the RMS level of a frame of float samples in [-1,1].
func (s *Sampler) AddFrame(frame []float32) {
	s.AddDB(RMSToDB(rms32(frame)))
}

func (s *Sampler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Snapshot returns a copy of the samples collected so far.
func (s *Sampler) Snapshot() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

func rms32(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}
