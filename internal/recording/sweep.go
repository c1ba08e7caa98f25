package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SweepReport lists inconsistencies between the audio and metadata dirs.
type SweepReport struct {
	// Orphans are audio files with no sidecar.
	Orphans []string `json:"orphans"`
	// Dangling are recording ids whose sidecar points at missing audio.
	Dangling []string `json:"dangling"`
}

func (r SweepReport) Clean() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0
}

// Sweep walks both directories and reports orphans and dangling sidecars. It
// never modifies either directory.
func (s *Store) Sweep(ctx context.Context) (SweepReport, error) {
	var rep SweepReport

	recs, err := s.List(ctx)
	if err != nil {
		return rep, err
	}
	known := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		known[r.ID] = struct{}{}
		if r.URI == "" {
			rep.Dangling = append(rep.Dangling, r.ID)
			continue
		}
		if _, err := os.Stat(r.URI); err != nil {
			rep.Dangling = append(rep.Dangling, r.ID)
		}
	}

	entries, err := os.ReadDir(s.audioDir)
	if err != nil {
		return rep, fmt.Errorf("read audio dir: %w", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := known[stem]; ok {
			continue
		}
		// A sidecar that failed to parse still claims its audio.
		if _, err := os.Stat(s.sidecarPath(stem)); err == nil {
			continue
		}
		rep.Orphans = append(rep.Orphans, filepath.Join(s.audioDir, name))
	}
	sort.Strings(rep.Orphans)
	sort.Strings(rep.Dangling)
	if !rep.Clean() {
		s.logger.Infof("sweep: %d orphan(s), %d dangling", len(rep.Orphans), len(rep.Dangling))
	}
	return rep, nil
}

// Adopt writes a sidecar for an audio file that already lives in the audio
// directory. The timestamp comes from the stem when it follows the naming
// scheme, otherwise from the file's modification time.
func (s *Store) Adopt(audioPath string, durationMillis int64, samples []float64) (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, err
	}
	audioDir, err := filepath.Abs(s.audioDir)
	if err != nil {
		return nil, err
	}
	if filepath.Dir(abs) != audioDir {
		return nil, fmt.Errorf("adopt: %s is not in %s", audioPath, s.audioDir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("adopt: %w", err)
	}
	name := filepath.Base(abs)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if _, err := os.Stat(s.sidecarPath(stem)); err == nil {
		return nil, fmt.Errorf("adopt: %s already has a sidecar", stem)
	}

	waveform := make([]float64, len(samples))
	copy(waveform, samples)
	rec := &Recording{
		ID:           stem,
		URI:          filepath.Join(s.audioDir, name),
		Name:         name,
		Title:        DefaultTitle,
		Timestamp:    timestampFromStem(stem, info.ModTime().UnixMilli()),
		Duration:     durationMillis,
		WaveformData: waveform,
	}
	if err := s.writeSidecar(rec); err != nil {
		return nil, err
	}
	s.logger.Infof("adopted orphan %s", name)
	return rec, nil
}
