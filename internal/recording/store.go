package recording

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"speechinsight/internal/fsutil"

	"github.com/sirupsen/logrus"
)

const (
	stemPrefix       = "recording-"
	sidecarExt       = ".json"
	defaultAudioExt  = ".m4a"
	maxStemCollision = 1000
)

// ErrNotFound is returned when no sidecar exists for an id.
var ErrNotFound = errors.New("recording not found")

// Store keeps audio files in one directory and JSON sidecars in another.
// Read-modify-write operations are serialized within a process; sidecars are
// replaced atomically so a concurrent reader never sees a torn file.
type Store struct {
	audioDir string
	metaDir  string
	logger   *logrus.Logger
	now      func() time.Time

	mu sync.Mutex
}

// Open returns a Store rooted at the given directories, creating them if needed.
func Open(audioDir, metaDir string, logger *logrus.Logger) (*Store, error) {
	if audioDir == "" || metaDir == "" {
		return nil, errors.New("recording store: empty directory")
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	// URIs are persisted in sidecars, so they must not depend on the cwd.
	audioDir, err := filepath.Abs(audioDir)
	if err != nil {
		return nil, fmt.Errorf("recording store: %w", err)
	}
	metaDir, err = filepath.Abs(metaDir)
	if err != nil {
		return nil, fmt.Errorf("recording store: %w", err)
	}
	s := &Store{
		audioDir: audioDir,
		metaDir:  metaDir,
		logger:   logger,
		now:      time.Now,
	}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) AudioDir() string    { return s.audioDir }
func (s *Store) MetadataDir() string { return s.metaDir }

func (s *Store) ensureDirs() error {
	for _, d := range []string{s.audioDir, s.metaDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// List reads every sidecar in the metadata directory. Sidecars that cannot be
// read or parsed are logged and skipped. The result is not sorted.
func (s *Store) List(ctx context.Context) ([]Recording, error) {
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.metaDir)
	if err != nil {
		return nil, fmt.Errorf("read metadata dir: %w", err)
	}
	out := make([]Recording, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != sidecarExt {
			continue
		}
		rec, err := s.readSidecar(filepath.Join(s.metaDir, name))
		if err != nil {
			s.logger.Warnf("skip sidecar %s: %v", name, err)
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Save moves the captured audio into the store and writes its sidecar. The
// sidecar is only written once the audio is in place; a failed move leaves no
// metadata behind.
func (s *Store) Save(tempAudioPath string, durationMillis int64, samples []float64) (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(tempAudioPath); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(tempAudioPath))
	if ext == "" {
		ext = defaultAudioExt
	}

	created := s.now().UnixMilli()
	stem, err := s.allocateStem(created, ext)
	if err != nil {
		return nil, err
	}
	audioPath := filepath.Join(s.audioDir, stem+ext)
	if err := fsutil.MoveFile(tempAudioPath, audioPath); err != nil {
		return nil, fmt.Errorf("move audio: %w", err)
	}

	waveform := make([]float64, len(samples))
	copy(waveform, samples)
	rec := &Recording{
		ID:           stem,
		URI:          audioPath,
		Name:         stem + ext,
		Title:        DefaultTitle,
		Timestamp:    timestampFromStem(stem, created),
		Duration:     durationMillis,
		WaveformData: waveform,
	}
	if err := s.writeSidecar(rec); err != nil {
		// Audio stays in place; Sweep reports it as an orphan.
		return nil, fmt.Errorf("write sidecar for %s: %w", stem, err)
	}
	s.logger.Infof("saved recording %s (%dms, %d samples)", stem, durationMillis, len(waveform))
	return rec, nil
}

// allocateStem returns an unused stem, bumping the millisecond on collision so
// ids are never reused.
func (s *Store) allocateStem(ms int64, ext string) (string, error) {
	for i := 0; i < maxStemCollision; i++ {
		stem := fmt.Sprintf("%s%d", stemPrefix, ms+int64(i))
		if fsutil.FileExists(s.sidecarPath(stem)) || fsutil.FileExists(filepath.Join(s.audioDir, stem+ext)) {
			continue
		}
		return stem, nil
	}
	return "", fmt.Errorf("no free recording id near %d", ms)
}

// GetByID returns the recording for id, which may be the stem, the audio file
// name, or the audio path. A missing or unparsable sidecar yields false.
func (s *Store) GetByID(id string) (*Recording, bool) {
	stem := StemFromID(id)
	if stem == "" {
		return nil, false
	}
	rec, err := s.readSidecar(s.sidecarPath(stem))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warnf("read sidecar %s: %v", stem, err)
		}
		return nil, false
	}
	return rec, true
}

// UpdateTitle rewrites only the title. Concurrent updates are last-write-wins.
func (s *Store) UpdateTitle(id, title string) (*Recording, error) {
	return s.update(id, func(r *Recording) {
		r.Title = title
	})
}

// SaveAnalysis stores the transcript and summary produced by the pipeline.
// A nil summary keeps whatever summary is already stored.
func (s *Store) SaveAnalysis(id, transcript string, summary *EmotionSummary) (*Recording, error) {
	return s.update(id, func(r *Recording) {
		r.Transcript = transcript
		if summary != nil {
			r.EmotionSummary = summary
			r.AnalyzedAt = s.now().UnixMilli()
		}
	})
}

func (s *Store) update(id string, mutate func(*Recording)) (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stem := StemFromID(id)
	if stem == "" {
		return nil, ErrNotFound
	}
	rec, err := s.readSidecar(s.sidecarPath(stem))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	mutate(rec)
	if err := s.writeSidecar(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) sidecarPath(stem string) string {
	return filepath.Join(s.metaDir, stem+sidecarExt)
}

func (s *Store) readSidecar(path string) (*Recording, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Recording
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if rec.ID == "" {
		rec.ID = strings.TrimSuffix(filepath.Base(path), sidecarExt)
	}
	if rec.WaveformData == nil {
		rec.WaveformData = []float64{}
	}
	return &rec, nil
}

func (s *Store) writeSidecar(rec *Recording) error {
	return fsutil.WriteJSONFileAtomic(s.sidecarPath(rec.ID), rec, true)
}

// StemFromID strips any directory and extension from id.
func StemFromID(id string) string {
	id = strings.TrimSpace(strings.TrimPrefix(id, "file://"))
	if id == "" {
		return ""
	}
	base := filepath.Base(id)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// timestampFromStem recovers the creation time encoded in the stem, falling
// back to def for stems that do not follow the naming scheme.
func timestampFromStem(stem string, def int64) int64 {
	var ms int64
	if _, err := fmt.Sscanf(stem, stemPrefix+"%d", &ms); err != nil || ms <= 0 {
		return def
	}
	return ms
}

// SortNewestFirst orders recordings by timestamp, newest first.
func SortNewestFirst(recs []Recording) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp > recs[j].Timestamp
	})
}
