// Package pipeline runs a stored recording through transcription and
// analysis, persisting each stage's output as soon as it succeeds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"speechinsight/internal/analysis"
	"speechinsight/internal/recording"
	"speechinsight/internal/transcribe"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for ids with no stored recording.
var ErrNotFound = recording.ErrNotFound

type Stage string

const (
	StageTranscription Stage = "transcription"
	StageAnalysis      Stage = "analysis"
)

// StageError ties a failure to the stage that produced it. Stages that
// already succeeded are persisted, so calling Process again resumes here.
type StageError struct {
	Stage Stage
	ID    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.ID, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Store is the subset of recording.Store the pipeline uses.
type Store interface {
	GetByID(id string) (*recording.Recording, bool)
	SaveAnalysis(id, transcript string, summary *recording.EmotionSummary) (*recording.Recording, error)
}

type Options struct {
	// Force reruns stages whose output is already stored.
	Force bool
}

// Result reports what Process did.
type Result struct {
	Recording    *recording.Recording
	Transcribed  bool
	Analyzed     bool
	UsedFallback bool
}

type Processor struct {
	Store       Store
	Transcriber transcribe.Transcriber
	Analyzer    analysis.Analyzer
	// Fallback, when set, is tried once if Analyzer fails.
	Fallback analysis.Analyzer
	Logger   *logrus.Logger
}

func (p *Processor) logger() *logrus.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Process transcribes and analyzes the recording with the given id, skipping
// stages whose output is already stored unless opts.Force is set.
func (p *Processor) Process(ctx context.Context, id string, opts Options) (Result, error) {
	log := p.logger()
	rec, ok := p.Store.GetByID(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	res := Result{Recording: rec}

	transcript := rec.Transcript
	if strings.TrimSpace(transcript) == "" || opts.Force {
		if p.Transcriber == nil {
			return res, &StageError{Stage: StageTranscription, ID: rec.ID, Err: errors.New("no transcriber configured")}
		}
		log.Infof("transcribing %s", rec.ID)
		text, err := p.Transcriber.Transcribe(ctx, rec.URI)
		if err != nil {
			return res, &StageError{Stage: StageTranscription, ID: rec.ID, Err: err}
		}
		transcript = strings.TrimSpace(text)
		updated, err := p.Store.SaveAnalysis(rec.ID, transcript, nil)
		if err != nil {
			return res, fmt.Errorf("persist transcript: %w", err)
		}
		rec = updated
		res.Recording = rec
		res.Transcribed = true
	}

	if transcript == "" {
		log.Infof("%s: empty transcript, nothing to analyze", rec.ID)
		return res, nil
	}
	if rec.EmotionSummary != nil && !opts.Force {
		return res, nil
	}

	if p.Analyzer == nil {
		return res, &StageError{Stage: StageAnalysis, ID: rec.ID, Err: errors.New("no analyzer configured")}
	}
	log.Infof("analyzing %s (%d chars)", rec.ID, len(transcript))
	sum, err := p.Analyzer.Analyze(ctx, transcript)
	if err != nil && p.Fallback != nil && ctx.Err() == nil {
		log.Warnf("analysis failed for %s, using fallback: %v", rec.ID, err)
		sum, err = p.Fallback.Analyze(ctx, transcript)
		res.UsedFallback = err == nil
	}
	if err != nil {
		return res, &StageError{Stage: StageAnalysis, ID: rec.ID, Err: err}
	}
	updated, err := p.Store.SaveAnalysis(rec.ID, transcript, &sum)
	if err != nil {
		return res, fmt.Errorf("persist analysis: %w", err)
	}
	res.Recording = updated
	res.Analyzed = true
	return res, nil
}
