//go:build whisper

package transcribe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"speechinsight/internal/config"
	"speechinsight/internal/waveform"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	vad "github.com/maxhawkins/go-webrtcvad"
	"github.com/sirupsen/logrus"
)

const (
	whisperRate = 16000
	vadFrameMS  = 30
)

// LocalTranscriber runs whisper.cpp on a WAV file. Silent frames are dropped
// with webrtc VAD before inference.
type LocalTranscriber struct {
	modelPath string
	language  string
	vadMode   int
	logger    *logrus.Logger
}

// Available reports whether this binary was built with local transcription.
func Available() bool { return true }

func NewLocal(cfg *config.Config, logger *logrus.Logger) (Transcriber, error) {
	if _, err := os.Stat(cfg.Transcription.ModelPath); err != nil {
		return nil, fmt.Errorf("whisper model: %w (run `speechinsight models download`)", err)
	}
	return &LocalTranscriber{
		modelPath: cfg.Transcription.ModelPath,
		language:  strings.TrimSpace(cfg.Transcription.Language),
		vadMode:   cfg.Transcription.VADMode,
		logger:    logger,
	}, nil
}

func (l *LocalTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	pcm, err := waveform.DecodeWAV(f)
	_ = f.Close()
	if err != nil {
		return "", fmt.Errorf("%s: %w (local transcription needs WAV input)", audioPath, err)
	}
	samples := waveform.Resample(pcm.Samples, pcm.SampleRate, whisperRate)

	voiced, err := l.dropSilence(samples)
	if err != nil {
		l.logger.Warnf("vad: %v; transcribing unfiltered audio", err)
		voiced = samples
	}
	if len(voiced) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.run(voiced)
}

func (l *LocalTranscriber) dropSilence(samples []float32) ([]float32, error) {
	frame := whisperRate * vadFrameMS / 1000
	if !vad.ValidRateAndFrameLength(whisperRate, frame) {
		return nil, fmt.Errorf("invalid vad frame %d @ %d Hz", frame, whisperRate)
	}
	v, err := vad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(l.vadMode); err != nil {
		return nil, err
	}
	buf := make([]byte, frame*2)
	out := make([]float32, 0, len(samples))
	for start := 0; start+frame <= len(samples); start += frame {
		chunk := samples[start : start+frame]
		for i, s := range chunk {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(toInt16(s)))
		}
		active, err := v.Process(whisperRate, buf)
		if err != nil {
			return nil, err
		}
		if active {
			out = append(out, chunk...)
		}
	}
	l.logger.Debugf("vad kept %d of %d samples", len(out), len(samples))
	return out, nil
}

func (l *LocalTranscriber) run(samples []float32) (string, error) {
	model, err := whisper.New(l.modelPath)
	if err != nil {
		return "", fmt.Errorf("load model: %w", err)
	}
	defer func() { _ = model.Close() }()

	wctx, err := model.NewContext()
	if err != nil {
		return "", err
	}
	wctx.SetThreads(uint(runtime.NumCPU()))
	if l.language != "" {
		if err := wctx.SetLanguage(l.language); err != nil {
			l.logger.Warnf("set language: %v", err)
		}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		b.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func toInt16(s float32) int16 {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	}
	return int16(s * 32767)
}
