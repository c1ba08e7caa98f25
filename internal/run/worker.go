package run

import (
	"context"
	"time"

	"speechinsight/internal/config"
	"speechinsight/internal/hook"
	"speechinsight/internal/pipeline"
	"speechinsight/internal/recording"
)

type hookTask struct {
	runner *hook.Runner
	hook   *config.HookConfig
	job    hook.Job
}

func (s *Server) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue.ch:
			s.runJob(ctx, j)
		}
	}
}

func (s *Server) runJob(ctx context.Context, j job) {
	proc, runner, cfg := s.components()
	s.queue.start(j)
	res, err := proc.Process(ctx, j.recordingID, pipeline.Options{Force: j.force})
	if err != nil {
		s.metrics.incFailed()
		s.logger.Errorf("job %s: %v", j.id, err)
		s.queue.finish(j, "", err)
		return
	}
	if res.UsedFallback {
		s.metrics.incFallback()
	}
	emotion := ""
	if res.Recording != nil && res.Recording.EmotionSummary != nil {
		emotion = res.Recording.EmotionSummary.DominantEmotion
	}
	s.queue.finish(j, emotion, nil)
	if !res.Analyzed {
		return
	}
	s.metrics.incAnalyzed()
	s.logger.Infof("job %s: %s analyzed, dominant emotion %s", j.id, j.recordingID, emotion)
	s.dispatchHook(cfg, runner, res.Recording)
}

// dispatchHook queues the hook matching the recording's dominant emotion.
func (s *Server) dispatchHook(cfg *config.Config, runner *hook.Runner, rec *recording.Recording) {
	emotion := rec.EmotionSummary.DominantEmotion
	hk := hook.SelectHookConfig(cfg, emotion)
	if hk == nil {
		s.logger.Debug("no hooks configured")
		return
	}
	text := rec.EmotionSummary.Summary
	if text == "" {
		text = rec.EmotionSummary.EmotionSummary
	}
	task := hookTask{
		runner: runner,
		hook:   hk,
		job: hook.Job{
			RecordingID: rec.ID,
			Title:       rec.Title,
			Emotion:     emotion,
			Text:        text,
			Timestamp:   time.Now(),
		},
	}
	select {
	case s.hookCh <- task:
	default:
		s.metrics.incDropped()
		s.logger.Warn("hook queue full, dropping job")
	}
}

func (s *Server) hookWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.hookCh:
			task.runner.SelectHook(task.hook)
			if !task.runner.ShouldRun() {
				s.logger.Debug("hook skipped (cooldown)")
				s.metrics.incSkipped()
				continue
			}
			if err := task.runner.Run(ctx, task.job); err != nil {
				s.metrics.incHookErr()
				s.logger.Errorf("hook: %v", err)
				continue
			}
			s.metrics.incSent()
		}
	}
}
