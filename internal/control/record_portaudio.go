//go:build portaudio

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speechinsight/internal/config"
	"speechinsight/internal/ui"
	"speechinsight/internal/waveform"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"
)

// NewRecordCmd captures a recording from the microphone.
func NewRecordCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone until Ctrl+C (or --max)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*cfgPath)
			if err != nil {
				return err
			}
			maxDur, _ := cmd.Flags().GetDuration("max")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tmp, err := os.CreateTemp(e.store.AudioDir(), ".record-*.wav")
			if err != nil {
				return err
			}
			a, err := recordWAV(ctx, e.cfg, e.meterInterval(), maxDur, tmp, cmd.ErrOrStderr())
			if cerr := tmp.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(tmp.Name())
				return err
			}
			rec, err := e.store.Save(tmp.Name(), a.Duration.Milliseconds(), a.Samples)
			if err != nil {
				_ = os.Remove(tmp.Name())
				return err
			}
			if title, _ := cmd.Flags().GetString("title"); title != "" {
				if rec, err = e.store.UpdateTitle(rec.ID, title); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", rec.ID, ui.FormatDuration(rec.Length()))
			if analyze, _ := cmd.Flags().GetBool("analyze"); analyze {
				return analyzeLocal(cmd.Context(), cmd.OutOrStdout(), e, []string{rec.ID}, false)
			}
			return nil
		},
	}
	cmd.Flags().String("title", "", "title for the recording")
	cmd.Flags().Duration("max", 0, "stop automatically after this long")
	cmd.Flags().Bool("analyze", false, "transcribe and analyze after recording")
	return cmd
}

// recordWAV streams 16-bit mono PCM from the configured input into w until
// ctx is done or maxDur elapses, metering one amplitude per interval.
func recordWAV(ctx context.Context, cfg *config.Config, interval, maxDur time.Duration, w io.WriteSeeker, progress io.Writer) (waveform.Analysis, error) {
	if err := portaudio.Initialize(); err != nil {
		return waveform.Analysis{}, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	dev, err := selectDevice(cfg.Audio.DeviceName)
	if err != nil {
		return waveform.Analysis{}, err
	}
	sr := cfg.Audio.SampleRate
	frames := int(int64(sr) * int64(interval) / int64(time.Second))
	buf := make([]int16, frames)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(sr),
		FramesPerBuffer: frames,
	}, &buf)
	if err != nil {
		return waveform.Analysis{}, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return waveform.Analysis{}, fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()

	enc := wav.NewEncoder(w, sr, 16, 1, 1)
	pcm := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sr},
		SourceBitDepth: 16,
		Data:           make([]int, frames),
	}
	floats := make([]float32, frames)
	var (
		sampler waveform.Sampler
		total   int
	)
	fmt.Fprintf(progress, "recording from %s, Ctrl+C to stop\n", dev.Name)
	for ctx.Err() == nil {
		if maxDur > 0 && time.Duration(total)*time.Second/time.Duration(sr) >= maxDur {
			break
		}
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			return waveform.Analysis{}, fmt.Errorf("stream read: %w", err)
		}
		for i, v := range buf {
			pcm.Data[i] = int(v)
			floats[i] = float32(v) / 32768
		}
		if err := enc.Write(pcm); err != nil {
			return waveform.Analysis{}, fmt.Errorf("write wav: %w", err)
		}
		sampler.AddFrame(floats)
		total += frames
		elapsed := time.Duration(total) * time.Second / time.Duration(sr)
		fmt.Fprintf(progress, "\r● %s %s", ui.FormatDuration(elapsed), ui.RenderBars(sampler.Snapshot(), 30))
	}
	fmt.Fprintln(progress)
	if err := enc.Close(); err != nil {
		return waveform.Analysis{}, fmt.Errorf("finish wav: %w", err)
	}
	return waveform.Analysis{
		Duration: time.Duration(total) * time.Second / time.Duration(sr),
		Samples:  sampler.Snapshot(),
	}, nil
}
