//go:build !whisper

package transcribe

import (
	"errors"

	"speechinsight/internal/config"

	"github.com/sirupsen/logrus"
)

// Available reports whether this binary was built with local transcription.
func Available() bool { return false }

func NewLocal(_ *config.Config, _ *logrus.Logger) (Transcriber, error) {
	return nil, errors.New("local transcription not built; rebuild with -tags whisper")
}
