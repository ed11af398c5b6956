package device

import (
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/logging"
)

// Journal records diagnostic lines. The diagnostic service implements it by
// writing to the transcript and relaying to the connected client.
type Journal interface {
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// TranscriptJournal writes to the transcript only. It is used before the
// diagnostic service exists, during boot.
type TranscriptJournal struct{}

func (TranscriptJournal) Info(msg string, fields ...zap.Field)  { logging.Info(msg, fields...) }
func (TranscriptJournal) Warn(msg string, fields ...zap.Field)  { logging.Warn(msg, fields...) }
func (TranscriptJournal) Error(msg string, fields ...zap.Field) { logging.Error(msg, fields...) }
