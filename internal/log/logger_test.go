package log

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerParsesLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(" DEBUG ")
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("")
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	if logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger("chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestInitSentryWithoutDSNIsNoop(t *testing.T) {
	t.Parallel()

	hub, flush, err := InitSentry(Discard(), SentrySettings{})
	if err != nil {
		t.Fatalf("InitSentry returned error: %v", err)
	}
	if hub != nil {
		t.Fatalf("expected nil hub without DSN")
	}

	flush()
}
