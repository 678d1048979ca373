package shared

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestNewLogger(t *testing.T) {
	t.Run("writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello")

		if buf.Len() == 0 {
			t.Error("expected log output")
		}
	})

	t.Run("nil writer defaults to stderr", func(t *testing.T) {
		logger := NewLogger(nil)
		if logger == nil {
			t.Fatal("expected a logger")
		}
	})

	t.Run("child loggers carry key-value pairs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		child := WithLogger(logger, "component", "uploader")
		child.Info("working")

		if !bytes.Contains(buf.Bytes(), []byte("uploader")) {
			t.Errorf("expected component field in output, got %s", buf.String())
		}
	})

	t.Run("SetLogLevel filters lower levels", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("quiet")

		if buf.Len() != 0 {
			t.Errorf("expected info to be suppressed, got %s", buf.String())
		}
	})
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected a valid UUID, got %s: %v", id, err)
	}

	if GenerateID() == id {
		t.Error("expected unique IDs")
	}
}
