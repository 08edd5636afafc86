package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"taskbin/internal/logging"
)

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, false)
	logger.Debug("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug output should be suppressed")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warnings should be written")
	}

	buf.Reset()
	logger = logging.New(&buf, true)
	logger.WithField("path", "/boards").Debug("request")
	if !strings.Contains(buf.String(), "path=/boards") {
		t.Errorf("expected debug fields, got %q", buf.String())
	}
}

func TestOrDiscard(t *testing.T) {
	if logging.OrDiscard(nil) == nil {
		t.Fatal("expected a logger")
	}
	l := logging.Discard()
	if logging.OrDiscard(l) != l {
		t.Error("expected the same logger back")
	}
}
