package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLevelParsing(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warning")
	logger.Info("dropped")
	logger.Warn("kept", "reference", "tr_1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["reference"] != "tr_1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "chatty")
	logger.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered, got %q", buf.String())
	}
	logger.Info("kept")
	if buf.Len() == 0 {
		t.Fatalf("info should be written")
	}
}
