package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestErrorEmitsStructuredLine(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	Error("heist write failed", errors.New("boom"), map[string]any{"collection": "heists"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != "error" || entry["msg"] != "heist write failed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["error"] != "boom" || entry["collection"] != "heists" {
		t.Fatalf("fields missing: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts")
	}
}
