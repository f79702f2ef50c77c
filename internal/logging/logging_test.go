package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aisavvy/aisavvy/internal/config"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.Info("hello", "key", "value")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	if entry["msg"] != "hello" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}

	if entry["service"] != "aisavvy" {
		t.Errorf("missing service attribute: %v", entry["service"])
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	logger.Info("hello")

	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("unexpected text output: %s", buf.String())
	}
}

func TestNewLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Error("info should be filtered at warn level")
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn should pass at warn level")
	}
}

func TestNewNilWriterDiscards(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "info", Format: "text"}, nil)
	logger.Info("should not panic")
}
