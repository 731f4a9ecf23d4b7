package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")
	l.Info().Str("host", "mc.example.com").Msg("Query finished")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["host"] != "mc.example.com" || entry["message"] != "Query finished" || entry["time"] == nil {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewConsoleNoColor(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console")
	l.Warn().Msg("History queue full")

	out := buf.String()
	if !strings.Contains(out, "History queue full") || strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected console output %q", out)
	}
}

func TestSetupFile(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "craftping.log")
	Setup(Config{Level: "bogus", Format: "json", Output: path})

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("unknown level must fall back to info, got %s", zerolog.GlobalLevel())
	}

	log.Debug().Msg("hidden")
	log.Info().Msg("visible")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "visible") || strings.Contains(string(content), "hidden") {
		t.Fatalf("unexpected log file %q", content)
	}
}
