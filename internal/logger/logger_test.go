package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "info")

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力がJSONではない: %v", err)
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want test message", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logDebug  bool
		wantEmpty bool
	}{
		{name: "infoレベルではdebugは出力されない", level: "info", logDebug: true, wantEmpty: true},
		{name: "debugレベルではdebugが出力される", level: "debug", logDebug: true, wantEmpty: false},
		{name: "不明なレベルはinfo扱い", level: "verbose", logDebug: true, wantEmpty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := Setup(&buf, tt.level)

			if tt.logDebug {
				l.Debug("debug message")
			}

			if tt.wantEmpty && buf.Len() != 0 {
				t.Errorf("出力が空であるべきところに出力があった: %s", buf.String())
			}
			if !tt.wantEmpty && buf.Len() == 0 {
				t.Error("出力があるべきところで空だった")
			}
		})
	}
}
