package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, slog.LevelWarn, false)
	log.Info("hidden")
	log.Warn("include conflict", "key", "$.USART1")
	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info message logged at warn level: %q", got)
	}
	if strings.Contains(got, "time=") {
		t.Errorf("time attribute present: %q", got)
	}
	if !strings.Contains(got, "level=WARN") || !strings.Contains(got, "key=$.USART1") {
		t.Errorf("unexpected output %q", got)
	}

	buf.Reset()
	colored := newLogger(&buf, slog.LevelInfo, true).With("path", "dev.yaml")
	colored.Debug("hidden")
	colored.WithGroup("g").Error("failed", "key", "k")
	got = buf.String()
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("no color escape in %q", got)
	}
	if !strings.HasSuffix(got, " failed path=dev.yaml g.key=k\n") || strings.Contains(got, "hidden") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestEnvOpt(t *testing.T) {
	env := map[string]any{}
	f := envOptTypeFunc(env)
	if _, err := f(nil, "board=nucleo=1"); err != nil {
		t.Fatal(err)
	}
	if env["board"] != "nucleo=1" {
		t.Errorf("env %v", env)
	}
	if _, err := f(nil, "novalue"); err == nil {
		t.Error("expected usage error")
	}
}
