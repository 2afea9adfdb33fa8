package main

import (
	"context"
	"testing"

	"github.com/oriys/iotagent/internal/agentlib"
	"github.com/oriys/iotagent/internal/config"
	"github.com/oriys/iotagent/internal/plugin"
)

func TestBuildPluginDefaultsToLoopback(t *testing.T) {
	mqttAddr = ""
	p, audit, err := buildPlugin(context.Background(), config.DefaultConfig())
	if err != nil {
		t.Fatalf("buildPlugin: %v", err)
	}
	if audit != nil {
		t.Fatal("expected no audit decorator with the telemetry store disabled")
	}
	if _, ok := p.(*plugin.Loopback); !ok {
		t.Fatalf("expected *plugin.Loopback when --bridge-addr is unset, got %T", p)
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]agentlib.Severity{
		"info":     agentlib.SeverityInfo,
		"warning":  agentlib.SeverityWarning,
		"error":    agentlib.SeverityError,
		"critical": agentlib.SeverityCritical,
		"bogus":    agentlib.SeverityWarning,
	}
	for in, want := range cases {
		if got := parseSeverity(in); got != want {
			t.Errorf("parseSeverity(%q) = %v, want %v", in, got, want)
		}
	}
}
