package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FETCHARR_API_KEY", "")
	t.Setenv("SOURCES_ENABLED", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "10000" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "10000")
	}
	if cfg.APIKey != "abcde" {
		t.Fatalf("APIKey mismatch: got %q want %q", cfg.APIKey, "abcde")
	}
	if len(cfg.EnabledSources) != 1 || cfg.EnabledSources[0] != "gutendex" {
		t.Fatalf("EnabledSources mismatch: %#v", cfg.EnabledSources)
	}
	if cfg.QueueInterval != time.Second {
		t.Fatalf("QueueInterval mismatch: got %v", cfg.QueueInterval)
	}
	if cfg.HTTPShutdownTimeout != 15*time.Second {
		t.Fatalf("HTTPShutdownTimeout mismatch: got %v", cfg.HTTPShutdownTimeout)
	}
}

func TestLoadConfigParsesLists(t *testing.T) {
	t.Setenv("SOURCES_ENABLED", " gutendex , openlibrary ,")
	t.Setenv("SOURCE_ENDPOINTS", "http://mirror-a.example,http://mirror-b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"gutendex", "openlibrary"}
	if len(cfg.EnabledSources) != len(want) {
		t.Fatalf("EnabledSources mismatch: got %#v want %#v", cfg.EnabledSources, want)
	}
	for i, id := range want {
		if cfg.EnabledSources[i] != id {
			t.Fatalf("EnabledSources[%d] = %q, want %q", i, cfg.EnabledSources[i], id)
		}
	}
	if len(cfg.SourceEndpoints) != 2 {
		t.Fatalf("SourceEndpoints mismatch: %#v", cfg.SourceEndpoints)
	}
}

func TestLoadConfigHonorsIntervalOverride(t *testing.T) {
	t.Setenv("QUEUE_SCAN_INTERVAL_SECONDS", "5")
	t.Setenv("PROBE_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.QueueInterval != 5*time.Second {
		t.Fatalf("QueueInterval mismatch: got %v", cfg.QueueInterval)
	}
	if cfg.ProbeTimeout != 10*time.Second {
		t.Fatalf("ProbeTimeout should fall back on parse failure, got %v", cfg.ProbeTimeout)
	}
}
