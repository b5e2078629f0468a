package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	os.Setenv("MONGODB_DATABASE", "dokstore_test")
	os.Setenv("REDIS_HOST", "localhost")
	os.Setenv("REDIS_PORT", "6379")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Host == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
}

func TestLoadConfigDocumentDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Documents.DocumentsDir != "documents/" {
		t.Fatalf("DocumentsDir = %q, want %q", cfg.Documents.DocumentsDir, "documents/")
	}
	if cfg.Documents.PreviewDir != "previews/" {
		t.Fatalf("PreviewDir = %q, want %q", cfg.Documents.PreviewDir, "previews/")
	}
	if cfg.Documents.ProtectAfter != 24*time.Hour {
		t.Fatalf("ProtectAfter = %v, want 24h", cfg.Documents.ProtectAfter)
	}
	if !cfg.Documents.RenderPreview {
		t.Fatalf("RenderPreview should default to true")
	}
}
