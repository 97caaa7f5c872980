package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caio-sobreiro/dimsenet/dicom"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dimsekit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
ae_title: ARCHIVE
listen: 127.0.0.1:4242
peers:
  WORKSTATION: 10.0.0.5:104
timeouts:
  read: 5s
engine:
  cancel_poll_timeout: 250ms
  group_length: remove
trace:
  file: /var/log/dimse.log
  dump_dir: /tmp/dumps
storage:
  directory: /srv/dicom
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AETitle != "ARCHIVE" || cfg.Listen != "127.0.0.1:4242" {
		t.Errorf("AE/listen = %q/%q", cfg.AETitle, cfg.Listen)
	}
	if cfg.Timeouts.Read != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", cfg.Timeouts.Read)
	}
	if cfg.Timeouts.Connect != DefaultTimeout {
		t.Errorf("connect timeout = %v, want default", cfg.Timeouts.Connect)
	}
	if cfg.MaxPDULength != DefaultMaxPDULength {
		t.Errorf("max PDU = %d, want default", cfg.MaxPDULength)
	}
	if cfg.Trace.MaxSizeMB != 10 || cfg.Trace.DumpDir != "/tmp/dumps" {
		t.Errorf("trace = %+v", cfg.Trace)
	}
	if cfg.Storage.Directory != "/srv/dicom" {
		t.Errorf("storage = %+v", cfg.Storage)
	}

	engine := cfg.EngineConfig()
	if engine.CancelPollTimeout != 250*time.Millisecond {
		t.Errorf("cancel poll = %v", engine.CancelPollTimeout)
	}
	if engine.DataEncoding.GroupLength != dicom.GroupLengthRemove {
		t.Errorf("group length policy = %v", engine.DataEncoding.GroupLength)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "ae_title: [unterminated"},
		{"long AE title", "ae_title: THIS_TITLE_IS_TOO_LONG"},
		{"bad peer address", "peers:\n  PACS: nowhere"},
		{"negative timeout", "timeouts:\n  read: -1s"},
		{"bad group length", "engine:\n  group_length: sometimes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file expected error")
	}
}

func TestPeer(t *testing.T) {
	cfg := Default()
	cfg.Peers = map[string]string{"PACS": "pacs.example:104"}

	tests := []struct {
		target   string
		wantAE   string
		wantAddr string
		wantErr  bool
	}{
		{"PACS", "PACS", "pacs.example:104", false},
		{"127.0.0.1:11112", "", "127.0.0.1:11112", false},
		{"UNKNOWN", "", "", true},
	}
	for _, tt := range tests {
		ae, addr, err := cfg.Peer(tt.target)
		if (err != nil) != tt.wantErr {
			t.Errorf("Peer(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			continue
		}
		if ae != tt.wantAE || addr != tt.wantAddr {
			t.Errorf("Peer(%q) = %q, %q; want %q, %q", tt.target, ae, addr, tt.wantAE, tt.wantAddr)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.AETitle != DefaultAETitle || cfg.Listen != DefaultListenAddress {
		t.Errorf("Default() = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
