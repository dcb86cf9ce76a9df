package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dsh.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "prompt: \"[{pid}] > \"\njob_control: off\nverbose: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prompt != "[{pid}] > " {
		t.Errorf("Prompt = %q", cfg.Prompt)
	}
	if cfg.JobControl != JobControlOff {
		t.Errorf("JobControl = %q", cfg.JobControl)
	}
	if !cfg.Verbose {
		t.Errorf("Verbose = false")
	}
	if cfg.BackgroundStdin != os.DevNull {
		t.Errorf("BackgroundStdin = %q, want default %q", cfg.BackgroundStdin, os.DevNull)
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected not-exist error, got %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"job control":  "job_control: sometimes\n",
		"empty prompt": "prompt: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "prompt: [unterminated\n")); err == nil {
		t.Fatal("Expected a parse error")
	}
}

func TestRenderPrompt(t *testing.T) {
	cfg := Default()
	if got := cfg.RenderPrompt(123); got != "dsh-123$ " {
		t.Fatalf("Expected %q, got %q", "dsh-123$ ", got)
	}
}

func TestJobControlEnabled(t *testing.T) {
	cfg := Default()

	cfg.JobControl = JobControlOn
	if !cfg.JobControlEnabled(-1) {
		t.Error("on should force job control")
	}
	cfg.JobControl = JobControlOff
	if cfg.JobControlEnabled(0) {
		t.Error("off should disable job control")
	}

	f, err := os.CreateTemp(t.TempDir(), "notatty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg.JobControl = JobControlAuto
	if cfg.JobControlEnabled(int(f.Fd())) {
		t.Error("auto should be off for a regular file")
	}
}
