package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func boolPtr(b bool) *bool { return &b }

func TestValidate_VersionRequired(t *testing.T) {
	t.Parallel()

	err := Validate(&Config{})
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestValidate_UnknownModule(t *testing.T) {
	t.Parallel()

	cfg := &Config{Version: "1"}
	cfg.Modules = map[string]yaml.Node{"does.not.exist": {}}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "unknown module") {
		t.Fatalf("expected unknown module error, got %v", err)
	}
}

func TestValidateJobs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		job     JobConfig
		wantErr string
	}{
		{
			name:    "missing name",
			job:     JobConfig{Schedule: "* * * * *", Handler: "h"},
			wantErr: "name is required",
		},
		{
			name:    "missing schedule",
			job:     JobConfig{Name: "a", Handler: "h"},
			wantErr: "schedule is required",
		},
		{
			name:    "missing handler",
			job:     JobConfig{Name: "a", Schedule: "* * * * *"},
			wantErr: "handler is required",
		},
		{
			name:    "bad overlap",
			job:     JobConfig{Name: "a", Schedule: "* * * * *", Handler: "h", Overlap: "retry"},
			wantErr: "overlap must be",
		},
		{
			name: "valid",
			job:  JobConfig{Name: "a", Schedule: "*/5 * * * *", Handler: "h", Overlap: OverlapQueue},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := validateJobs([]JobConfig{tc.job})
			if tc.wantErr == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(errs[0].Error(), tc.wantErr) {
				t.Errorf("error %v does not contain %q", errs[0], tc.wantErr)
			}
		})
	}
}

func TestJobConfig_IsEnabled(t *testing.T) {
	t.Parallel()

	if !(JobConfig{}).IsEnabled() {
		t.Error("nil Enabled should default to true")
	}
	if (JobConfig{Enabled: boolPtr(false)}).IsEnabled() {
		t.Error("explicit false should disable")
	}
	if !(JobConfig{Enabled: boolPtr(true)}).IsEnabled() {
		t.Error("explicit true should enable")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replyloop.yaml")

	t.Setenv("RL_TEST_SCHEDULE", "*/10 * * * *")

	raw := `
version: "1"
jobs:
  - name: comments
    schedule: "${RL_TEST_SCHEDULE}"
    handler: youtube.check_comments
  - name: fallback
    schedule: "${RL_TEST_MISSING:-0 * * * *}"
    handler: compose.draft
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Jobs[0].Schedule; got != "*/10 * * * *" {
		t.Errorf("env expansion: got %q", got)
	}
	if got := cfg.Jobs[1].Schedule; got != "0 * * * *" {
		t.Errorf("default expansion: got %q", got)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replyloop.yaml")

	raw := "version: \"1\"\njobs:\n  - name: a\n    schedule: \"${RL_DEFINITELY_UNSET}\"\n    handler: h\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected unresolved variable error")
	}
}
