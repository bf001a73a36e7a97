package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"taskline/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	if cfg.Points.PerHour != 3 {
		t.Fatalf("points.per_hour = %v, want 3", cfg.Points.PerHour)
	}
	if cfg.Snapshot.Every != 25 {
		t.Fatalf("snapshot.every = %d, want 25", cfg.Snapshot.Every)
	}
	if cfg.Pomodoro.WorkMinutes != 25 || cfg.Pomodoro.BreakMinutes != 5 {
		t.Fatalf("pomodoro = %+v", cfg.Pomodoro)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" || cfg.Server.BasePath != "/v0" {
		t.Fatalf("server = %+v", cfg.Server)
	}
}

func TestFromYAMLOverridesKeepDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte("points:\n  per_hour: 5\n"))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	if cfg.Points.PerHour != 5 {
		t.Fatalf("points.per_hour = %v, want 5", cfg.Points.PerHour)
	}
	if cfg.Snapshot.Every != 25 {
		t.Fatalf("unset field lost default: %d", cfg.Snapshot.Every)
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	if _, err := config.FromYAML([]byte("points: [broken")); err == nil {
		t.Fatal("malformed yaml accepted")
	}
	if _, err := config.FromYAML([]byte("points:\n  per_hour: -1\n")); err == nil {
		t.Fatal("negative per_hour accepted")
	}
	if _, err := config.FromYAML([]byte("pomodoro:\n  work_minutes: -5\n")); err == nil {
		t.Fatal("negative work_minutes accepted")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Points.PerHour != 3 {
		t.Fatalf("missing config did not fall back to defaults: %+v", cfg)
	}
}

func TestWriteDefaultThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := config.Path(dir)
	if err := config.WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}
	if filepath.Base(path) != "taskline.yml" {
		t.Fatalf("config path = %s", path)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg != *config.Default() {
		t.Fatalf("written defaults differ: %+v", cfg)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	dir := t.TempDir()
	data := "snapshot:\n  every: 100\nserver:\n  addr: 0.0.0.0:9090\n"
	if err := os.WriteFile(config.Path(dir), []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Snapshot.Every != 100 || cfg.Server.Addr != "0.0.0.0:9090" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
