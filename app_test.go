package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pdf-tools/internal/config"
	"pdf-tools/internal/types"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.json")
	app, err := NewAppWithConfig(configPath)
	if err != nil {
		t.Fatalf("NewAppWithConfig failed: %v", err)
	}

	app.startup(context.Background())
	t.Cleanup(func() { app.shutdown(context.Background()) })
	return app
}

// TestAppStartup verifies startup wires config and pipeline.
func TestAppStartup(t *testing.T) {
	app := newTestApp(t)

	if app.pipeline == nil {
		t.Fatal("pipeline not created during startup")
	}
	if app.workDir == "" {
		t.Error("work directory not initialized")
	}

	cfg := app.GetConfig()
	if cfg.TargetLanguage != config.DefaultTargetLanguage {
		t.Errorf("TargetLanguage = %q, want default %q", cfg.TargetLanguage, config.DefaultTargetLanguage)
	}

	status := app.GetPDFStatus()
	if status.Phase != types.PhaseIdle {
		t.Errorf("initial phase = %s, want %s", status.Phase, types.PhaseIdle)
	}
	if app.IsProcessing() {
		t.Error("app should not be processing after startup")
	}
}

// TestAppSaveConfig verifies SaveConfig persists and reaches the pipeline.
func TestAppSaveConfig(t *testing.T) {
	app := newTestApp(t)

	cfg := app.GetConfig()
	cfg.TargetLanguage = "fr"
	cfg.TextColor = "blue"

	if err := app.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	reloaded, err := config.NewManager(app.config.GetConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if got := reloaded.GetConfig().TargetLanguage; got != "fr" {
		t.Errorf("persisted TargetLanguage = %q, want fr", got)
	}
	if got := reloaded.GetConfig().TextColor; got != "blue" {
		t.Errorf("persisted TextColor = %q, want blue", got)
	}
}

// TestCLIOverridesNotPersisted verifies flag overrides reach the running
// pipeline without being written to the config file.
func TestCLIOverridesNotPersisted(t *testing.T) {
	app := newTestApp(t)

	oldTarget := *targetFlag
	oldColor := *colorFlag
	*targetFlag = "de"
	*colorFlag = "blue"
	t.Cleanup(func() {
		*targetFlag = oldTarget
		*colorFlag = oldColor
	})

	cfg := applyCLIOverrides(app)

	if cfg.TargetLanguage != "de" {
		t.Errorf("TargetLanguage = %q, want de", cfg.TargetLanguage)
	}
	if cfg.TextColor != "blue" {
		t.Errorf("TextColor = %q, want blue", cfg.TextColor)
	}

	// One-off CLI overrides must never reach the stored configuration.
	if _, err := os.Stat(app.config.GetConfigPath()); !os.IsNotExist(err) {
		t.Error("config file written by CLI overrides")
	}
}

// TestAppOverlayColors verifies the color list for the frontend.
func TestAppOverlayColors(t *testing.T) {
	app := newTestApp(t)

	colors := app.GetOverlayColors()
	if len(colors) == 0 {
		t.Fatal("no overlay colors")
	}

	found := false
	for _, c := range colors {
		if c == "darkred" {
			found = true
		}
	}
	if !found {
		t.Error("default color darkred missing")
	}
}

// TestAppOrganizerBindings verifies the organizer bindings stay safe
// outside the Wails runtime.
func TestAppOrganizerBindings(t *testing.T) {
	app := newTestApp(t)

	if pages := app.OrganizerPages(); len(pages) != 0 {
		t.Errorf("expected empty page list, got %d", len(pages))
	}
	if _, err := app.OrganizerAddPDF("/nonexistent.pdf"); err == nil {
		t.Error("expected error for missing file")
	}
	if err := app.OrganizerMovePage(0, 1); err == nil {
		t.Error("expected error on empty page list")
	}
	app.OrganizerClear()
}

// TestAppCancelWithoutRun verifies cancel is a no-op when idle.
func TestAppCancelWithoutRun(t *testing.T) {
	app := newTestApp(t)

	app.CancelProcess()
	if status := app.GetPDFStatus(); status.Phase != types.PhaseIdle {
		t.Errorf("phase after idle cancel = %s, want %s", status.Phase, types.PhaseIdle)
	}
}
