package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"pdf-tools/internal/config"
	"pdf-tools/internal/logger"
	"pdf-tools/internal/organizer"
	"pdf-tools/internal/pdf"
	"pdf-tools/internal/types"
)

// Event names for frontend communication
const (
	EventTranslationStatus  = "translation-status"
	EventTranslatedPDFReady = "translated-pdf-ready"
	EventOrganizerChanged   = "organizer-changed"
)

// App is the main Wails application controller. It binds the translation
// pipeline and the page organizer to the frontend.
type App struct {
	ctx       context.Context
	config    *config.Manager
	pipeline  *pdf.Pipeline
	organizer *organizer.Organizer
	workDir   string

	processingMu sync.RWMutex
	processing   bool

	// isWailsRuntime indicates if the app is running in a Wails environment.
	// Used to safely skip EventsEmit calls during tests.
	isWailsRuntime bool
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{
		organizer: organizer.New(),
	}
}

// NewAppWithConfig creates a new App with a custom config path.
func NewAppWithConfig(configPath string) (*App, error) {
	app := NewApp()

	configMgr, err := config.NewManager(configPath)
	if err != nil {
		return nil, err
	}
	app.config = configMgr

	return app, nil
}

// SetWailsRuntime sets the Wails runtime flag.
func (a *App) SetWailsRuntime(isWails bool) {
	a.isWailsRuntime = isWails
}

// safeEmit emits an event to the frontend, only when running under Wails.
func (a *App) safeEmit(eventName string, data ...interface{}) {
	if !a.isWailsRuntime {
		logger.Debug("event emit skipped (not in Wails runtime)",
			logger.String("event", eventName))
		return
	}
	runtime.EventsEmit(a.ctx, eventName, data...)
}

// startup is called when the app starts. It loads configuration and
// wires up the pipeline.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	logger.Info("application starting up")

	if a.config == nil {
		configMgr, err := config.NewManager("")
		if err != nil {
			logger.Error("failed to create config manager", err)
			return
		}
		a.config = configMgr
	}

	if err := a.config.Load(); err != nil {
		logger.Warn("failed to load config, using defaults", logger.Err(err))
	}

	cfg := a.config.GetConfig()
	cfg.OpenAIAPIKey = a.config.GetAPIKey()
	cfg.OpenAIBaseURL = a.config.GetBaseURL()
	cfg.OpenAIModel = a.config.GetModel()

	if err := a.initWorkDir(); err != nil {
		logger.Error("failed to initialize work directory", err)
	}

	a.pipeline = pdf.NewPipeline(pdf.PipelineConfig{
		Config:  cfg,
		WorkDir: a.workDir,
	})

	logger.Info("application started", logger.String("workDir", a.workDir))
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	logger.Info("application shutting down")
	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			logger.Warn("pipeline close failed", logger.Err(err))
		}
	}
	logger.Close()
}

func (a *App) initWorkDir() error {
	workDir := a.config.GetConfig().WorkDirectory
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "pdf-tools")
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return err
	}
	a.workDir = workDir
	return nil
}

// IsProcessing reports whether a translation is currently running.
func (a *App) IsProcessing() bool {
	a.processingMu.RLock()
	defer a.processingMu.RUnlock()
	return a.processing
}

func (a *App) setProcessing(v bool) {
	a.processingMu.Lock()
	a.processing = v
	a.processingMu.Unlock()
}

// SelectPDFFile opens a file dialog for a single PDF.
func (a *App) SelectPDFFile() (string, error) {
	return runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select PDF",
		Filters: []runtime.FileFilter{
			{DisplayName: "PDF files (*.pdf)", Pattern: "*.pdf"},
		},
	})
}

// SelectPDFFiles opens a file dialog for multiple PDFs.
func (a *App) SelectPDFFiles() ([]string, error) {
	return runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select PDFs",
		Filters: []runtime.FileFilter{
			{DisplayName: "PDF files (*.pdf)", Pattern: "*.pdf"},
		},
	})
}

// LoadPDF loads a PDF into the translation pipeline.
func (a *App) LoadPDF(path string) (*pdf.PDFInfo, error) {
	info, err := a.pipeline.LoadPDF(path)
	if err != nil {
		return nil, err
	}
	a.config.SetLastInput(path)
	return info, nil
}

// TranslatePDF runs the translation over the loaded document. Status
// events stream to the frontend while it runs.
func (a *App) TranslatePDF() (*pdf.TranslationResult, error) {
	a.setProcessing(true)
	defer a.setProcessing(false)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.safeEmit(EventTranslationStatus, a.pipeline.GetStatus())
			}
		}
	}()

	result, err := a.pipeline.Translate()
	close(done)

	a.safeEmit(EventTranslationStatus, a.pipeline.GetStatus())
	if err != nil {
		return nil, err
	}

	a.safeEmit(EventTranslatedPDFReady, result.TranslatedPDFPath)
	return result, nil
}

// GetPDFStatus returns the current translation status.
func (a *App) GetPDFStatus() *types.Status {
	if a.pipeline == nil {
		return &types.Status{Phase: types.PhaseIdle}
	}
	return a.pipeline.GetStatus()
}

// CancelProcess cancels a running translation.
func (a *App) CancelProcess() {
	if a.pipeline != nil {
		if err := a.pipeline.Cancel(); err != nil {
			logger.Warn("cancel failed", logger.Err(err))
		}
	}
}

// GetConfig returns the current configuration.
func (a *App) GetConfig() *types.Config {
	return a.config.GetConfig()
}

// SaveConfig persists the configuration and applies it to the pipeline.
func (a *App) SaveConfig(cfg *types.Config) error {
	a.config.SetConfig(cfg)
	if err := a.config.Save(); err != nil {
		return err
	}
	if a.pipeline != nil {
		a.pipeline.UpdateConfig(cfg)
	}
	return nil
}

// GetOverlayColors returns the supported overlay color names.
func (a *App) GetOverlayColors() []string {
	return pdf.OverlayColorNames()
}

// GetWorkDir returns the work directory.
func (a *App) GetWorkDir() string {
	return a.workDir
}

// OrganizerAddPDF adds a PDF to the page organizer.
func (a *App) OrganizerAddPDF(path string) (*organizer.Document, error) {
	doc, err := a.organizer.AddPDF(path)
	if err != nil {
		return nil, err
	}
	a.safeEmit(EventOrganizerChanged)
	return doc, nil
}

// OrganizerInsertPDF adds a PDF with its pages inserted at a position.
func (a *App) OrganizerInsertPDF(path string, at int) (*organizer.Document, error) {
	doc, err := a.organizer.InsertPDF(path, at)
	if err != nil {
		return nil, err
	}
	a.safeEmit(EventOrganizerChanged)
	return doc, nil
}

// OrganizerPages returns the arranged page list.
func (a *App) OrganizerPages() []organizer.PageItem {
	items := a.organizer.Pages()
	docs := a.organizer.Documents()
	// Preview URLs go through the /pdf/ asset handler.
	for i := range items {
		items[i].URL = "/pdf/" + docs[items[i].FileIndex].Path
	}
	return items
}

// OrganizerMovePage reorders the page list.
func (a *App) OrganizerMovePage(from, to int) error {
	if err := a.organizer.MovePage(from, to); err != nil {
		return err
	}
	a.safeEmit(EventOrganizerChanged)
	return nil
}

// OrganizerToggleSelection flips a page's inclusion in the output.
func (a *App) OrganizerToggleSelection(index int) error {
	if err := a.organizer.ToggleSelection(index); err != nil {
		return err
	}
	a.safeEmit(EventOrganizerChanged)
	return nil
}

// OrganizerRemovePage removes a page from the list.
func (a *App) OrganizerRemovePage(index int) error {
	if err := a.organizer.RemovePage(index); err != nil {
		return err
	}
	a.safeEmit(EventOrganizerChanged)
	return nil
}

// OrganizerClear resets the organizer.
func (a *App) OrganizerClear() {
	a.organizer.Clear()
	a.safeEmit(EventOrganizerChanged)
}

// OrganizerSaveAs asks for an output path and assembles the arranged PDF.
func (a *App) OrganizerSaveAs() (string, error) {
	outputPath, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Save arranged PDF",
		DefaultFilename: "arranged.pdf",
		Filters: []runtime.FileFilter{
			{DisplayName: "PDF files (*.pdf)", Pattern: "*.pdf"},
		},
	})
	if err != nil {
		return "", err
	}
	if outputPath == "" {
		return "", nil // user cancelled
	}

	if err := a.organizer.Assemble(outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// OrganizerAssemble writes the arranged pages to the given path.
func (a *App) OrganizerAssemble(outputPath string) error {
	return a.organizer.Assemble(outputPath)
}
