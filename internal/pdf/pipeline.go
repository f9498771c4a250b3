package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pdf-tools/internal/config"
	"pdf-tools/internal/logger"
	"pdf-tools/internal/translator"
	"pdf-tools/internal/types"
)

// Pipeline drives the translation-layer build for one document:
// load and validate, extract blocks, translate, write the overlay PDF.
type Pipeline struct {
	ctx              context.Context
	cancel           context.CancelFunc
	config           *types.Config
	parser           *Parser
	inspector        *Inspector
	cache            *TranslationCache
	backend          translator.Backend
	workDir          string
	currentFile      string
	status           *types.Status
	textBlocks       []TextBlock
	translatedBlocks []TranslatedBlock
	mu               sync.RWMutex
}

// PipelineConfig holds configuration options for creating a Pipeline.
// Backend is optional; when nil a chat-model backend is created from the
// Config on the first translation.
type PipelineConfig struct {
	Config    *types.Config
	WorkDir   string
	CachePath string
	Backend   translator.Backend
}

// NewPipeline creates a new Pipeline with the given configuration
func NewPipeline(cfg PipelineConfig) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath = filepath.Join(workDir, "pdf-tools-translation-cache.json")
	}

	return &Pipeline{
		ctx:       ctx,
		cancel:    cancel,
		config:    cfg.Config,
		parser:    NewParser(workDir),
		inspector: NewInspector(),
		cache:     NewTranslationCache(cachePath),
		backend:   cfg.Backend,
		workDir:   workDir,
		status:    newIdleStatus(),
	}
}

func newIdleStatus() *types.Status {
	return &types.Status{
		Phase:    types.PhaseIdle,
		Progress: 0,
	}
}

// LoadPDF validates the file and extracts its text blocks.
func (p *Pipeline) LoadPDF(filePath string) (*PDFInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Info("loading PDF file", logger.String("path", filePath))

	p.updateStatusLocked(types.PhaseLoading, 0, "Loading PDF file...")

	select {
	case <-p.ctx.Done():
		p.updateStatusLocked(types.PhaseError, 0, "operation cancelled")
		return nil, NewPDFError(ErrCancelled, "operation cancelled", p.ctx.Err())
	default:
	}

	if err := p.inspector.Validate(filePath); err != nil {
		logger.Error("PDF validation failed", err, logger.String("path", filePath))
		p.failLocked(err)
		return nil, err
	}

	pdfInfo, err := p.parser.GetPDFInfo(filePath)
	if err != nil {
		logger.Error("failed to get PDF info", err, logger.String("path", filePath))
		p.failLocked(err)
		return nil, err
	}

	if !pdfInfo.IsTextPDF {
		err := NewPDFError(ErrPDFNoText, "PDF contains no extractable text (scanned document?)", nil)
		logger.Warn(err.Message, logger.String("path", filePath))
		p.failLocked(err)
		return nil, err
	}

	p.updateStatusLocked(types.PhaseExtracting, 10, "Extracting text...")

	textBlocks, err := p.parser.ExtractText(filePath)
	if err != nil {
		logger.Error("failed to extract text", err, logger.String("path", filePath))
		p.failLocked(err)
		return nil, err
	}

	p.currentFile = filePath
	p.textBlocks = textBlocks
	p.translatedBlocks = nil

	p.updateStatusLocked(types.PhaseIdle, 100, "PDF loaded, ready to translate")
	p.status.TotalBlocks = len(textBlocks)

	logger.Info("PDF loaded",
		logger.String("path", filePath),
		logger.Int("pageCount", pdfInfo.PageCount),
		logger.Int("textBlocks", len(textBlocks)))

	return pdfInfo, nil
}

// Translate runs the translation over the loaded document and writes the
// overlay PDF. Returns the result summary on success.
func (p *Pipeline) Translate() (*TranslationResult, error) {
	p.mu.Lock()

	if p.currentFile == "" {
		p.mu.Unlock()
		return nil, NewPDFError(ErrTranslateFailed, "no PDF loaded", nil)
	}
	if p.config == nil {
		p.mu.Unlock()
		return nil, NewPDFError(ErrTranslateFailed, "translator is not configured", nil)
	}

	srcTag := p.config.SourceLanguage
	dstTag := p.config.TargetLanguage
	if _, _, err := config.ValidateLanguagePair(srcTag, dstTag); err != nil {
		p.mu.Unlock()
		return nil, err
	}

	inputFile := p.currentFile
	blocks := make([]TextBlock, len(p.textBlocks))
	copy(blocks, p.textBlocks)
	cfg := *p.config
	ctx := p.ctx

	p.updateStatusLocked(types.PhaseTranslating, 5, "Preparing translation...")
	p.status.TotalBlocks = len(blocks)
	p.status.CompletedBlocks = 0
	p.mu.Unlock()

	backend, err := p.getBackend(ctx, &cfg)
	if err != nil {
		p.fail(err)
		return nil, err
	}

	if err := p.cache.Load(); err != nil {
		logger.Warn("failed to load translation cache", logger.Err(err))
	}

	// Digit-only blocks (page numbers) never reach the backend; they keep
	// their original text via an empty translation.
	var skipped []TranslatedBlock
	var translatable []TextBlock
	for _, block := range blocks {
		if IsDigitOnly(block.Text) {
			skipped = append(skipped, TranslatedBlock{TextBlock: block})
		} else {
			translatable = append(translatable, block)
		}
	}

	cached, uncached := p.cache.FilterCached(translatable)

	p.mu.Lock()
	p.status.CachedBlocks = len(cached)
	p.status.CompletedBlocks = len(cached)
	p.mu.Unlock()

	logger.Info("translation plan",
		logger.Int("totalBlocks", len(blocks)),
		logger.Int("digitOnly", len(skipped)),
		logger.Int("cached", len(cached)),
		logger.Int("toTranslate", len(uncached)))

	batch := NewBatchTranslator(BatchTranslatorConfig{
		Backend:        backend,
		SourceLanguage: config.LanguageName(srcTag),
		TargetLanguage: config.LanguageName(dstTag),
		ContextWindow:  cfg.ContextWindow,
		Concurrency:    cfg.Concurrency,
	})

	startCompleted := len(cached)
	progressCb := func(completed, total int) {
		p.mu.Lock()
		absolute := startCompleted + completed
		p.status.CompletedBlocks = absolute
		p.updateProgressLocked(absolute, len(blocks))
		p.mu.Unlock()
	}

	freshlyTranslated, err := batch.Translate(ctx, uncached, progressCb)
	if err != nil {
		p.saveCacheQuietly()
		p.fail(err)
		return nil, err
	}

	for _, block := range freshlyTranslated {
		if block.TranslatedText != "" {
			p.cache.Set(block.Text, block.TranslatedText)
		}
	}
	p.saveCacheQuietly()

	// Reassemble in the original block order.
	byID := make(map[string]TranslatedBlock, len(blocks))
	for _, tb := range skipped {
		byID[tb.ID] = tb
	}
	for _, tb := range cached {
		byID[tb.ID] = tb
	}
	for _, tb := range freshlyTranslated {
		byID[tb.ID] = tb
	}

	ordered := make([]TranslatedBlock, 0, len(blocks))
	for _, block := range blocks {
		if tb, ok := byID[block.ID]; ok {
			ordered = append(ordered, tb)
		} else {
			ordered = append(ordered, TranslatedBlock{TextBlock: block})
		}
	}

	p.mu.Lock()
	p.translatedBlocks = ordered
	p.updateStatusLocked(types.PhaseWriting, 90, "Writing translated PDF...")
	p.mu.Unlock()

	outputPath := OutputPath(inputFile, dstTag)
	writer := NewOverlayWriter(OverlayOptions{
		LayerName:    cfg.LayerName,
		TextColor:    cfg.TextColor,
		KeepOriginal: cfg.KeepOriginal,
		FontFile:     cfg.FontFile,
	})
	if err := writer.Write(inputFile, outputPath, ordered); err != nil {
		p.fail(err)
		return nil, err
	}

	translated, failed := 0, 0
	for _, tb := range ordered {
		switch {
		case tb.TranslatedText != "":
			translated++
		case !IsDigitOnly(tb.Text):
			failed++
		}
	}

	p.mu.Lock()
	p.updateStatusLocked(types.PhaseComplete, 100, "Translation complete")
	p.mu.Unlock()

	result := &TranslationResult{
		OriginalPDFPath:   inputFile,
		TranslatedPDFPath: outputPath,
		TotalBlocks:       len(blocks),
		TranslatedBlocks:  translated,
		SkippedBlocks:     len(skipped),
		FailedBlocks:      failed,
		CachedBlocks:      len(cached),
	}

	logger.Info("PDF translation completed",
		logger.String("output", outputPath),
		logger.Int("translated", translated),
		logger.Int("failed", failed),
		logger.Int("cached", len(cached)))

	return result, nil
}

// OutputPath derives the output file name: "<input>-<target>.pdf" next to
// the input file.
func OutputPath(inputPath, targetLang string) string {
	dir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, fmt.Sprintf("%s-%s.pdf", base, targetLang))
}

func (p *Pipeline) getBackend(ctx context.Context, cfg *types.Config) (translator.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.backend != nil {
		return p.backend, nil
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, NewPDFError(ErrTranslateFailed, "API key is not configured", nil)
	}

	backend, err := translator.NewChatModelBackend(ctx, translator.BackendConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		return nil, NewPDFError(ErrTranslateFailed, "failed to create translation backend", err)
	}

	p.backend = backend
	return backend, nil
}

func (p *Pipeline) saveCacheQuietly() {
	if err := p.cache.Save(); err != nil {
		logger.Warn("failed to save translation cache", logger.Err(err))
	}
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failLocked(err)
}

func (p *Pipeline) failLocked(err error) {
	p.updateStatusLocked(types.PhaseError, 0, err.Error())
	p.status.Error = err.Error()
}

// updateProgressLocked maps completed blocks onto the 10-90% band of the
// progress bar, leaving room for loading and writing.
func (p *Pipeline) updateProgressLocked(completed, total int) {
	if total <= 0 {
		p.status.Progress = 0
		return
	}

	progress := 10 + (completed * 80 / total)
	if progress > 90 {
		progress = 90
	}
	if progress < 0 {
		progress = 0
	}

	p.status.Progress = progress
	p.status.Message = fmt.Sprintf("Translating... (%d/%d)", completed, total)
}

func (p *Pipeline) updateStatusLocked(phase types.ProcessPhase, progress int, message string) {
	if !types.IsValidPhase(phase) {
		logger.Warn("invalid phase, defaulting to error", logger.String("phase", string(phase)))
		phase = types.PhaseError
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	p.status.Phase = phase
	p.status.Progress = progress
	p.status.Message = message

	if phase != types.PhaseError {
		p.status.Error = ""
	}
}

// GetStatus returns a copy of the current processing status.
func (p *Pipeline) GetStatus() *types.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := *p.status
	return &s
}

// Cancel stops ongoing operations and saves completed translations to
// the cache so a rerun resumes where it left off.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Info("cancelling translation")

	p.cancel()

	for _, block := range p.translatedBlocks {
		if block.TranslatedText != "" && !block.FromCache {
			p.cache.Set(block.Text, block.TranslatedText)
		}
	}
	if err := p.cache.Save(); err != nil {
		logger.Warn("failed to save cache on cancel", logger.Err(err))
	}

	p.updateStatusLocked(types.PhaseIdle, 0, "Translation cancelled, progress saved")

	p.ctx, p.cancel = context.WithCancel(context.Background())

	return nil
}

// GetTranslatedPDFPath returns the output path for the loaded document.
func (p *Pipeline) GetTranslatedPDFPath() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.currentFile == "" || p.config == nil {
		return ""
	}
	return OutputPath(p.currentFile, p.config.TargetLanguage)
}

// GetCurrentFile returns the currently loaded PDF file path
func (p *Pipeline) GetCurrentFile() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentFile
}

// GetTextBlocks returns a copy of the extracted text blocks
func (p *Pipeline) GetTextBlocks() []TextBlock {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.textBlocks == nil {
		return nil
	}
	blocks := make([]TextBlock, len(p.textBlocks))
	copy(blocks, p.textBlocks)
	return blocks
}

// GetTranslatedBlocks returns a copy of the translated blocks
func (p *Pipeline) GetTranslatedBlocks() []TranslatedBlock {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.translatedBlocks == nil {
		return nil
	}
	blocks := make([]TranslatedBlock, len(p.translatedBlocks))
	copy(blocks, p.translatedBlocks)
	return blocks
}

// Reset returns the pipeline to its initial state.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Info("resetting translation pipeline")

	p.cancel()

	p.currentFile = ""
	p.textBlocks = nil
	p.translatedBlocks = nil
	p.status = newIdleStatus()

	p.ctx, p.cancel = context.WithCancel(context.Background())
}

// UpdateConfig replaces the pipeline configuration. The backend is
// recreated on the next translation.
func (p *Pipeline) UpdateConfig(cfg *types.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.config = cfg
	p.backend = nil
}

// SetWorkDir sets the working directory and moves the cache with it.
func (p *Pipeline) SetWorkDir(workDir string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.workDir = workDir
	p.parser = NewParser(workDir)
	p.cache.SetCachePath(filepath.Join(workDir, "pdf-tools-translation-cache.json"))
}

// GetWorkDir returns the current working directory
func (p *Pipeline) GetWorkDir() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.workDir
}

// Close cancels ongoing work and saves the cache.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Info("closing translation pipeline")

	p.cancel()

	if err := p.cache.Save(); err != nil {
		logger.Warn("failed to save cache on close", logger.Err(err))
	}

	return nil
}
