package pdf

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pdf-tools/internal/logger"
	"pdf-tools/internal/translator"
)

// BatchSeparator delimits text blocks inside one backend request.
const BatchSeparator = "\n---BLOCK_SEPARATOR---\n"

// DefaultContextWindow is the default batch size budget in characters
const DefaultContextWindow = 4000

// DefaultConcurrency is the default number of concurrent batch translations
const DefaultConcurrency = 3

// DefaultMaxRetries is the default maximum number of retry attempts for API errors
const DefaultMaxRetries = 3

// BaseRetryDelay is the base delay between retries (exponential backoff)
const BaseRetryDelay = 2 * time.Second

// maxRetryDelay caps the exponential backoff.
const maxRetryDelay = 30 * time.Second

// ProgressCallback reports translation progress in completed blocks.
type ProgressCallback func(completed, total int)

// BatchTranslator groups text blocks into batches sized to the context
// window and translates them through a Backend.
type BatchTranslator struct {
	backend       translator.Backend
	sourceLang    string // English display name, e.g. "English"
	targetLang    string
	contextWindow int
	concurrency   int
	maxRetries    int
}

// BatchTranslatorConfig holds configuration options for creating a BatchTranslator
type BatchTranslatorConfig struct {
	Backend        translator.Backend
	SourceLanguage string
	TargetLanguage string
	ContextWindow  int
	Concurrency    int
	MaxRetries     int
}

// NewBatchTranslator creates a new BatchTranslator with the given configuration
func NewBatchTranslator(cfg BatchTranslatorConfig) *BatchTranslator {
	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &BatchTranslator{
		backend:       cfg.Backend,
		sourceLang:    cfg.SourceLanguage,
		targetLang:    cfg.TargetLanguage,
		contextWindow: contextWindow,
		concurrency:   concurrency,
		maxRetries:    maxRetries,
	}
}

// MergeBatches groups blocks into batches whose total character count
// stays below the context window. A single oversize block gets a batch of
// its own. Block order and count are preserved across all batches.
func (b *BatchTranslator) MergeBatches(blocks []TextBlock) [][]TextBlock {
	if len(blocks) == 0 {
		return nil
	}

	var batches [][]TextBlock
	var currentBatch []TextBlock
	currentBatchSize := 0

	separatorSize := len(BatchSeparator)

	for _, block := range blocks {
		blockSize := len(block.Text)

		if blockSize >= b.contextWindow {
			if len(currentBatch) > 0 {
				batches = append(batches, currentBatch)
				currentBatch = nil
				currentBatchSize = 0
			}
			batches = append(batches, []TextBlock{block})
			continue
		}

		additionalSize := blockSize
		if len(currentBatch) > 0 {
			additionalSize += separatorSize
		}

		if currentBatchSize+additionalSize > b.contextWindow {
			if len(currentBatch) > 0 {
				batches = append(batches, currentBatch)
			}
			currentBatch = []TextBlock{block}
			currentBatchSize = blockSize
		} else {
			currentBatch = append(currentBatch, block)
			currentBatchSize += additionalSize
		}
	}

	if len(currentBatch) > 0 {
		batches = append(batches, currentBatch)
	}

	return batches
}

// GetBatchText joins a batch's block texts with the separator.
func (b *BatchTranslator) GetBatchText(batch []TextBlock) string {
	if len(batch) == 0 {
		return ""
	}

	result := batch[0].Text
	for i := 1; i < len(batch); i++ {
		result += BatchSeparator + batch[i].Text
	}
	return result
}

// GetContextWindow returns the configured context window size
func (b *BatchTranslator) GetContextWindow() int {
	return b.contextWindow
}

// GetConcurrency returns the configured concurrency level
func (b *BatchTranslator) GetConcurrency() int {
	return b.concurrency
}

// Translate translates the blocks, batching by context window and running
// up to the configured number of batches concurrently. Failed batches
// retry with backoff, then degrade to per-block translation; a block that
// still fails gets an empty translation and keeps its original text.
// The returned slice has the same blocks in the same order as the input.
func (b *BatchTranslator) Translate(ctx context.Context, blocks []TextBlock, progress ProgressCallback) ([]TranslatedBlock, error) {
	if len(blocks) == 0 {
		return nil, nil
	}

	batches := b.MergeBatches(blocks)
	if len(batches) == 0 {
		return nil, nil
	}

	logger.Info("starting batch translation",
		logger.Int("totalBlocks", len(blocks)),
		logger.Int("batchCount", len(batches)),
		logger.Int("contextWindow", b.contextWindow),
		logger.Int("concurrency", b.concurrency))

	totalBlocks := len(blocks)
	completedBlocks := 0

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	batchResults := make([][]TranslatedBlock, len(batches))
	batchErrs := make([]error, len(batches))

	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batchBlocks []TextBlock) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				batchErrs[idx] = NewPDFError(ErrCancelled, "translation cancelled", ctx.Err())
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			translated, err := b.translateBatchWithRetry(ctx, idx, batchBlocks)

			mu.Lock()
			batchResults[idx] = translated
			batchErrs[idx] = err
			if err == nil {
				completedBlocks += len(batchBlocks)
				if progress != nil {
					progress(completedBlocks, totalBlocks)
				}
			}
			mu.Unlock()
		}(i, batch)
	}

	wg.Wait()

	results := make([]TranslatedBlock, 0, len(blocks))
	for i, err := range batchErrs {
		if err != nil {
			return nil, err
		}
		results = append(results, batchResults[i]...)
	}

	failed := 0
	for _, r := range results {
		if r.TranslatedText == "" {
			failed++
		}
	}
	logger.Info("batch translation completed",
		logger.Int("totalBlocks", len(blocks)),
		logger.Int("failedBlocks", failed))

	return results, nil
}

// translateBatchWithRetry runs one batch through retries and, as a last
// resort, block-by-block degradation.
func (b *BatchTranslator) translateBatchWithRetry(ctx context.Context, batchIdx int, batch []TextBlock) ([]TranslatedBlock, error) {
	var lastErr error

	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, NewPDFError(ErrCancelled, "translation cancelled", err)
		}

		translated, err := b.translateSingleBatch(ctx, batch)
		if err == nil {
			return translated, nil
		}

		lastErr = err
		logger.Warn("batch translation attempt failed",
			logger.Int("batchIndex", batchIdx+1),
			logger.Int("attempt", attempt),
			logger.Err(err))

		if !isRetryableError(err) {
			break
		}

		if attempt < b.maxRetries {
			delay := calculateBackoffDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, NewPDFError(ErrCancelled, "translation cancelled", ctx.Err())
			}
		}
	}

	logger.Warn("batch translation failed, falling back to per-block translation",
		logger.Int("batchIndex", batchIdx+1),
		logger.Int("blocksInBatch", len(batch)))

	return b.translateBlocksIndividually(ctx, batch, lastErr)
}

// translateSingleBatch translates one batch and maps the output back onto
// the source blocks by separator position.
func (b *BatchTranslator) translateSingleBatch(ctx context.Context, batch []TextBlock) ([]TranslatedBlock, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	batchText := b.GetBatchText(batch)

	output, err := b.backend.Complete(ctx, b.buildSystemPrompt(), b.buildUserPrompt(batchText))
	if err != nil {
		return nil, NewPDFError(ErrAPIFailed, "translation request failed", err)
	}

	parts := splitTranslatedText(output, len(batch))

	results := make([]TranslatedBlock, len(batch))
	for i, block := range batch {
		results[i] = TranslatedBlock{
			TextBlock:      block,
			TranslatedText: parts[i],
			FromCache:      false,
		}
	}
	return results, nil
}

// translateBlocksIndividually is the degradation path when a whole batch
// keeps failing. Blocks that still fail keep an empty translation; only
// when every block fails does the batch error propagate.
func (b *BatchTranslator) translateBlocksIndividually(ctx context.Context, blocks []TextBlock, batchErr error) ([]TranslatedBlock, error) {
	if len(blocks) == 0 {
		return nil, nil
	}

	// A one-block batch already failed as a single request; retrying the
	// identical request here would not help.
	if len(blocks) == 1 {
		logger.Warn("single-block batch failed, keeping original text",
			logger.String("blockID", blocks[0].ID), logger.Err(batchErr))
		return []TranslatedBlock{{TextBlock: blocks[0]}}, nil
	}

	results := make([]TranslatedBlock, 0, len(blocks))
	failedCount := 0

	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, NewPDFError(ErrCancelled, "translation cancelled", err)
		}

		translated, err := b.translateSingleBlockWithRetry(ctx, block)
		if err != nil {
			logger.Warn("block translation failed, keeping original text",
				logger.String("blockID", block.ID), logger.Err(err))
			failedCount++
			results = append(results, TranslatedBlock{TextBlock: block})
			continue
		}
		results = append(results, translated)
	}

	if failedCount == len(blocks) {
		return nil, NewPDFErrorWithDetails(ErrTranslateFailed,
			"all blocks in batch failed to translate",
			fmt.Sprintf("%d blocks", len(blocks)), batchErr)
	}

	if failedCount > 0 {
		logger.Warn("some blocks failed to translate",
			logger.Int("failedCount", failedCount),
			logger.Int("totalCount", len(blocks)))
	}

	return results, nil
}

func (b *BatchTranslator) translateSingleBlockWithRetry(ctx context.Context, block TextBlock) (TranslatedBlock, error) {
	var lastErr error

	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		translated, err := b.translateSingleBatch(ctx, []TextBlock{block})
		if err == nil && len(translated) > 0 {
			return translated[0], nil
		}
		lastErr = err

		if !isRetryableError(err) {
			break
		}
		if attempt < b.maxRetries {
			select {
			case <-time.After(calculateBackoffDelay(attempt)):
			case <-ctx.Done():
				return TranslatedBlock{}, NewPDFError(ErrCancelled, "translation cancelled", ctx.Err())
			}
		}
	}

	return TranslatedBlock{}, lastErr
}

// splitTranslatedText splits a batch response by separator and normalizes
// the part count: missing parts pad with empty strings, excess parts
// merge into the last slot (the separator can leak into translated text).
func splitTranslatedText(translatedText string, expectedCount int) []string {
	parts := strings.Split(translatedText, BatchSeparator)

	if len(parts) == expectedCount {
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}

	if len(parts) < expectedCount {
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		for len(parts) < expectedCount {
			parts = append(parts, "")
		}
		return parts
	}

	result := make([]string, expectedCount)
	for i := 0; i < expectedCount-1; i++ {
		result[i] = strings.TrimSpace(parts[i])
	}
	remaining := parts[expectedCount-1:]
	result[expectedCount-1] = strings.TrimSpace(strings.Join(remaining, BatchSeparator))

	return result
}

// buildSystemPrompt creates the system prompt for document translation.
func (b *BatchTranslator) buildSystemPrompt() string {
	return fmt.Sprintf(`You are a professional translator specializing in academic and technical documents.
Your task is to translate text extracted from PDF documents from %[1]s to %[2]s.

CRITICAL RULES:
1. Translate the text content from %[1]s to %[2]s accurately.
2. Preserve any mathematical formulas, symbols, or special characters exactly as they are.
3. Use punctuation conventions appropriate for %[2]s.
4. Do not add any explanations or notes - output only the translated text.
5. IMPORTANT: The input may contain multiple text blocks separated by "%[3]s".
6. You MUST preserve these separators in your output exactly as they appear.
7. Each block should be translated independently but the separators must remain intact.
8. Do not merge blocks or remove separators.`, b.sourceLang, b.targetLang, BatchSeparator)
}

// buildUserPrompt creates the user prompt with the content to translate.
func (b *BatchTranslator) buildUserPrompt(batchText string) string {
	return fmt.Sprintf(`Translate the following text from %s to %s.
If there are multiple blocks separated by "%s", translate each block separately and keep the separators in your output.

%s`, b.sourceLang, b.targetLang, BatchSeparator, batchText)
}

// isRetryableError decides whether an error is worth retrying. Rate
// limits, server errors and network failures retry; authentication and
// request errors do not. Cancellation never retries.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if pdfErr, ok := err.(*PDFError); ok {
		if pdfErr.Code == ErrCancelled {
			return false
		}
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "context canceled") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid api key") ||
		strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "status code: 400") ||
		strings.Contains(errStr, "status code: 401") {
		return false
	}

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "status code: 429") ||
		strings.Contains(errStr, "status code: 5") ||
		strings.Contains(errStr, "server error") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "reset by peer") {
		return true
	}

	// API failures default to retryable, they are usually transient.
	if pdfErr, ok := err.(*PDFError); ok && pdfErr.Code == ErrAPIFailed {
		return true
	}

	return false
}

// calculateBackoffDelay doubles the delay with each attempt: 2s, 4s, 8s,
// capped at maxRetryDelay.
func calculateBackoffDelay(attempt int) time.Duration {
	delay := BaseRetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
