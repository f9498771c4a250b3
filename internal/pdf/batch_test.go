package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// stubBackend is a Backend that translates through a fixed dictionary.
// Unknown blocks echo back unchanged. failWhen lets tests inject errors
// based on the request content.
type stubBackend struct {
	dict     map[string]string
	failWhen func(userPrompt string) error
	calls    int
}

func (s *stubBackend) Complete(_ context.Context, _, userPrompt string) (string, error) {
	s.calls++
	if s.failWhen != nil {
		if err := s.failWhen(userPrompt); err != nil {
			return "", err
		}
	}

	// The batch text follows the first blank line of the prompt.
	idx := strings.Index(userPrompt, "\n\n")
	if idx < 0 {
		return "", fmt.Errorf("malformed prompt")
	}
	batchText := userPrompt[idx+2:]

	parts := strings.Split(batchText, BatchSeparator)
	for i, p := range parts {
		if translated, ok := s.dict[p]; ok {
			parts[i] = translated
		}
	}
	return strings.Join(parts, BatchSeparator), nil
}

func newTestTranslator(backend *stubBackend, contextWindow int) *BatchTranslator {
	return NewBatchTranslator(BatchTranslatorConfig{
		Backend:        backend,
		SourceLanguage: "English",
		TargetLanguage: "French",
		ContextWindow:  contextWindow,
		Concurrency:    2,
	})
}

// TestMergeBatchesPreservesOrderAndCount verifies no block is lost or
// reordered by batching.
func TestMergeBatchesPreservesOrderAndCount(t *testing.T) {
	b := newTestTranslator(&stubBackend{}, 50)

	blocks := make([]TextBlock, 10)
	for i := range blocks {
		blocks[i] = TextBlock{
			ID:   fmt.Sprintf("block_%d", i),
			Text: fmt.Sprintf("text number %d", i),
		}
	}

	batches := b.MergeBatches(blocks)

	var flattened []TextBlock
	for _, batch := range batches {
		flattened = append(flattened, batch...)
	}

	if len(flattened) != len(blocks) {
		t.Fatalf("batching changed block count: got %d, want %d", len(flattened), len(blocks))
	}
	for i := range blocks {
		if flattened[i].ID != blocks[i].ID {
			t.Errorf("block %d out of order: got %s, want %s", i, flattened[i].ID, blocks[i].ID)
		}
	}
}

// TestMergeBatchesRespectsContextWindow verifies every multi-block batch
// stays within the window including separators.
func TestMergeBatchesRespectsContextWindow(t *testing.T) {
	contextWindow := 100
	b := newTestTranslator(&stubBackend{}, contextWindow)

	blocks := []TextBlock{
		{ID: "a", Text: strings.Repeat("a", 40)},
		{ID: "b", Text: strings.Repeat("b", 40)},
		{ID: "c", Text: strings.Repeat("c", 40)},
		{ID: "d", Text: strings.Repeat("d", 10)},
	}

	batches := b.MergeBatches(blocks)

	for i, batch := range batches {
		size := len(b.GetBatchText(batch))
		if len(batch) > 1 && size > contextWindow {
			t.Errorf("batch %d exceeds context window: %d > %d", i, size, contextWindow)
		}
	}
}

// TestMergeBatchesOversizeBlock verifies a block larger than the window
// gets a batch of its own instead of being dropped or split.
func TestMergeBatchesOversizeBlock(t *testing.T) {
	b := newTestTranslator(&stubBackend{}, 50)

	blocks := []TextBlock{
		{ID: "small_1", Text: "short"},
		{ID: "huge", Text: strings.Repeat("x", 200)},
		{ID: "small_2", Text: "also short"},
	}

	batches := b.MergeBatches(blocks)

	found := false
	for _, batch := range batches {
		for _, block := range batch {
			if block.ID == "huge" {
				found = true
				if len(batch) != 1 {
					t.Errorf("oversize block shares a batch with %d other blocks", len(batch)-1)
				}
			}
		}
	}
	if !found {
		t.Error("oversize block missing from batches")
	}
}

// TestMergeBatchesEmpty verifies empty input yields no batches.
func TestMergeBatchesEmpty(t *testing.T) {
	b := newTestTranslator(&stubBackend{}, 50)
	if batches := b.MergeBatches(nil); len(batches) != 0 {
		t.Errorf("expected no batches, got %d", len(batches))
	}
}

// TestSplitTranslatedText verifies the separator split handles exact,
// short and long responses.
func TestSplitTranslatedText(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCount int
		want          []string
	}{
		{
			name:          "exact match",
			input:         "one" + BatchSeparator + "two" + BatchSeparator + "three",
			expectedCount: 3,
			want:          []string{"one", "two", "three"},
		},
		{
			name:          "missing parts pad with empty",
			input:         "one" + BatchSeparator + "two",
			expectedCount: 4,
			want:          []string{"one", "two", "", ""},
		},
		{
			name:          "excess parts merge into last",
			input:         "one" + BatchSeparator + "two" + BatchSeparator + "three",
			expectedCount: 2,
			want:          []string{"one", "two" + BatchSeparator + "three"},
		},
		{
			name:          "whitespace trimmed",
			input:         "  one  " + BatchSeparator + "\ttwo\n",
			expectedCount: 2,
			want:          []string{"one", "two"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitTranslatedText(tc.input, tc.expectedCount)
			if len(got) != tc.expectedCount {
				t.Fatalf("got %d parts, want %d", len(got), tc.expectedCount)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("part %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

// TestTranslateRoundTrip verifies blocks flow through the backend and come
// back translated, in the original order.
func TestTranslateRoundTrip(t *testing.T) {
	backend := &stubBackend{dict: map[string]string{
		"Hello":   "Bonjour",
		"World":   "Monde",
		"Goodbye": "Au revoir",
	}}
	b := newTestTranslator(backend, 4000)

	blocks := []TextBlock{
		{ID: "block_0", Page: 1, Text: "Hello"},
		{ID: "block_1", Page: 1, Text: "World"},
		{ID: "block_2", Page: 2, Text: "Goodbye"},
	}

	results, err := b.Translate(context.Background(), blocks, nil)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(results) != len(blocks) {
		t.Fatalf("got %d results, want %d", len(results), len(blocks))
	}

	want := []string{"Bonjour", "Monde", "Au revoir"}
	for i, r := range results {
		if r.ID != blocks[i].ID {
			t.Errorf("result %d out of order: got %s, want %s", i, r.ID, blocks[i].ID)
		}
		if r.TranslatedText != want[i] {
			t.Errorf("result %d = %q, want %q", i, r.TranslatedText, want[i])
		}
		if r.FromCache {
			t.Errorf("result %d wrongly marked FromCache", i)
		}
	}
}

// TestTranslateProgressReporting verifies the progress callback eventually
// reports all blocks complete.
func TestTranslateProgressReporting(t *testing.T) {
	backend := &stubBackend{dict: map[string]string{}}
	b := newTestTranslator(backend, 30)

	blocks := []TextBlock{
		{ID: "a", Text: strings.Repeat("a", 20)},
		{ID: "b", Text: strings.Repeat("b", 20)},
		{ID: "c", Text: strings.Repeat("c", 20)},
	}

	var lastCompleted, lastTotal int
	_, err := b.Translate(context.Background(), blocks, func(completed, total int) {
		lastCompleted = completed
		lastTotal = total
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if lastCompleted != len(blocks) || lastTotal != len(blocks) {
		t.Errorf("final progress = %d/%d, want %d/%d", lastCompleted, lastTotal, len(blocks), len(blocks))
	}
}

// TestTranslateCancellation verifies a cancelled context aborts with a
// cancellation error.
func TestTranslateCancellation(t *testing.T) {
	backend := &stubBackend{}
	b := newTestTranslator(backend, 4000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Translate(ctx, []TextBlock{{ID: "a", Text: "Hello"}}, nil)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	pdfErr, ok := err.(*PDFError)
	if !ok || pdfErr.Code != ErrCancelled {
		t.Errorf("expected code %s, got %v", ErrCancelled, err)
	}
}

// TestTranslateBatchFailureDegradesToBlocks verifies a failing multi-block
// batch falls back to per-block requests.
func TestTranslateBatchFailureDegradesToBlocks(t *testing.T) {
	backend := &stubBackend{
		dict: map[string]string{
			"Hello": "Bonjour",
			"World": "Monde",
		},
		// Multi-block requests fail with a non-retryable error, single
		// blocks succeed.
		failWhen: func(userPrompt string) error {
			idx := strings.Index(userPrompt, "\n\n")
			if strings.Contains(userPrompt[idx+2:], BatchSeparator) {
				return errors.New("status code: 400 request too complex")
			}
			return nil
		},
	}
	b := newTestTranslator(backend, 4000)

	blocks := []TextBlock{
		{ID: "block_0", Text: "Hello"},
		{ID: "block_1", Text: "World"},
	}

	results, err := b.Translate(context.Background(), blocks, nil)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].TranslatedText != "Bonjour" || results[1].TranslatedText != "Monde" {
		t.Errorf("degraded translation wrong: %q, %q", results[0].TranslatedText, results[1].TranslatedText)
	}
}

// TestTranslateSingleBlockFailureKeepsOriginal verifies a block that
// cannot be translated keeps its original text via an empty translation.
func TestTranslateSingleBlockFailureKeepsOriginal(t *testing.T) {
	backend := &stubBackend{
		failWhen: func(string) error {
			return errors.New("status code: 401 unauthorized")
		},
	}
	b := newTestTranslator(backend, 4000)

	results, err := b.Translate(context.Background(), []TextBlock{{ID: "a", Text: "Hello"}}, nil)
	if err != nil {
		t.Fatalf("single-block failure should degrade, not error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].TranslatedText != "" {
		t.Errorf("failed block should keep empty translation, got %q", results[0].TranslatedText)
	}
	if results[0].Text != "Hello" {
		t.Errorf("failed block lost original text: %q", results[0].Text)
	}
}

// TestIsRetryableError verifies the retry classification.
func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"cancelled", NewPDFError(ErrCancelled, "cancelled", nil), false},
		{"context canceled", errors.New("context canceled"), false},
		{"unauthorized", errors.New("status code: 401 unauthorized"), false},
		{"bad request", errors.New("status code: 400"), false},
		{"invalid key", errors.New("invalid api key"), false},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"429", errors.New("status code: 429"), true},
		{"server error", errors.New("status code: 500 internal server error"), true},
		{"timeout", errors.New("request timeout"), true},
		{"deadline", errors.New("context deadline exceeded"), true},
		{"connection refused", errors.New("connection refused"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"api failed default", NewPDFError(ErrAPIFailed, "request failed", errors.New("mystery")), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryableError(tc.err); got != tc.retryable {
				t.Errorf("isRetryableError(%v) = %v, want %v", tc.err, got, tc.retryable)
			}
		})
	}
}

// TestCalculateBackoffDelay verifies the doubling schedule and cap.
func TestCalculateBackoffDelay(t *testing.T) {
	testCases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tc := range testCases {
		if got := calculateBackoffDelay(tc.attempt); got != tc.want {
			t.Errorf("calculateBackoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
