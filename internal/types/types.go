// Package types defines core data types and enums shared by the pdf-tools
// applications.
package types

// Config holds the application configuration for both tools.
type Config struct {
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url"` // base URL of an OpenAI compatible API
	OpenAIModel   string `json:"openai_model"`

	// Translation-layer builder settings
	SourceLanguage string `json:"source_language"` // BCP 47 tag, e.g. "en"
	TargetLanguage string `json:"target_language"` // BCP 47 tag, e.g. "fr"
	LayerName      string `json:"layer_name"`      // OCG name for translated content
	TextColor      string `json:"text_color"`      // darkred, black, blue, darkgreen, purple
	KeepOriginal   bool   `json:"keep_original"`   // keep source rendition always visible
	FontFile       string `json:"font_file"`       // optional UTF-8 TTF for non-Latin targets

	ContextWindow int    `json:"context_window"` // characters per translation batch
	Concurrency   int    `json:"concurrency"`    // concurrent in-flight batches
	WorkDirectory string `json:"work_directory"`
	LastInput     string `json:"last_input"`
}

// ProcessPhase enumerates the stages of the translation pipeline.
type ProcessPhase string

const (
	PhaseIdle        ProcessPhase = "idle"
	PhaseLoading     ProcessPhase = "loading"
	PhaseExtracting  ProcessPhase = "extracting"
	PhaseTranslating ProcessPhase = "translating"
	PhaseWriting     ProcessPhase = "writing"
	PhaseComplete    ProcessPhase = "complete"
	PhaseError       ProcessPhase = "error"
)

// Status describes the current processing state, suitable for the frontend.
type Status struct {
	Phase           ProcessPhase `json:"phase"`
	Progress        int          `json:"progress"` // 0-100
	Message         string       `json:"message"`
	TotalBlocks     int          `json:"total_blocks"`
	CompletedBlocks int          `json:"completed_blocks"`
	CachedBlocks    int          `json:"cached_blocks"`
	Error           string       `json:"error,omitempty"`
}

// IsValidPhase checks if the given phase is a valid ProcessPhase
func IsValidPhase(phase ProcessPhase) bool {
	switch phase {
	case PhaseIdle, PhaseLoading, PhaseExtracting,
		PhaseTranslating, PhaseWriting, PhaseComplete, PhaseError:
		return true
	default:
		return false
	}
}

// ErrorCode enumerates application-level error categories.
type ErrorCode string

const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrOutput       ErrorCode = "OUTPUT_ERROR"
	ErrTranslation  ErrorCode = "TRANSLATION_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError is the application error type carrying a code and optional cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
