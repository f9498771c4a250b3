package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, level Level) (*FileLogger, string) {
	t.Helper()

	logPath := filepath.Join(t.TempDir(), "test.log")
	l, err := NewFileLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: 1024 * 1024,
		MaxBackups:  2,
		Level:       level,
	})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, logPath
}

// TestFileLoggerWritesEntries verifies level, message, error and fields
// end up in the log file.
func TestFileLoggerWritesEntries(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug)

	l.Info("processing started", String("file", "doc.pdf"), Int("pages", 4))
	l.Error("processing failed", errors.New("boom"), Bool("retried", true))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"[INFO]", "processing started", "file=doc.pdf", "pages=4",
		"[ERROR]", "processing failed", `error="boom"`, "retried=true",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log output missing %q:\n%s", want, content)
		}
	}
}

// TestFileLoggerLevelFilter verifies messages below the minimum level are
// dropped.
func TestFileLoggerLevelFilter(t *testing.T) {
	l, logPath := newTestLogger(t, LevelWarn)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Errorf("filtered levels leaked into output:\n%s", content)
	}
	if !strings.Contains(content, "warn message") {
		t.Errorf("warn message missing from output:\n%s", content)
	}

	// Lowering the level lets messages through again.
	l.SetLevel(LevelDebug)
	l.Debug("now visible")

	data, _ = os.ReadFile(logPath)
	if !strings.Contains(string(data), "now visible") {
		t.Error("message missing after SetLevel")
	}
}

// TestFileLoggerRotation verifies the file rotates when the size limit is
// exceeded.
func TestFileLoggerRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "rotate.log")
	l, err := NewFileLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: 256,
		MaxBackups:  2,
		Level:       LevelInfo,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i := 0; i < 20; i++ {
		l.Info("a reasonably long log line to push the file over the rotation threshold")
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected rotated backup %s.1: %v", logPath, err)
	}
}

// TestLevelString verifies the level names.
func TestLevelString(t *testing.T) {
	testCases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tc := range testCases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

// TestGlobalLoggerFallback verifies the package functions are safe without
// initialization.
func TestGlobalLoggerFallback(t *testing.T) {
	SetGlobalLogger(nil)

	// Must not panic.
	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error", errors.New("x"))

	if err := Close(); err != nil {
		t.Errorf("Close without init failed: %v", err)
	}
}

// TestErrField verifies nil errors produce a nil-valued field.
func TestErrField(t *testing.T) {
	f := Err(nil)
	if f.Key != "error" || f.Value != nil {
		t.Errorf("Err(nil) = %+v", f)
	}

	f = Err(errors.New("broken"))
	if f.Value != "broken" {
		t.Errorf("Err value = %v, want broken", f.Value)
	}
}
