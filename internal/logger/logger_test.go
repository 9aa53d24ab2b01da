package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestResolveLogFilePathUsesWorkdirLogs(t *testing.T) {
	tmpDir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("get wd failed: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}

	got, err := resolveLogFilePath(Options{Filename: "  "})
	if err != nil {
		t.Fatalf("resolve default log path failed: %v", err)
	}
	realTmpDir, err := filepath.EvalSymlinks(tmpDir)
	if err != nil {
		t.Fatalf("resolve tmp dir symlink failed: %v", err)
	}
	realGot, err := filepath.EvalSymlinks(filepath.Dir(got))
	if err != nil {
		t.Fatalf("resolve got dir symlink failed: %v", err)
	}
	if realGot != filepath.Join(realTmpDir, defaultLogDirName) {
		t.Fatalf("unexpected log dir: %s", realGot)
	}
	if filepath.Base(got) != defaultLogFilename {
		t.Fatalf("unexpected log filename: %s", filepath.Base(got))
	}
}

func TestReleaseModeWritesRotatingFile(t *testing.T) {
	tmpDir := t.TempDir()
	log := New("release", Options{Dir: tmpDir, Filename: "import.log"})
	log.Sugar().Infow("glass_order_imported", "glass_order_number", "GO-1")
	_ = log.Sync()

	content, err := os.ReadFile(filepath.Join(tmpDir, "import.log"))
	if err != nil {
		t.Fatalf("read release log failed: %v", err)
	}
	if !strings.Contains(string(content), "glass_order_imported") || !strings.Contains(string(content), "GO-1") {
		t.Fatalf("expected structured log line, got=%s", string(content))
	}
}

func TestDebugModeSkipsFile(t *testing.T) {
	tmpDir := t.TempDir()
	log := New(" DEBUG ", Options{Dir: tmpDir, Filename: "debug.log"})
	log.Info("debug-log-test")
	_ = log.Sync()

	if _, err := os.Stat(filepath.Join(tmpDir, "debug.log")); !os.IsNotExist(err) {
		t.Fatalf("debug mode should not create log file")
	}
}

func TestNewWriterEmitsJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf)
	log.Sugar().Warnw("matching_queue_job_retry", "job_id", "abc", "retry_count", 2)
	_ = log.Sync()

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line failed: %v (%s)", err, buf.String())
	}
	if entry["message"] != "matching_queue_job_retry" || entry["level"] != "warn" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry["job_id"] != "abc" || entry["service"] != "glassline" {
		t.Fatalf("expected job_id field, got %+v", entry)
	}
}

func TestNormalizePositiveInt(t *testing.T) {
	if normalizePositiveInt(0, 7) != 7 || normalizePositiveInt(-1, 7) != 7 || normalizePositiveInt(3, 7) != 3 {
		t.Fatalf("normalizePositiveInt mismatch")
	}
}

func TestResolveLevel(t *testing.T) {
	cases := []struct {
		mode       string
		configured string
		want       zapcore.Level
	}{
		{mode: "release", configured: "", want: zapcore.InfoLevel},
		{mode: "debug", configured: "", want: zapcore.DebugLevel},
		{mode: "release", configured: "warn", want: zapcore.WarnLevel},
		{mode: "debug", configured: "error", want: zapcore.ErrorLevel},
		{mode: "release", configured: "verbose", want: zapcore.InfoLevel},
	}
	for _, tc := range cases {
		if got := resolveLevel(tc.mode, tc.configured); got != tc.want {
			t.Fatalf("resolveLevel(%q, %q) = %s, want %s", tc.mode, tc.configured, got, tc.want)
		}
	}
}

func TestReleaseModeHonorsConfiguredLevel(t *testing.T) {
	tmpDir := t.TempDir()
	log := New("release", Options{Dir: tmpDir, Filename: "warn.log", Level: "warn"})
	log.Sugar().Infow("glass_delivery_imported")
	log.Sugar().Warnw("glass_rematch_schedule_failed")
	_ = log.Sync()

	content, err := os.ReadFile(filepath.Join(tmpDir, "warn.log"))
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	if strings.Contains(string(content), "glass_delivery_imported") || !strings.Contains(string(content), "glass_rematch_schedule_failed") {
		t.Fatalf("unexpected log content: %s", string(content))
	}
}
