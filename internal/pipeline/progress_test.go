package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleProgressCallback_Tallies(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "").WithWidth(4)

	n := "4006381333931"
	cb.OnStart(4)
	cb.OnImage(0, &Result{BarNumber: &n}, nil)
	cb.OnImage(1, &Result{BarNumber: &n, Mismatch: true}, nil)
	cb.OnImage(2, &Result{}, nil)
	cb.OnImage(3, nil, errors.New("boom"))
	cb.OnComplete()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "0/4\n"))
	assert.Contains(t, out, "[████] 4/4 decoded=2 mismatch=1 failed=1")
}

func TestLogProgressCallback_LogsIntervalsAndMismatches(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cb := NewLogProgressCallback(logger, slog.LevelInfo, 2)

	bar, glyph := "4006381333931", "4006381333932"
	cb.OnStart(3)
	cb.OnImage(0, &Result{}, nil)
	cb.OnImage(1, &Result{BarNumber: &bar, GlyphNumber: &glyph, Mismatch: true}, nil)
	cb.OnImage(2, nil, errors.New("boom"))
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "Starting batch decode")
	assert.Equal(t, 2, strings.Count(out, "Batch progress"))
	assert.Contains(t, out, "glyph_number=4006381333932")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "Batch decode completed")
}
