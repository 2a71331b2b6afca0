package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress while a batch of images is decoded.
// Calls may arrive from several goroutines.
type ProgressCallback interface {
	// OnStart is called once with the number of images.
	OnStart(total int)
	// OnImage is called after each image, successful or not.
	OnImage(index int, res *Result, err error)
	// OnComplete is called when the batch is finished.
	OnComplete()
}

// ConsoleProgressCallback draws a progress bar with a decode tally.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration

	mu         sync.Mutex
	total      int
	done       int
	decoded    int
	mismatched int
	failed     int
	startTime  time.Time
	lastUpdate time.Time
}

// NewConsoleProgressCallback creates a console reporter writing to writer,
// or stderr when writer is nil.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total = total
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnImage(_ int, res *Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done++
	switch {
	case err != nil:
		c.failed++
	case res != nil && res.Decoded():
		c.decoded++
		if res.Mismatch {
			c.mismatched++
		}
	}

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && c.done < c.total {
		return
	}
	c.lastUpdate = now
	c.draw()
}

func (c *ConsoleProgressCallback) draw() {
	if c.total == 0 {
		return
	}
	filled := c.width * c.done / c.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	_, _ = fmt.Fprintf(c.writer, "\r%s[%s] %d/%d decoded=%d mismatch=%d failed=%d",
		c.prefix, bar, c.done, c.total, c.decoded, c.mismatched, c.failed)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

// LogProgressCallback reports progress through slog.
type LogProgressCallback struct {
	logger   *slog.Logger
	level    slog.Level
	interval int

	mu        sync.Mutex
	total     int
	done      int
	startTime time.Time
}

// NewLogProgressCallback logs every interval images at level.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level, interval int) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < 1 {
		interval = 10
	}
	return &LogProgressCallback{logger: logger, level: level, interval: interval}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total, l.done, l.startTime = total, 0, time.Now()
	l.logger.Log(context.Background(), l.level, "Starting batch decode", "total", total)
}

func (l *LogProgressCallback) OnImage(index int, res *Result, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.done++
	if err != nil {
		l.logger.Log(context.Background(), slog.LevelError, "Decode failed", "index", index, "error", err)
	} else if res != nil && res.Mismatch {
		l.logger.Log(context.Background(), slog.LevelWarn, "Bar and glyph readings differ",
			"index", index, "bar_number", deref(res.BarNumber), "glyph_number", deref(res.GlyphNumber))
	}
	if l.done%l.interval == 0 || l.done == l.total {
		l.logger.Log(context.Background(), l.level, "Batch progress",
			"current", l.done, "total", l.total,
			"elapsed", time.Since(l.startTime).Round(time.Millisecond))
	}
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(context.Background(), l.level, "Batch decode completed",
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}
