package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpProgressCallback(t *testing.T) {
	var cb ProgressCallback = NoOpProgressCallback{}
	cb.OnStart(10)
	cb.OnProgress(5, 10)
	cb.OnError(3, assert.AnError)
	cb.OnComplete()
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "labels: ").WithUpdateInterval(0)

	cb.OnStart(10)
	assert.Contains(t, buf.String(), "labels: 0/10 (0.0%)")

	buf.Reset()
	cb.OnProgress(5, 10)
	assert.Contains(t, buf.String(), "5/10 (50.0%)")

	buf.Reset()
	cb.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "labels: Error at item 3")

	buf.Reset()
	cb.OnProgress(6, 10)
	assert.Contains(t, buf.String(), "failed=1")

	buf.Reset()
	cb.OnComplete()
	assert.Contains(t, buf.String(), "labels: Completed in")
}

func TestConsoleProgressCallback_Throttles(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "").WithUpdateInterval(time.Hour)
	cb.OnStart(10)

	buf.Reset()
	cb.OnProgress(1, 10)
	cb.OnProgress(2, 10)
	assert.Equal(t, 1, strings.Count(buf.String(), "/10"))

	// The final update always prints.
	cb.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "10/10")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cb := NewLogProgressCallback(logger, slog.LevelInfo).WithInterval(5)

	cb.OnStart(12)
	for i := 1; i <= 12; i++ {
		cb.OnProgress(i, 12)
	}
	cb.OnError(7, assert.AnError)
	cb.OnComplete()

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, `"msg":"batch progress"`), "items 5, 10 and 12")
	assert.Contains(t, out, `"msg":"batch started"`)
	assert.Contains(t, out, `"msg":"batch item failed"`)
	assert.Contains(t, out, `"msg":"batch completed"`)
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	cb := MultiProgressCallback{a, b}
	cb.OnStart(2)
	cb.OnProgress(1, 2)
	cb.OnError(0, assert.AnError)
	cb.OnComplete()

	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, 2, r.total)
		assert.Equal(t, []int{1}, r.progress)
		assert.Equal(t, []int{0}, r.errors)
		assert.True(t, r.completed)
	}
}
