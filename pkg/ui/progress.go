package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker counts items as a crawl or processing run advances.
// Limit is the request budget; zero means the bar is not drawn.
type StatusTracker struct {
	Label     string
	Limit     int
	Count     int
	StartTime time.Time

	mu  sync.Mutex
	out io.Writer
}

// NewStatusTracker creates a tracker writing to stdout
func NewStatusTracker(label string, limit int) *StatusTracker {
	return &StatusTracker{
		Label:     label,
		Limit:     limit,
		StartTime: time.Now(),
		out:       os.Stdout,
	}
}

// SetOutput redirects progress lines.
func (st *StatusTracker) SetOutput(w io.Writer) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.out = w
}

// Increment records one finished item and prints a status line for it.
func (st *StatusTracker) Increment(id, detail string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.Count++
	line := fmt.Sprintf("%s %s %s", Green("["+st.Label+"]"), st.progressLocked(), id)
	if detail != "" {
		line += " " + Dim("-> "+detail)
	}
	fmt.Fprintln(st.out, line)
}

// Progress returns the bar (or plain counter) for the current count.
func (st *StatusTracker) Progress() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.progressLocked()
}

func (st *StatusTracker) progressLocked() string {
	if st.Limit <= 0 {
		return fmt.Sprintf("#%d", st.Count)
	}

	const width = 20
	filled := st.Count * width / st.Limit
	if filled > width {
		filled = width
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, st.Count, st.Limit)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetRate returns the average rate in items per minute
func (st *StatusTracker) GetRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return float64(st.Count) / elapsed
}

// Summary is the closing line of a run.
func (st *StatusTracker) Summary() string {
	st.mu.Lock()
	count := st.Count
	st.mu.Unlock()
	return fmt.Sprintf("%d item(s) in %s", count, st.GetElapsedTime().Round(time.Second))
}
