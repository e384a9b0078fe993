package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/gostream/component"
	"github.com/kbukum/gostream/errors"
	"github.com/kbukum/gostream/stream"
)

// PipelineSummary is the outcome of one pipeline run.
type PipelineSummary struct {
	Name     string
	RunID    string
	Status   string
	Chunks   int64
	Bytes    int64
	Duration time.Duration
	Error    string
}

// Summary tracks the application run and renders it as a tree.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration

	mu        sync.Mutex
	pipelines []PipelineSummary
}

// NewSummary creates a summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.mu.Lock()
	s.startupDuration = d
	s.mu.Unlock()
}

// TrackPipeline records the outcome of a finished run.
func (s *Summary) TrackPipeline(name string, res stream.Result, err error) {
	ps := PipelineSummary{
		Name:     name,
		RunID:    res.RunID,
		Status:   "completed",
		Chunks:   res.Chunks,
		Bytes:    res.Bytes,
		Duration: res.Duration,
	}
	switch {
	case errors.HasCode(err, errors.ErrCodeCancellationRequested):
		ps.Status = "cancelled"
	case err != nil:
		ps.Status = "failed"
		ps.Error = err.Error()
	}

	s.mu.Lock()
	s.pipelines = append(s.pipelines, ps)
	s.mu.Unlock()
}

// Pipelines returns the tracked runs.
func (s *Summary) Pipelines() []PipelineSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PipelineSummary(nil), s.pipelines...)
}

// Write renders the summary including live health from the registry.
func (s *Summary) Write(w io.Writer, registry *component.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(w, "\n🚀 %s %s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.pipelines) > 0 {
		fmt.Fprintf(w, "\n🔀 Pipelines\n")
		completed := 0
		for i, p := range s.pipelines {
			fmt.Fprintf(w, "   %s %s %s: %s, %d chunks, %d bytes in %s\n",
				treePrefix(i, len(s.pipelines)), pipelineIcon(p.Status), p.Name, p.Status,
				p.Chunks, p.Bytes, p.Duration.Round(time.Millisecond))
			if p.Error != "" {
				fmt.Fprintf(w, "   %s    %s\n", treeIndent(i, len(s.pipelines)), p.Error)
			}
			if p.Status == "completed" {
				completed++
			}
		}
		if total := len(s.pipelines); completed == total {
			fmt.Fprintf(w, "\n✅ All pipelines completed (%d/%d)\n", completed, total)
		} else {
			fmt.Fprintf(w, "\n⚠️  Some pipelines did not complete (%d/%d)\n", completed, total)
		}
	}

	if registry != nil {
		results := registry.HealthAll(context.Background())
		if len(results) > 0 {
			fmt.Fprintf(w, "\n🏥 Health Check\n")
			for i, h := range results {
				msg := ""
				if h.Message != "" {
					msg = " — " + h.Message
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(results)),
					healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
			}
		}
	}
	fmt.Fprintln(w)
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func treeIndent(i, n int) string {
	if i == n-1 {
		return "   "
	}
	return "│  "
}

func pipelineIcon(status string) string {
	switch status {
	case "completed":
		return "✅"
	case "cancelled":
		return "⏸️"
	default:
		return "❌"
	}
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
