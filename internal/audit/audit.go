// Package audit runs the page-performance audits over a parsed trace.
package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"

	"github.com/vincentbai/browsetrace-audit/internal/artifacts"
	"github.com/vincentbai/browsetrace-audit/internal/audit/interactive"
	"github.com/vincentbai/browsetrace-audit/internal/trace"
)

// Failure kinds for audits that complete without a numeric value.
const (
	FailureTraceBusy     = "trace_busy"
	FailureTraceTooShort = "trace_too_short"
)

// Result is one audit run over one trace.
type Result struct {
	RunID     string        `json:"run_id"`
	URL       string        `json:"url"`
	CreatedAt time.Time     `json:"created_at"`
	Timings   trace.Timings `json:"timings"`

	// FirstInteractiveMs/TS are null when the detector reported a
	// failure kind instead of a value.
	FirstInteractiveMs null.Float `json:"first_interactive_ms"`
	FirstInteractiveTS null.Float `json:"first_interactive_ts"`
	Failure            string     `json:"failure,omitempty"`
}

// Auditor resolves trace-derived artifacts at most once per trace and runs
// the first-interactive detector over them.
type Auditor struct {
	resolver *artifacts.Resolver
	log      *logrus.Logger
}

func NewAuditor(log *logrus.Logger) *Auditor {
	return &Auditor{
		resolver: artifacts.NewResolver(),
		log:      log,
	}
}

// Run audits the raw trace document. traceID keys the memoized artifacts;
// repeated runs over the same id reuse the parsed model and timings. Parse
// and derivation failures abort the audit; detector failures are recorded
// on the result as a failure kind.
func (a *Auditor) Run(traceID, url string, data []byte) (Result, error) {
	if traceID == "" {
		traceID = uuid.NewString()
	}

	model, err := artifacts.Resolve(a.resolver, traceID+"/model", func() (*trace.Model, error) {
		return trace.ParseModel(data)
	})
	if err != nil {
		return Result{}, fmt.Errorf("parsing trace: %w", err)
	}

	timings, err := artifacts.Resolve(a.resolver, traceID+"/timings", func() (trace.Timings, error) {
		return model.Timings()
	})
	if err != nil {
		return Result{}, fmt.Errorf("deriving timings: %w", err)
	}

	longTasks := model.LongTasks(interactive.LongTaskThresholdMs, timings.FirstMeaningfulPaint)

	result := Result{
		RunID:     uuid.NewString(),
		URL:       url,
		CreatedAt: time.Now().UTC(),
		Timings:   timings,
	}

	fi, err := interactive.Compute(timings, longTasks)
	switch {
	case errors.Is(err, interactive.ErrTraceBusy):
		result.Failure = FailureTraceBusy
	case errors.Is(err, interactive.ErrTraceTooShort):
		result.Failure = FailureTraceTooShort
	case err != nil:
		return Result{}, fmt.Errorf("computing first interactive: %w", err)
	default:
		result.FirstInteractiveMs = null.FloatFrom(fi.TimeInMs)
		result.FirstInteractiveTS = null.FloatFrom(fi.Timestamp)
	}

	a.log.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"url":     url,
		"tasks":   len(longTasks),
		"failure": result.Failure,
	}).Debug("audit complete")

	return result, nil
}
