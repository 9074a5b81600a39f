// Package interactive computes the consistently-interactive timing: the
// earliest instant after first meaningful paint from which the main thread
// stays acceptably quiet. Quiet is defined by a time-decaying required
// window size, with isolated short bursts of work ("lonely tasks") forgiven.
package interactive

import (
	"errors"
	"math"

	"github.com/vincentbai/browsetrace-audit/internal/trace"
)

var (
	// ErrTraceBusy means no quiet window could be confirmed before the
	// trace ends. A valid negative result, not a malformed trace.
	ErrTraceBusy = errors.New("the main thread was busy for the entire observed duration")

	// ErrTraceTooShort means the trace ends less than the minimum margin
	// after first meaningful paint, so no search is possible at all.
	ErrTraceTooShort = errors.New("trace ended too soon after first meaningful paint")
)

const (
	// LongTaskThresholdMs is the minimum duration for a main-thread task
	// to count as a long task.
	LongTaskThresholdMs = 50

	// maxQuietWindowSizeMs is the required window size at FMP itself, and
	// the minimum trace margin after FMP for the search to be attempted.
	maxQuietWindowSizeMs = 5000

	// requiredFMPDistanceMs: tasks within this distance of FMP are never
	// treated as lonely.
	requiredFMPDistanceMs = 5000

	// lonelyEnvelopeMs bounds the span of a lonely cluster past its seed
	// task's start.
	lonelyEnvelopeMs = 250

	// neighborPaddingMs is the silence a lonely cluster needs on both
	// sides to count as isolated.
	neighborPaddingMs = 1000
)

// Result is the computed first-interactive value. TimeInMs is relative to
// navigation start; Timestamp is absolute, in microseconds, matching the
// trace's own unit.
type Result struct {
	TimeInMs  float64 `json:"timeInMs"`
	Timestamp float64 `json:"timestamp"`
}

// RequiredWindowSize returns how long (ms) the main thread must stay quiet
// for a window opening elapsedMs after FMP to qualify. Decays exponentially
// from 5000 ms at FMP toward 1000 ms.
func RequiredWindowSize(elapsedMs float64) float64 {
	t := elapsedMs / 1000
	return (4*math.Exp(-0.045*t) + 1) * 1000
}

// lastLonelyIndex reports whether tasks[i] seeds a lonely envelope and, if
// so, the index of the last task the envelope absorbs. The forward scan
// deliberately runs to the end of the envelope window even after an
// invalidation: the last state written wins.
func lastLonelyIndex(tasks []trace.LongTask, i int, fmp, traceEnd float64) (bool, int) {
	task := tasks[i]
	if task.Start < fmp+requiredFMPDistanceMs {
		return false, -1
	}
	if traceEnd-task.End < neighborPaddingMs {
		return false, -1
	}
	if i > 0 && task.Start-tasks[i-1].End < neighborPaddingMs {
		return false, -1
	}
	if task.Duration() > lonelyEnvelopeMs {
		return false, -1
	}

	envelopeEnd := task.Start + lonelyEnvelopeMs
	windowEnd := envelopeEnd + neighborPaddingMs
	last := i
	for j := i + 1; j < len(tasks) && tasks[j].Start < windowEnd; j++ {
		if tasks[j].End > envelopeEnd {
			last = -1
		} else {
			last = j
		}
	}
	return last >= 0, last
}

// FindQuietWindow returns the start (ms after navigation start) of the
// earliest acceptable quiet window. Candidates are long-task ends, tried in
// order; a candidate whose required window would outlive the trace is
// terminal, since no later candidate can be verified either.
func FindQuietWindow(fmp, traceEnd float64, tasks []trace.LongTask) (float64, error) {
	if len(tasks) == 0 || tasks[0].Start > fmp+maxQuietWindowSizeMs {
		return fmp, nil
	}

	for i := range tasks {
		windowStart := tasks[i].End
		windowEnd := windowStart + RequiredWindowSize(windowStart-fmp)
		if windowEnd > traceEnd {
			return 0, ErrTraceBusy
		}

		quiet := true
		for j := i + 1; j < len(tasks) && tasks[j].Start < windowEnd; j++ {
			lonely, last := lastLonelyIndex(tasks, j, fmp, traceEnd)
			if !lonely {
				quiet = false
				break
			}
			// Tasks absorbed into the envelope are not re-evaluated.
			j = last
		}
		if quiet {
			return windowStart, nil
		}
	}
	return 0, ErrTraceBusy
}

// Compute derives the first-interactive result from the reference timings
// and the long tasks ending after FMP. The reported time never precedes
// DOM content loaded.
func Compute(timings trace.Timings, tasks []trace.LongTask) (Result, error) {
	if timings.TraceEnd-timings.FirstMeaningfulPaint < maxQuietWindowSizeMs {
		return Result{}, ErrTraceTooShort
	}

	quiet, err := FindQuietWindow(timings.FirstMeaningfulPaint, timings.TraceEnd, tasks)
	if err != nil {
		return Result{}, err
	}

	timeInMs := math.Max(quiet, timings.DOMContentLoaded)
	return Result{
		TimeInMs:  timeInMs,
		Timestamp: (timeInMs + timings.NavigationStart) * 1000,
	}, nil
}
