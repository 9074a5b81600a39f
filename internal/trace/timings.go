package trace

// Timings are the reference timestamps the audits measure against. All
// values are milliseconds relative to navigation start, except
// NavigationStart itself which is absolute (trace clock, in ms).
type Timings struct {
	NavigationStart      float64 `json:"navigation_start"`
	FirstMeaningfulPaint float64 `json:"first_meaningful_paint"`
	DOMContentLoaded     float64 `json:"dom_content_loaded"`
	TraceEnd             float64 `json:"trace_end"`
}

// Timings derives the reference timestamps from the main-thread events.
// FirstMeaningfulPaint prefers the definitive event and falls back to the
// last candidate; Chrome emits one or the other depending on version.
func (m *Model) Timings() (Timings, error) {
	navTS, ok := m.navigationStartTS()
	if !ok {
		return Timings{}, ErrNoNavigationStart
	}

	fmpTS, fmpCandidateTS, dclTS := -1.0, -1.0, -1.0
	traceEndTS := navTS
	for _, ev := range m.Events {
		if ev.PID == m.MainPID {
			if end := ev.Timestamp + ev.Duration; end > traceEndTS {
				traceEndTS = end
			}
		}
		if !m.onMainThread(ev) || ev.Timestamp < navTS {
			continue
		}
		switch ev.Name {
		case "firstMeaningfulPaint":
			if fmpTS < 0 {
				fmpTS = ev.Timestamp
			}
		case "firstMeaningfulPaintCandidate":
			fmpCandidateTS = ev.Timestamp
		case "domContentLoadedEventEnd":
			if dclTS < 0 {
				dclTS = ev.Timestamp
			}
		}
	}
	if fmpTS < 0 {
		fmpTS = fmpCandidateTS
	}
	if fmpTS < 0 {
		return Timings{}, ErrNoFirstMeaningfulPaint
	}
	if dclTS < 0 {
		return Timings{}, ErrNoDOMContentLoaded
	}

	return Timings{
		NavigationStart:      navTS / 1000,
		FirstMeaningfulPaint: (fmpTS - navTS) / 1000,
		DOMContentLoaded:     (dclTS - navTS) / 1000,
		TraceEnd:             (traceEndTS - navTS) / 1000,
	}, nil
}
