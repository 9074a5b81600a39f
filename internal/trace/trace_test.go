package trace

import (
	"encoding/json"
	"errors"
	"testing"
)

type rawEvent struct {
	Name string         `json:"name"`
	Ph   string         `json:"ph"`
	TS   float64        `json:"ts"`
	Dur  float64        `json:"dur,omitempty"`
	PID  int64          `json:"pid"`
	TID  int64          `json:"tid"`
	Args map[string]any `json:"args,omitempty"`
}

func marshalTrace(t *testing.T, wrapped bool, events []rawEvent) []byte {
	t.Helper()
	var doc any = events
	if wrapped {
		doc = map[string]any{"traceEvents": events}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to marshal trace fixture: %v", err)
	}
	return data
}

// baseEvents is a minimal but complete main-thread trace: navigation at
// 1s (trace clock), DCL at +400ms, FMP at +500ms, one 80ms top-level task
// at +600ms, and a late render event stretching the trace to +8s.
func baseEvents() []rawEvent {
	return []rawEvent{
		{Name: "thread_name", Ph: "M", PID: 1, TID: 1, Args: map[string]any{"name": "CrRendererMain"}},
		{Name: "navigationStart", Ph: "R", TS: 1000000, PID: 1, TID: 1},
		{Name: "domContentLoadedEventEnd", Ph: "R", TS: 1400000, PID: 1, TID: 1},
		{Name: "firstMeaningfulPaint", Ph: "R", TS: 1500000, PID: 1, TID: 1},
		{Name: "ThreadControllerImpl::RunTask", Ph: "X", TS: 1600000, Dur: 80000, PID: 1, TID: 1},
		{Name: "ThreadControllerImpl::RunTask", Ph: "X", TS: 8900000, Dur: 100000, PID: 1, TID: 1},
	}
}

func TestParseModelShapes(t *testing.T) {
	for _, wrapped := range []bool{false, true} {
		data := marshalTrace(t, wrapped, baseEvents())
		m, err := ParseModel(data)
		if err != nil {
			t.Fatalf("ParseModel(wrapped=%v) error: %v", wrapped, err)
		}
		if m.MainPID != 1 || m.MainTID != 1 {
			t.Errorf("main thread = %d/%d, want 1/1", m.MainPID, m.MainTID)
		}
		if len(m.Events) != len(baseEvents()) {
			t.Errorf("parsed %d events, want %d", len(m.Events), len(baseEvents()))
		}
	}
}

func TestParseModelInvalid(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("not json"),
		[]byte(`{"traceEvents": 42}`),
		[]byte(`[]`),
		[]byte(`{}`),
	} {
		if _, err := ParseModel(data); !errors.Is(err, ErrInvalidTrace) {
			t.Errorf("ParseModel(%q) error = %v, want ErrInvalidTrace", data, err)
		}
	}
}

func TestParseModelFallsBackToNavigationThread(t *testing.T) {
	events := baseEvents()[1:] // drop the thread_name metadata
	m, err := ParseModel(marshalTrace(t, false, events))
	if err != nil {
		t.Fatalf("ParseModel() error: %v", err)
	}
	if m.MainPID != 1 || m.MainTID != 1 {
		t.Errorf("main thread = %d/%d, want 1/1", m.MainPID, m.MainTID)
	}
}

func TestTimings(t *testing.T) {
	m, err := ParseModel(marshalTrace(t, true, baseEvents()))
	if err != nil {
		t.Fatalf("ParseModel() error: %v", err)
	}
	timings, err := m.Timings()
	if err != nil {
		t.Fatalf("Timings() error: %v", err)
	}

	if timings.NavigationStart != 1000 {
		t.Errorf("NavigationStart = %v, want 1000", timings.NavigationStart)
	}
	if timings.FirstMeaningfulPaint != 500 {
		t.Errorf("FirstMeaningfulPaint = %v, want 500", timings.FirstMeaningfulPaint)
	}
	if timings.DOMContentLoaded != 400 {
		t.Errorf("DOMContentLoaded = %v, want 400", timings.DOMContentLoaded)
	}
	if timings.TraceEnd != 8000 {
		t.Errorf("TraceEnd = %v, want 8000", timings.TraceEnd)
	}
}

func TestTimingsFMPCandidateFallback(t *testing.T) {
	events := baseEvents()
	// Replace the definitive FMP with two candidates; the last one wins.
	events[3] = rawEvent{Name: "firstMeaningfulPaintCandidate", Ph: "R", TS: 1450000, PID: 1, TID: 1}
	events = append(events, rawEvent{Name: "firstMeaningfulPaintCandidate", Ph: "R", TS: 1700000, PID: 1, TID: 1})

	m, err := ParseModel(marshalTrace(t, false, events))
	if err != nil {
		t.Fatalf("ParseModel() error: %v", err)
	}
	timings, err := m.Timings()
	if err != nil {
		t.Fatalf("Timings() error: %v", err)
	}
	if timings.FirstMeaningfulPaint != 700 {
		t.Errorf("FirstMeaningfulPaint = %v, want 700", timings.FirstMeaningfulPaint)
	}
}

func TestTimingsMissingMarkers(t *testing.T) {
	tests := []struct {
		name    string
		drop    string
		wantErr error
	}{
		{"no FMP", "firstMeaningfulPaint", ErrNoFirstMeaningfulPaint},
		{"no DCL", "domContentLoadedEventEnd", ErrNoDOMContentLoaded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []rawEvent
			for _, ev := range baseEvents() {
				if ev.Name != tt.drop {
					events = append(events, ev)
				}
			}
			m, err := ParseModel(marshalTrace(t, false, events))
			if err != nil {
				t.Fatalf("ParseModel() error: %v", err)
			}
			if _, err := m.Timings(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Timings() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLongTasks(t *testing.T) {
	events := baseEvents()
	events = append(events,
		// Below threshold: dropped.
		rawEvent{Name: "ThreadControllerImpl::RunTask", Ph: "X", TS: 2000000, Dur: 20000, PID: 1, TID: 1},
		// Other thread: dropped.
		rawEvent{Name: "ThreadControllerImpl::RunTask", Ph: "X", TS: 2100000, Dur: 90000, PID: 1, TID: 7},
		// Not a top-level task name: dropped.
		rawEvent{Name: "v8.run", Ph: "X", TS: 2200000, Dur: 90000, PID: 1, TID: 1},
		// Legacy task name: kept.
		rawEvent{Name: "TaskQueueManager::ProcessTaskFromWorkQueue", Ph: "X", TS: 3000000, Dur: 60000, PID: 1, TID: 1},
	)

	m, err := ParseModel(marshalTrace(t, false, events))
	if err != nil {
		t.Fatalf("ParseModel() error: %v", err)
	}
	tasks := m.LongTasks(50, 500)

	want := []LongTask{
		{Start: 600, End: 680},
		{Start: 2000, End: 2060},
		{Start: 7900, End: 8000},
	}
	if len(tasks) != len(want) {
		t.Fatalf("LongTasks() returned %d tasks, want %d: %+v", len(tasks), len(want), tasks)
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Errorf("task[%d] = %+v, want %+v", i, tasks[i], want[i])
		}
	}
}

func TestLongTasksEndingBeforeFMPDropped(t *testing.T) {
	m, err := ParseModel(marshalTrace(t, false, baseEvents()))
	if err != nil {
		t.Fatalf("ParseModel() error: %v", err)
	}
	// afterMs beyond every task end.
	if tasks := m.LongTasks(50, 9000); len(tasks) != 0 {
		t.Errorf("LongTasks() = %+v, want none", tasks)
	}
}
