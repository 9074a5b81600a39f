// Package trace turns a captured Chrome trace document into the structured
// model the audits consume: an ordered event list, the main renderer thread,
// reference timings, and the top-level long tasks.
package trace

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidTrace           = errors.New("trace document is not valid JSON or has no events")
	ErrNoNavigationStart      = errors.New("trace has no navigationStart event on the main thread")
	ErrNoFirstMeaningfulPaint = errors.New("trace has no firstMeaningfulPaint event after navigation start")
	ErrNoDOMContentLoaded     = errors.New("trace has no domContentLoadedEventEnd event after navigation start")
)

// Event is a single trace event. Timestamps and durations are in
// microseconds, as recorded by the browser.
type Event struct {
	Name      string  `json:"name"`
	Phase     string  `json:"ph"`
	Timestamp float64 `json:"ts"`
	Duration  float64 `json:"dur"`
	PID       int64   `json:"pid"`
	TID       int64   `json:"tid"`
}

// Model is the parsed trace: all events sorted by timestamp plus the
// identity of the main renderer thread.
type Model struct {
	Events  []Event
	MainPID int64
	MainTID int64
}

const rendererMainThreadName = "CrRendererMain"

// ParseModel parses a Chrome trace document. Both shapes are accepted: a
// bare JSON array of events, or an object with a "traceEvents" array.
func ParseModel(data []byte) (*Model, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidTrace
	}
	root := gjson.ParseBytes(data)
	events := root
	if root.IsObject() {
		events = root.Get("traceEvents")
	}
	if !events.IsArray() {
		return nil, ErrInvalidTrace
	}

	m := &Model{}
	events.ForEach(func(_, ev gjson.Result) bool {
		m.Events = append(m.Events, Event{
			Name:      ev.Get("name").String(),
			Phase:     ev.Get("ph").String(),
			Timestamp: ev.Get("ts").Float(),
			Duration:  ev.Get("dur").Float(),
			PID:       ev.Get("pid").Int(),
			TID:       ev.Get("tid").Int(),
		})
		// Thread metadata identifies the renderer main thread.
		if ev.Get("ph").String() == "M" &&
			ev.Get("name").String() == "thread_name" &&
			ev.Get("args.name").String() == rendererMainThreadName {
			m.MainPID = ev.Get("pid").Int()
			m.MainTID = ev.Get("tid").Int()
		}
		return true
	})
	if len(m.Events) == 0 {
		return nil, ErrInvalidTrace
	}

	sort.SliceStable(m.Events, func(i, j int) bool {
		return m.Events[i].Timestamp < m.Events[j].Timestamp
	})

	// Older captures carry no thread_name metadata; fall back to the
	// thread that recorded navigationStart.
	if m.MainPID == 0 && m.MainTID == 0 {
		for _, ev := range m.Events {
			if ev.Name == "navigationStart" {
				m.MainPID, m.MainTID = ev.PID, ev.TID
				break
			}
		}
	}
	if m.MainPID == 0 && m.MainTID == 0 {
		return nil, fmt.Errorf("identifying main thread: %w", ErrNoNavigationStart)
	}
	return m, nil
}

func (m *Model) onMainThread(ev Event) bool {
	return ev.PID == m.MainPID && ev.TID == m.MainTID
}

// navigationStartTS returns the first main-thread navigationStart
// timestamp (µs, trace clock).
func (m *Model) navigationStartTS() (float64, bool) {
	for _, ev := range m.Events {
		if ev.Name == "navigationStart" && m.onMainThread(ev) {
			return ev.Timestamp, true
		}
	}
	return 0, false
}
