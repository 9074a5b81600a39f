package trace

import "sort"

// LongTask is one top-level main-thread task at or above the long-task
// threshold. Start and End are milliseconds relative to navigation start.
type LongTask struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration in milliseconds.
func (t LongTask) Duration() float64 { return t.End - t.Start }

// Top-level task event names across the Chrome versions we see in captures.
var topLevelTaskNames = map[string]bool{
	"TaskQueueManager::ProcessTaskFromWorkQueue": true,
	"ThreadControllerImpl::RunTask":              true,
	"ThreadControllerImpl::DoWork":               true,
}

// LongTasks extracts the main-thread tasks with duration at or above
// thresholdMs whose end falls after afterMs, sorted ascending by start.
func (m *Model) LongTasks(thresholdMs, afterMs float64) []LongTask {
	var tasks []LongTask
	navTS, ok := m.navigationStartTS()
	if !ok {
		return nil
	}
	for _, ev := range m.Events {
		if ev.Phase != "X" || !m.onMainThread(ev) || !topLevelTaskNames[ev.Name] {
			continue
		}
		start := (ev.Timestamp - navTS) / 1000
		end := start + ev.Duration/1000
		if end-start < thresholdMs || end <= afterMs {
			continue
		}
		tasks = append(tasks, LongTask{Start: start, End: end})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Start < tasks[j].Start })
	return tasks
}
