package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Registry counts asset, watcher and reload activity. A nil *Registry is a
// valid no-op sink.
type Registry struct {
	watcherEvents   atomic.Int64
	watcherErrors   atomic.Int64
	watcherRestarts atomic.Int64
	stalePaths      atomic.Int64
	ticks           atomic.Int64
	tickFailures    atomic.Int64
	tickPaths       atomic.Int64
	managers        sync.Map
	buses           sync.Map
}

type managerStats struct {
	loads               atomic.Int64
	loadFailures        atomic.Int64
	reloads             atomic.Int64
	reloadFailures      atomic.Int64
	reloadDurationNanos atomic.Int64
	destroys            atomic.Int64
	callbacks           atomic.Int64
}

type busStats struct {
	published atomic.Int64
	dropped   atomic.Int64
}

// ManagerSnapshot is a point-in-time copy of one manager's counters.
type ManagerSnapshot struct {
	Loads          int64
	LoadFailures   int64
	Reloads        int64
	ReloadFailures int64
	Destroys       int64
	Callbacks      int64
}

var Default = &Registry{}

func (r *Registry) RecordLoad(manager string, err error) {
	if r == nil {
		return
	}
	stats := r.managerStats(manager)
	if err != nil {
		stats.loadFailures.Add(1)
		return
	}
	stats.loads.Add(1)
}

func (r *Registry) RecordReload(manager string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	stats := r.managerStats(manager)
	stats.reloadDurationNanos.Add(duration.Nanoseconds())
	if err != nil {
		stats.reloadFailures.Add(1)
		return
	}
	stats.reloads.Add(1)
}

func (r *Registry) RecordDestroy(manager string) {
	if r == nil {
		return
	}
	r.managerStats(manager).destroys.Add(1)
}

func (r *Registry) AddCallbacks(manager string, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.managerStats(manager).callbacks.Add(int64(count))
}

func (r *Registry) IncWatcherEvent() {
	if r == nil {
		return
	}
	r.watcherEvents.Add(1)
}

func (r *Registry) IncStalePath() {
	if r == nil {
		return
	}
	r.stalePaths.Add(1)
}

func (r *Registry) IncWatcherError() {
	if r == nil {
		return
	}
	r.watcherErrors.Add(1)
}

func (r *Registry) IncWatcherRestart() {
	if r == nil {
		return
	}
	r.watcherRestarts.Add(1)
}

func (r *Registry) RecordTick(paths int, err error) {
	if r == nil {
		return
	}
	r.ticks.Add(1)
	r.tickPaths.Add(int64(paths))
	if err != nil {
		r.tickFailures.Add(1)
	}
}

func (r *Registry) IncEventPublished(bus string) {
	if r == nil {
		return
	}
	r.busStats(bus).published.Add(1)
}

func (r *Registry) IncEventDropped(bus string) {
	if r == nil {
		return
	}
	r.busStats(bus).dropped.Add(1)
}

// Manager returns the counters recorded for one manager name.
func (r *Registry) Manager(name string) ManagerSnapshot {
	if r == nil {
		return ManagerSnapshot{}
	}
	stats := r.managerStats(name)
	return ManagerSnapshot{
		Loads:          stats.loads.Load(),
		LoadFailures:   stats.loadFailures.Load(),
		Reloads:        stats.reloads.Load(),
		ReloadFailures: stats.reloadFailures.Load(),
		Destroys:       stats.destroys.Load(),
		Callbacks:      stats.callbacks.Load(),
	}
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "mulay_watcher_events_total", "Filesystem events received", r.watcherEvents.Load())
	writeCounter(writer, "mulay_watcher_stale_paths_total", "Changed paths appended to the stale buffer", r.stalePaths.Load())
	writeCounter(writer, "mulay_watcher_errors_total", "Filesystem observer errors", r.watcherErrors.Load())
	writeCounter(writer, "mulay_watcher_restarts_total", "Filesystem observer restarts", r.watcherRestarts.Load())
	writeCounter(writer, "mulay_reload_ticks_total", "Coordinator ticks that drained paths", r.ticks.Load())
	writeCounter(writer, "mulay_reload_tick_failures_total", "Coordinator ticks with at least one failure", r.tickFailures.Load())
	writeCounter(writer, "mulay_reload_tick_paths_total", "Paths drained by the coordinator", r.tickPaths.Load())

	names := keys(&r.managers)
	writeHelp(writer, "mulay_asset_loads_total", "Successful asset loads")
	fmt.Fprintln(writer, "# TYPE mulay_asset_loads_total counter")
	writeHelp(writer, "mulay_asset_load_failures_total", "Failed asset loads")
	fmt.Fprintln(writer, "# TYPE mulay_asset_load_failures_total counter")
	writeHelp(writer, "mulay_asset_reloads_total", "Successful asset reloads")
	fmt.Fprintln(writer, "# TYPE mulay_asset_reloads_total counter")
	writeHelp(writer, "mulay_asset_reload_failures_total", "Failed asset reloads")
	fmt.Fprintln(writer, "# TYPE mulay_asset_reload_failures_total counter")
	writeHelp(writer, "mulay_asset_reload_duration_seconds", "Time spent reloading assets")
	fmt.Fprintln(writer, "# TYPE mulay_asset_reload_duration_seconds summary")
	writeHelp(writer, "mulay_asset_destroys_total", "Destroyed assets")
	fmt.Fprintln(writer, "# TYPE mulay_asset_destroys_total counter")
	writeHelp(writer, "mulay_asset_callbacks_total", "Reload callbacks invoked")
	fmt.Fprintln(writer, "# TYPE mulay_asset_callbacks_total counter")
	for _, name := range names {
		stats := r.managerStats(name)
		label := formatLabel(name)
		attempts := stats.reloads.Load() + stats.reloadFailures.Load()
		durationSeconds := float64(stats.reloadDurationNanos.Load()) / float64(time.Second)
		fmt.Fprintf(writer, "mulay_asset_loads_total{manager=%s} %d\n", label, stats.loads.Load())
		fmt.Fprintf(writer, "mulay_asset_load_failures_total{manager=%s} %d\n", label, stats.loadFailures.Load())
		fmt.Fprintf(writer, "mulay_asset_reloads_total{manager=%s} %d\n", label, stats.reloads.Load())
		fmt.Fprintf(writer, "mulay_asset_reload_failures_total{manager=%s} %d\n", label, stats.reloadFailures.Load())
		fmt.Fprintf(writer, "mulay_asset_reload_duration_seconds_sum{manager=%s} %.6f\n", label, durationSeconds)
		fmt.Fprintf(writer, "mulay_asset_reload_duration_seconds_count{manager=%s} %d\n", label, attempts)
		fmt.Fprintf(writer, "mulay_asset_destroys_total{manager=%s} %d\n", label, stats.destroys.Load())
		fmt.Fprintf(writer, "mulay_asset_callbacks_total{manager=%s} %d\n", label, stats.callbacks.Load())
	}

	buses := keys(&r.buses)
	writeHelp(writer, "mulay_events_published_total", "Events published per bus")
	fmt.Fprintln(writer, "# TYPE mulay_events_published_total counter")
	writeHelp(writer, "mulay_events_dropped_total", "Events dropped for slow subscribers")
	fmt.Fprintln(writer, "# TYPE mulay_events_dropped_total counter")
	for _, name := range buses {
		stats := r.busStats(name)
		label := formatLabel(name)
		fmt.Fprintf(writer, "mulay_events_published_total{bus=%s} %d\n", label, stats.published.Load())
		fmt.Fprintf(writer, "mulay_events_dropped_total{bus=%s} %d\n", label, stats.dropped.Load())
	}

	return nil
}

func (r *Registry) managerStats(name string) *managerStats {
	if strings.TrimSpace(name) == "" {
		name = "default"
	}
	value, _ := r.managers.LoadOrStore(name, &managerStats{})
	return value.(*managerStats)
}

func (r *Registry) busStats(name string) *busStats {
	if strings.TrimSpace(name) == "" {
		name = "event_bus"
	}
	value, _ := r.buses.LoadOrStore(name, &busStats{})
	return value.(*busStats)
}

func keys(m *sync.Map) []string {
	var names []string
	m.Range(func(key, _ any) bool {
		if name, ok := key.(string); ok {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
