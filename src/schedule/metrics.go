package schedule

import "github.com/prometheus/client_golang/prometheus"

// Ambient build-loop counters (§2.2): not required by any invariant,
// exposed because the teacher always instruments its build loop this
// way. They're registered once at package init so building several
// Schedulers in one process (as the tests do) doesn't panic on a
// duplicate registration.
var (
	targetsBuilt = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ybt_scheduler_targets_built_total",
		Help: "Targets whose builder function was invoked and succeeded.",
	})
	targetsCached = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ybt_scheduler_targets_cached_total",
		Help: "Targets satisfied by a cache hit or the image-cache classifier.",
	})
	targetsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ybt_scheduler_targets_failed_total",
		Help: "Targets whose builder function returned an error.",
	})
	targetsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ybt_scheduler_targets_skipped_total",
		Help: "Targets skipped because a dependency failed under continue-after-fail.",
	})
)

func init() {
	prometheus.MustRegister(targetsBuilt, targetsCached, targetsFailed, targetsSkipped)
}
