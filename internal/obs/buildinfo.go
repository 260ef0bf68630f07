package obs

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "authz_build_info",
			Help: "Build metadata of the running authorization service; always 1.",
		},
		[]string{"version", "commit", "go_version"},
	)

	startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authz_start_time_seconds",
		Help: "Unix time the process published its build info.",
	})
)

// InitBuildInfo publishes authz_build_info. An empty or "dev" commit falls
// back to the VCS revision stamped by the Go toolchain.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo, startTime)
		startTime.Set(float64(time.Now().Unix()))
	})
	buildInfo.WithLabelValues(version, resolveCommit(commit), runtime.Version()).Set(1)
}

func resolveCommit(commit string) string {
	if commit != "" && commit != "dev" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	if commit == "" {
		return "unknown"
	}
	return commit
}
