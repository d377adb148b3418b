package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

type RegistryStats interface {
	Stats() (users int, connections int)
}

type ChannelStats interface {
	ChannelCount() int
}

// StatsWorker logs presence and process figures on a fixed interval.
type StatsWorker struct {
	log      *slog.Logger
	registry RegistryStats
	channels ChannelStats
	interval time.Duration
}

func NewStatsWorker(log *slog.Logger, registry RegistryStats, channels ChannelStats, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, registry: registry, channels: channels, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *StatsWorker) report(p *process.Process) {
	users, conns := w.registry.Stats()
	attrs := []any{"online_users", users, "connections", conns, "channels", w.channels.ChannelCount()}

	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect process stats", "error", err)
	} else {
		attrs = append(attrs, "rss_mb", rss/1024/1024, "cpu_percent", cpu)
	}
	w.log.Info("Presence stats", attrs...)
}

func selfStats(p *process.Process) (uint64, float64, error) {
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return mem.RSS, cpu, nil
}
