package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chatty-relay/contract"
	"chatty-relay/observability"
)

var _ contract.Worker = (*MonitorWorker)(nil)

// MonitorWorker samples the relay's own process stats (CPU, RSS, OS
// status) on a fixed interval and records them into the monitoring
// manager for the stats endpoint.
type MonitorWorker struct {
	log      *slog.Logger
	monitor  *observability.MonitoringManager
	interval time.Duration
}

func NewMonitorWorker(log *slog.Logger, monitor *observability.MonitoringManager, interval time.Duration) *MonitorWorker {
	return &MonitorWorker{log: log, monitor: monitor, interval: interval}
}

func (w *MonitorWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay monitor worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.monitor.RecordSelfStats(cpu, rss, status, time.Now().UTC())
		}
	}
}

// selfStats retrieves technical metrics (memory, CPU, OS status) for the process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
