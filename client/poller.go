package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chatty-relay/contract"
)

var _ contract.Worker = (*Poller)(nil)

// DefaultPollInterval is the liveness probe cadence.
const DefaultPollInterval = 5 * time.Second

// StatusFunc receives the presentation liveness signal.
type StatusFunc func(online bool)

// Poller probes the healthcheck endpoint on a fixed interval and drives
// a status signal separate from the connection lifecycle events. It is
// not authoritative for message delivery and never sends chat traffic.
type Poller struct {
	log        *slog.Logger
	url        string
	interval   time.Duration
	httpClient *http.Client
	onStatus   StatusFunc
}

func NewPoller(log *slog.Logger, healthURL string, interval time.Duration, onStatus StatusFunc) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		log:        log,
		url:        healthURL,
		interval:   interval,
		httpClient: &http.Client{Timeout: 3 * time.Second},
		onStatus:   onStatus,
	}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			online := p.probe(ctx)
			if last == nil || *last != online {
				p.log.Info("Liveness changed", "online", online)
				if p.onStatus != nil {
					p.onStatus(online)
				}
			}
			last = &online
		}
	}
}

func (p *Poller) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
