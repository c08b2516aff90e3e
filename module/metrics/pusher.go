package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
)

// Pusher sends the content of a registry to a Prometheus pushgateway once a
// command completes. Analysis commands are short lived, so they push instead of
// being scraped.
type Pusher struct {
	log    zerolog.Logger
	pusher *push.Pusher
}

// NewPusher returns a pusher for the given gateway address and job name.
func NewPusher(log zerolog.Logger, address string, job string, gatherer prometheus.Gatherer) *Pusher {
	return &Pusher{
		log:    log.With().Str("component", "metrics_pusher").Str("address", address).Logger(),
		pusher: push.New(address, job).Gatherer(gatherer),
	}
}

// Push sends the current metric values, replacing the previous ones of the job.
func (p *Pusher) Push() error {
	err := p.pusher.Push()
	if err != nil {
		return fmt.Errorf("failed to push metrics to pushgateway: %w", err)
	}
	p.log.Debug().Msg("metrics pushed")
	return nil
}
