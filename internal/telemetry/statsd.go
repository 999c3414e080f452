package telemetry

import (
	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const statsdNamespace = "csp."

// Statsd forwards metrics to a DogStatsD agent. Add becomes a count and
// Store a gauge.
type Statsd struct {
	client ddstatsd.ClientInterface
	log    zerolog.Logger
}

// NewStatsd dials the agent at address. An empty address yields a client
// that discards everything.
func NewStatsd(address string, tags []string, log zerolog.Logger) (*Statsd, error) {
	if address == "" {
		return &Statsd{client: &ddstatsd.NoOpClient{}, log: log}, nil
	}
	opts := []ddstatsd.Option{ddstatsd.WithNamespace(statsdNamespace)}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}
	client, err := ddstatsd.New(address, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "dial statsd at %s", address)
	}
	return &Statsd{client: client, log: log}, nil
}

// WrapStatsd adapts an existing client.
func WrapStatsd(client ddstatsd.ClientInterface, log zerolog.Logger) *Statsd {
	if client == nil {
		client = &ddstatsd.NoOpClient{}
	}
	return &Statsd{client: client, log: log}
}

func (s *Statsd) Add(key string, delta uint64) {
	if err := s.client.Count(key, int64(delta), nil, 1); err != nil {
		s.log.Warn().Err(err).Str("metric", key).Msg("failed to emit count")
	}
}

func (s *Statsd) Store(key string, value uint64) {
	if err := s.client.Gauge(key, float64(value), nil, 1); err != nil {
		s.log.Warn().Err(err).Str("metric", key).Msg("failed to emit gauge")
	}
}

// Close flushes and closes the client.
func (s *Statsd) Close() error {
	return s.client.Close()
}
