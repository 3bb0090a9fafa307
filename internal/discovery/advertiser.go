package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"

	"mediashare/internal/metrics"
)

const (
	ServiceType    = "_daap._tcp"
	defaultTimeout = 3 * time.Second
)

var ErrUnavailable = errors.New("discovery unavailable")

// Advertiser publishes and withdraws the share's discovery record.
type Advertiser interface {
	Advertise(ctx context.Context, name string, port int) (*Handle, error)
	Withdraw(h *Handle) error
}

type zoneServer interface {
	Shutdown() error
}

// register is swapped in tests.
var register = func(instance string, port int, txt []string) (zoneServer, error) {
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, txt)
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(&mdns.Config{Zone: service})
}

// Handle is one active registration.
type Handle struct {
	Name string
	Port int

	mu        sync.Mutex
	server    zoneServer
	withdrawn bool
}

func (h *Handle) Withdrawn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.withdrawn
}

type MDNS struct {
	timeout    time.Duration
	databaseID string
	logger     zerolog.Logger
}

// NewMDNS returns an advertiser whose registrations give up after timeout.
func NewMDNS(timeout time.Duration, databaseID string, logger zerolog.Logger) *MDNS {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &MDNS{
		timeout:    timeout,
		databaseID: databaseID,
		logger:     logger.With().Str("component", "discovery").Logger(),
	}
}

type registration struct {
	server zoneServer
	err    error
}

func (m *MDNS) Advertise(ctx context.Context, name string, port int) (*Handle, error) {
	reg := register
	resultCh := make(chan registration, 1)
	go func() {
		srv, err := reg(name, port, m.txt(name))
		resultCh <- registration{server: srv, err: err}
	}()

	timeout := time.NewTimer(m.timeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		go m.discardLate(resultCh)
		metrics.DiscoveryAdvertisements.WithLabelValues("timeout").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case <-timeout.C:
		go m.discardLate(resultCh)
		metrics.DiscoveryAdvertisements.WithLabelValues("timeout").Inc()
		return nil, fmt.Errorf("%w: registration timed out after %s", ErrUnavailable, m.timeout)
	case res := <-resultCh:
		if res.err != nil {
			metrics.DiscoveryAdvertisements.WithLabelValues("unavailable").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, res.err)
		}

		metrics.DiscoveryAdvertisements.WithLabelValues("ok").Inc()
		m.logger.Info().
			Str("name", name).
			Int("port", port).
			Str("service", ServiceType).
			Msg("share advertised")

		return &Handle{Name: name, Port: port, server: res.server}, nil
	}
}

// Withdraw deregisters the record. Withdrawing twice is a no-op.
func (m *MDNS) Withdraw(h *Handle) error {
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.withdrawn {
		return nil
	}
	h.withdrawn = true

	if h.server == nil {
		return nil
	}
	if err := h.server.Shutdown(); err != nil {
		return fmt.Errorf("withdraw %q: %w", h.Name, err)
	}

	m.logger.Info().Str("name", h.Name).Msg("share withdrawn")
	return nil
}

// discardLate shuts down a registration that completed after its caller
// stopped waiting.
func (m *MDNS) discardLate(resultCh <-chan registration) {
	res := <-resultCh
	if res.err != nil || res.server == nil {
		return
	}
	if err := res.server.Shutdown(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to shut down late registration")
	}
}

func (m *MDNS) txt(name string) []string {
	return []string{
		"txtvers=1",
		"Machine Name=" + name,
		"Database ID=" + m.databaseID,
		"Password=false",
	}
}
