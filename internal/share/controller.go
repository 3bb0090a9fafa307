// Package share owns the lifecycle of the network share: the listener that
// serves the catalog and its discovery record.
//
// The listener runs on its own goroutine. Starting returns as soon as the
// socket is bound; stopping blocks until that goroutine has exited. Discovery
// is only ever advertised while a listener is live, and is withdrawn before
// the listener is closed.
package share

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mediashare/internal/discovery"
	"mediashare/internal/metrics"
)

var (
	ErrShareBindFailed = errors.New("share bind failed")
	ErrNotRunning      = errors.New("share is not running")
)

type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Settings is the desired share configuration.
type Settings struct {
	Enabled      bool
	Discoverable bool
	Name         string
	Host         string
	Port         int
}

type Status struct {
	State        State
	Name         string
	Addr         string
	Discoverable bool
	Since        time.Time
}

// HandlerFactory builds the handler for one share session from the settings
// it starts with.
type HandlerFactory func(Settings) http.Handler

type Option func(*Controller)

// WithTransitionHook registers fn to observe every state change. fn runs
// with the controller locked and must not call back into it.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(c *Controller) {
		c.onTransition = fn
	}
}

// WithListen replaces net.Listen.
func WithListen(fn func(network, address string) (net.Listener, error)) Option {
	return func(c *Controller) {
		c.listen = fn
	}
}

type session struct {
	addr    net.Addr
	server  *http.Server
	done    chan struct{}
	started time.Time
}

type Controller struct {
	mu           sync.Mutex
	state        State
	settings     Settings
	session      *session
	discovery    *discovery.Handle
	advertiser   discovery.Advertiser
	newHandler   HandlerFactory
	listen       func(network, address string) (net.Listener, error)
	onTransition func(from, to State)
	logger       zerolog.Logger
}

func New(settings Settings, newHandler HandlerFactory, advertiser discovery.Advertiser, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		state:      Stopped,
		settings:   settings,
		advertiser: advertiser,
		newHandler: newHandler,
		listen:     net.Listen,
		logger:     logger.With().Str("component", "share").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnableSharing binds the listener and starts serving. It is a no-op when
// the share is already running.
func (c *Controller) EnableSharing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enableLocked()
}

// DisableSharing withdraws discovery, closes the listener and waits for the
// serving goroutine to exit.
func (c *Controller) DisableSharing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disableLocked()
}

// EnableDiscover advertises the running share.
func (c *Controller) EnableDiscover(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enableDiscoverLocked(ctx)
}

func (c *Controller) DisableDiscover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.withdrawLocked()
}

// Reconcile moves the share toward the desired settings. Sharing is settled
// first; discoverability is only considered if the share is still running
// afterwards.
func (c *Controller) Reconcile(ctx context.Context, desired Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.settings
	c.settings = desired

	running := c.state == Running
	if running && desired.Enabled && (prev.Host != desired.Host || prev.Port != desired.Port) {
		c.logger.Info().
			Str("from", net.JoinHostPort(prev.Host, strconv.Itoa(prev.Port))).
			Str("to", net.JoinHostPort(desired.Host, strconv.Itoa(desired.Port))).
			Msg("share address changed, restarting listener")
		if err := c.disableLocked(); err != nil {
			c.logger.Warn().Err(err).Msg("error closing previous listener")
		}
		running = false
	}

	if desired.Enabled != running {
		if desired.Enabled {
			if err := c.enableLocked(); err != nil {
				return err
			}
		} else if err := c.disableLocked(); err != nil {
			c.logger.Warn().Err(err).Msg("error closing listener")
		}
	}

	if c.state != Running {
		return nil
	}

	if c.discovery != nil && desired.Discoverable && prev.Name != desired.Name {
		c.withdrawLocked()
	}

	if desired.Discoverable != (c.discovery != nil) {
		if desired.Discoverable {
			return c.enableDiscoverLocked(ctx)
		}
		c.withdrawLocked()
	}
	return nil
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:        c.state,
		Name:         c.settings.Name,
		Discoverable: c.discovery != nil,
	}
	if c.session != nil {
		st.Addr = c.session.addr.String()
		st.Since = c.session.started
	}
	return st
}

// Settings returns the settings last applied through New or Reconcile.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Close stops the share for process shutdown.
func (c *Controller) Close() error {
	return c.DisableSharing()
}

func (c *Controller) enableLocked() error {
	if c.state == Running {
		return nil
	}

	c.transition(Starting)

	addr := net.JoinHostPort(c.settings.Host, strconv.Itoa(c.settings.Port))
	ln, err := c.listen("tcp", addr)
	if err != nil {
		c.transition(Stopped)
		c.logger.Error().Err(err).Str("addr", addr).Msg("failed to bind share listener")
		return fmt.Errorf("%w: %s: %v", ErrShareBindFailed, addr, err)
	}

	sess := &session{
		addr: ln.Addr(),
		server: &http.Server{
			Handler:           c.newHandler(c.settings),
			ReadHeaderTimeout: 10 * time.Second,
		},
		done:    make(chan struct{}),
		started: time.Now(),
	}
	c.session = sess

	go c.serve(sess, ln)

	c.transition(Running)
	c.logger.Info().
		Str("addr", sess.addr.String()).
		Str("name", c.settings.Name).
		Msg("share started")
	return nil
}

func (c *Controller) disableLocked() error {
	if c.state != Running || c.session == nil {
		return nil
	}

	c.transition(Stopping)
	c.withdrawLocked()

	sess := c.session
	err := sess.server.Close()
	<-sess.done

	c.session = nil
	c.transition(Stopped)
	c.logger.Info().Str("addr", sess.addr.String()).Msg("share stopped")
	return err
}

func (c *Controller) enableDiscoverLocked(ctx context.Context) error {
	if c.state != Running {
		return ErrNotRunning
	}
	if c.discovery != nil {
		return nil
	}

	h, err := c.advertiser.Advertise(ctx, c.settings.Name, c.portLocked())
	if err != nil {
		c.logger.Warn().Err(err).Msg("share running without discovery")
		return err
	}

	c.discovery = h
	metrics.ShareDiscoverable.Set(1)
	return nil
}

func (c *Controller) withdrawLocked() {
	if c.discovery == nil {
		return
	}
	if err := c.advertiser.Withdraw(c.discovery); err != nil {
		c.logger.Warn().Err(err).Msg("failed to withdraw discovery record")
	}
	c.discovery = nil
	metrics.ShareDiscoverable.Set(0)
}

func (c *Controller) portLocked() int {
	if c.session != nil {
		if tcp, ok := c.session.addr.(*net.TCPAddr); ok {
			return tcp.Port
		}
	}
	return c.settings.Port
}

// serve runs on the session goroutine. Any exit other than a requested close
// hands the session to abandon.
func (c *Controller) serve(sess *session, ln net.Listener) {
	var failure error
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("share listener panic: %v", r)
		}
		close(sess.done)
		if failure != nil {
			c.logger.Error().Err(failure).Str("addr", sess.addr.String()).Msg("share listener exited unexpectedly")
			go c.abandon(sess)
		}
	}()

	if err := sess.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		failure = err
	}
}

// abandon forces a failed session to Stopped unless it was already replaced
// or stopped.
func (c *Controller) abandon(sess *session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != sess {
		return
	}

	c.transition(Stopping)
	c.withdrawLocked()
	_ = sess.server.Close()
	c.session = nil
	c.transition(Stopped)
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	metrics.ShareState.Set(float64(to))

	c.logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("share state")
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}
