package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediashare/internal/discovery"
)

type fakeAdvertiser struct {
	mu          sync.Mutex
	advertised  []string
	withdrawals int
	withdrawnAt time.Time
	advertiseFn func(name string, port int) error
	onWithdraw  func()
}

func (f *fakeAdvertiser) Advertise(ctx context.Context, name string, port int) (*discovery.Handle, error) {
	if f.advertiseFn != nil {
		if err := f.advertiseFn(name, port); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advertised = append(f.advertised, fmt.Sprintf("%s:%d", name, port))
	return &discovery.Handle{Name: name, Port: port}, nil
}

func (f *fakeAdvertiser) Withdraw(h *discovery.Handle) error {
	if f.onWithdraw != nil {
		f.onWithdraw()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawals++
	f.withdrawnAt = time.Now()
	return nil
}

func (f *fakeAdvertiser) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.advertised), f.withdrawals
}

type transitions struct {
	mu  sync.Mutex
	log []string
}

func (tr *transitions) hook(from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.log = append(tr.log, from.String()+">"+to.String())
}

func (tr *transitions) snapshot() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.log...)
}

func okHandler(Settings) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "share")
	})
}

func localSettings() Settings {
	return Settings{Name: "Test Share", Host: "127.0.0.1", Port: 0}
}

func newTestController(t *testing.T, adv discovery.Advertiser, opts ...Option) (*Controller, *transitions) {
	t.Helper()
	tr := &transitions{}
	opts = append([]Option{WithTransitionHook(tr.hook)}, opts...)
	c := New(localSettings(), okHandler, adv, zerolog.Nop(), opts...)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c, tr
}

func equalLog(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEnableSharing_BindsAndServes(t *testing.T) {
	c, tr := newTestController(t, &fakeAdvertiser{})

	if err := c.EnableSharing(); err != nil {
		t.Fatalf("enable sharing: %v", err)
	}

	want := []string{"stopped>starting", "starting>running"}
	if got := tr.snapshot(); !equalLog(got, want) {
		t.Fatalf("transitions %v, want %v", got, want)
	}

	st := c.Status()
	if st.State != Running || st.Addr == "" {
		t.Fatalf("unexpected status %+v", st)
	}

	resp, err := http.Get("http://" + st.Addr + "/")
	if err != nil {
		t.Fatalf("request share: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "share" {
		t.Fatalf("unexpected body %q", body)
	}

	if err := c.EnableSharing(); err != nil {
		t.Fatalf("second enable: %v", err)
	}
	if got := tr.snapshot(); !equalLog(got, want) {
		t.Fatalf("second enable should not transition, got %v", got)
	}
	if c.Status().Addr != st.Addr {
		t.Fatalf("second enable rebound: %s -> %s", st.Addr, c.Status().Addr)
	}
}

func TestEnableSharing_BindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	handlersBuilt := 0
	tr := &transitions{}
	settings := localSettings()
	settings.Port = taken.Addr().(*net.TCPAddr).Port
	c := New(settings, func(Settings) http.Handler {
		handlersBuilt++
		return okHandler(Settings{})
	}, &fakeAdvertiser{}, zerolog.Nop(), WithTransitionHook(tr.hook))

	err = c.EnableSharing()
	if !errors.Is(err, ErrShareBindFailed) {
		t.Fatalf("expected ErrShareBindFailed, got %v", err)
	}
	if st := c.Status(); st.State != Stopped || st.Addr != "" {
		t.Fatalf("expected stopped without session, got %+v", st)
	}
	if handlersBuilt != 0 {
		t.Fatalf("no session should be created on bind failure, built %d handlers", handlersBuilt)
	}

	want := []string{"stopped>starting", "starting>stopped"}
	if got := tr.snapshot(); !equalLog(got, want) {
		t.Fatalf("transitions %v, want %v", got, want)
	}
}

func TestEnableDiscover_RequiresRunning(t *testing.T) {
	adv := &fakeAdvertiser{}
	c, _ := newTestController(t, adv)

	if err := c.EnableDiscover(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if n, _ := adv.counts(); n != 0 {
		t.Fatalf("advertiser should not be called while stopped, got %d calls", n)
	}

	if err := c.EnableSharing(); err != nil {
		t.Fatalf("enable sharing: %v", err)
	}
	if err := c.EnableDiscover(context.Background()); err != nil {
		t.Fatalf("enable discover: %v", err)
	}
	if err := c.EnableDiscover(context.Background()); err != nil {
		t.Fatalf("second enable discover: %v", err)
	}
	if n, _ := adv.counts(); n != 1 {
		t.Fatalf("expected one advertisement, got %d", n)
	}
	if !c.Status().Discoverable {
		t.Fatal("status should report discoverable")
	}
}

func TestDisableSharing_WithdrawsBeforeListenerStops(t *testing.T) {
	adv := &fakeAdvertiser{}
	c, _ := newTestController(t, adv)

	if err := c.EnableSharing(); err != nil {
		t.Fatalf("enable sharing: %v", err)
	}
	addr := c.Status().Addr
	if err := c.EnableDiscover(context.Background()); err != nil {
		t.Fatalf("enable discover: %v", err)
	}

	liveAtWithdraw := false
	adv.onWithdraw = func() {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			liveAtWithdraw = true
			conn.Close()
		}
	}

	if err := c.DisableSharing(); err != nil {
		t.Fatalf("disable sharing: %v", err)
	}
	stoppedAt := time.Now()

	_, withdrawals := adv.counts()
	if withdrawals != 1 {
		t.Fatalf("expected one withdrawal, got %d", withdrawals)
	}
	if !adv.withdrawnAt.Before(stoppedAt) {
		t.Fatalf("withdrawal at %v did not precede stop at %v", adv.withdrawnAt, stoppedAt)
	}
	if !liveAtWithdraw {
		t.Fatal("listener was already closed when discovery was withdrawn")
	}

	if conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		conn.Close()
		t.Fatal("listener still accepting after DisableSharing returned")
	}
	if st := c.Status(); st.State != Stopped || st.Discoverable {
		t.Fatalf("unexpected status after disable: %+v", st)
	}
}

func TestReconcile_SharingBeforeDiscoverability(t *testing.T) {
	adv := &fakeAdvertiser{}
	c, _ := newTestController(t, adv)
	ctx := context.Background()

	desired := localSettings()
	desired.Discoverable = true
	if err := c.Reconcile(ctx, desired); err != nil {
		t.Fatalf("reconcile disabled: %v", err)
	}
	if n, _ := adv.counts(); n != 0 {
		t.Fatalf("discoverability evaluated without a share: %d advertisements", n)
	}

	desired.Enabled = true
	if err := c.Reconcile(ctx, desired); err != nil {
		t.Fatalf("reconcile enabled: %v", err)
	}
	if st := c.Status(); st.State != Running || !st.Discoverable {
		t.Fatalf("expected running and discoverable, got %+v", st)
	}

	desired.Enabled = false
	if err := c.Reconcile(ctx, desired); err != nil {
		t.Fatalf("reconcile disable: %v", err)
	}
	advertised, withdrawn := adv.counts()
	if advertised != 1 || withdrawn != 1 {
		t.Fatalf("expected 1 advertise and 1 withdraw, got %d/%d", advertised, withdrawn)
	}
	if c.Status().State != Stopped {
		t.Fatalf("expected stopped, got %s", c.Status().State)
	}
}

func TestReconcile_DiscoveryUnavailableKeepsSharing(t *testing.T) {
	adv := &fakeAdvertiser{
		advertiseFn: func(string, int) error {
			return fmt.Errorf("%w: no multicast interface", discovery.ErrUnavailable)
		},
	}
	c, _ := newTestController(t, adv)

	desired := localSettings()
	desired.Enabled = true
	desired.Discoverable = true

	err := c.Reconcile(context.Background(), desired)
	if !errors.Is(err, discovery.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if st := c.Status(); st.State != Running || st.Discoverable {
		t.Fatalf("share should keep running undiscoverable, got %+v", st)
	}
}

func TestReconcile_NameChangeReadvertises(t *testing.T) {
	adv := &fakeAdvertiser{}
	c, _ := newTestController(t, adv)
	ctx := context.Background()

	desired := localSettings()
	desired.Enabled = true
	desired.Discoverable = true
	if err := c.Reconcile(ctx, desired); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	desired.Name = "Renamed"
	if err := c.Reconcile(ctx, desired); err != nil {
		t.Fatalf("reconcile rename: %v", err)
	}

	adv.mu.Lock()
	defer adv.mu.Unlock()
	if len(adv.advertised) != 2 || adv.withdrawals != 1 {
		t.Fatalf("expected re-advertisement, got %v and %d withdrawals", adv.advertised, adv.withdrawals)
	}
	port := c.portLockedForTest()
	if adv.advertised[1] != fmt.Sprintf("Renamed:%d", port) {
		t.Fatalf("unexpected advertisement %q", adv.advertised[1])
	}
}

type brokenListener struct{}

func (brokenListener) Accept() (net.Conn, error) { return nil, errors.New("accept: interface went away") }
func (brokenListener) Close() error              { return nil }
func (brokenListener) Addr() net.Addr            { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 3689} }

func TestListenerFailureForcesStopped(t *testing.T) {
	adv := &fakeAdvertiser{}
	c, tr := newTestController(t, adv, WithListen(func(string, string) (net.Listener, error) {
		return brokenListener{}, nil
	}))

	if err := c.EnableSharing(); err != nil {
		t.Fatalf("enable sharing: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Status().State != Stopped {
		if time.Now().After(deadline) {
			t.Fatalf("share never left running after listener failure: %v", tr.snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := tr.snapshot()
	if got[len(got)-1] != "stopping>stopped" {
		t.Fatalf("unexpected transitions %v", got)
	}
}

func (c *Controller) portLockedForTest() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.portLocked()
}

func TestDisableDiscover_KeepsSharing(t *testing.T) {
	adv := &fakeAdvertiser{}
	c, _ := newTestController(t, adv)

	if err := c.EnableSharing(); err != nil {
		t.Fatalf("enable sharing: %v", err)
	}
	if err := c.EnableDiscover(context.Background()); err != nil {
		t.Fatalf("enable discover: %v", err)
	}

	c.DisableDiscover()
	c.DisableDiscover()

	if _, withdrawn := adv.counts(); withdrawn != 1 {
		t.Fatalf("expected one withdrawal, got %d", withdrawn)
	}
	if st := c.Status(); st.State != Running || st.Discoverable {
		t.Fatalf("unexpected status %+v", st)
	}
}
