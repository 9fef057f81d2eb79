package connect

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFlag struct {
	err       error
	connected bool
	writes    int
}

func (f *fakeFlag) Connected() bool { return f.connected }

func (f *fakeFlag) SetConnected(_ context.Context, v bool) error {
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.connected = v
	return nil
}

type fakeExchanger struct {
	err   error
	codes []string
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code string) (string, error) {
	f.codes = append(f.codes, code)
	return "ok", f.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestReconcileSuccess(t *testing.T) {
	ctx := context.Background()
	flag := &fakeFlag{}
	r := NewReconciler(flag, &fakeExchanger{})

	if err := r.Reconcile(ctx, Success()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if !flag.connected || flag.writes != 1 {
		t.Errorf("flag = %+v, want connected with one write", flag)
	}

	// Already connected: no further writes.
	if err := r.Reconcile(ctx, Success()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if flag.writes != 1 {
		t.Errorf("writes = %d after repeated success, want 1", flag.writes)
	}
}

func TestReconcileSuccessPersistFailure(t *testing.T) {
	boom := errors.New("disk full")
	r := NewReconciler(&fakeFlag{err: boom}, &fakeExchanger{})
	if err := r.Reconcile(context.Background(), Success()); !errors.Is(err, boom) {
		t.Errorf("Reconcile() error = %v, want %v", err, boom)
	}
}

func TestReconcileFailureRaisesNotice(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(1000, 0)}
	flag := &fakeFlag{}
	r := NewReconciler(flag, &fakeExchanger{}, WithClock(c.now), WithNoticeTTL(5*time.Second))

	if err := r.Reconcile(ctx, Failure("user_denied")); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if flag.writes != 0 {
		t.Error("failure wrote the connection flag")
	}

	n, ok := r.Notice()
	if !ok || n.Reason != "user_denied" || n.Message != "Authorization was denied." {
		t.Errorf("Notice() = %+v, %v", n, ok)
	}

	c.t = c.t.Add(4 * time.Second)
	if _, ok := r.Notice(); !ok {
		t.Error("Notice() expired early")
	}
	c.t = c.t.Add(time.Second)
	if _, ok := r.Notice(); ok {
		t.Error("Notice() still visible after TTL")
	}
}

func TestFailureKeepsExistingFlag(t *testing.T) {
	flag := &fakeFlag{connected: true}
	r := NewReconciler(flag, &fakeExchanger{})
	if err := r.Reconcile(context.Background(), Failure(ReasonExchangeFailed)); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if !flag.connected || flag.writes != 0 {
		t.Errorf("flag = %+v, want untouched", flag)
	}
}

func TestHandleRedirect(t *testing.T) {
	tests := []struct {
		name       string
		rd         Redirect
		state      string
		exErr      error
		want       Outcome
		wantCodes  int
		wantFlag   bool
		wantNotice string
	}{
		{"success", Redirect{Code: "c1"}, "", nil, Success(), 1, true, ""},
		{"success with state", Redirect{Code: "c1", State: "s1"}, "s1", nil, Success(), 1, true, ""},
		{"provider error", Redirect{Error: "access_denied", ErrorReason: "user_denied"}, "", nil, Failure("user_denied"), 0, false, "user_denied"},
		{"provider error without reason", Redirect{Error: "access_denied"}, "", nil, Failure("access_denied"), 0, false, "access_denied"},
		{"error wins over code", Redirect{Code: "c1", Error: "server_error"}, "", nil, Failure("server_error"), 0, false, "server_error"},
		{"missing code", Redirect{State: "s1"}, "", nil, Failure(ReasonMissingCode), 0, false, ReasonMissingCode},
		{"state mismatch", Redirect{Code: "c1", State: "evil"}, "s1", nil, Failure(ReasonStateMismatch), 0, false, ReasonStateMismatch},
		{"exchange fails", Redirect{Code: "c1"}, "", errors.New("400"), Failure(ReasonExchangeFailed), 1, false, ReasonExchangeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			flag := &fakeFlag{}
			ex := &fakeExchanger{err: tt.exErr}
			r := NewReconciler(flag, ex)
			r.ExpectState(tt.state)

			rd := tt.rd
			got, err := r.HandleRedirect(ctx, &rd)
			if err != nil {
				t.Fatalf("HandleRedirect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HandleRedirect() = %+v, want %+v", got, tt.want)
			}
			if len(ex.codes) != tt.wantCodes {
				t.Errorf("exchanges = %d, want %d", len(ex.codes), tt.wantCodes)
			}
			if flag.connected != tt.wantFlag {
				t.Errorf("connected = %v, want %v", flag.connected, tt.wantFlag)
			}
			n, ok := r.Notice()
			if (tt.wantNotice != "") != ok || n.Reason != tt.wantNotice {
				t.Errorf("Notice() = %+v, %v; want reason %q", n, ok, tt.wantNotice)
			}
			if rd != (Redirect{}) {
				t.Errorf("redirect parameters not consumed: %+v", rd)
			}

			// Re-invocation with the consumed parameters does nothing.
			again, err := r.HandleRedirect(ctx, &rd)
			if err != nil || again.Kind != None {
				t.Errorf("second HandleRedirect() = %+v, %v; want no-op", again, err)
			}
			if len(ex.codes) != tt.wantCodes {
				t.Error("second HandleRedirect() exchanged again")
			}
		})
	}
}

func TestHandleRedirectNil(t *testing.T) {
	r := NewReconciler(&fakeFlag{}, &fakeExchanger{})
	if o, err := r.HandleRedirect(context.Background(), nil); err != nil || o.Kind != None {
		t.Errorf("HandleRedirect(nil) = %+v, %v", o, err)
	}
}

func TestAuthorizeURL(t *testing.T) {
	raw := AuthorizeURL(Config{ClientID: "app-1", RedirectURL: "http://127.0.0.1:8765/auth/callback"}, "st-1")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if !strings.Contains(u.Host, "facebook.com") {
		t.Errorf("host = %q, want facebook.com", u.Host)
	}
	q := u.Query()
	checks := map[string]string{
		"client_id":     "app-1",
		"redirect_uri":  "http://127.0.0.1:8765/auth/callback",
		"state":         "st-1",
		"response_type": "code",
		"scope":         strings.Join(DefaultScopes, " "),
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	if a == "" || a == b {
		t.Errorf("NewState() = %q, %q; want distinct non-empty values", a, b)
	}
}

func TestListener(t *testing.T) {
	ctx := context.Background()
	l, err := Listen(ctx, "http://127.0.0.1:0/auth/callback", nil)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close() //nolint:errcheck // test

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(l.URL() + "?code=abc&state=s1") //nolint:noctx // test
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body) //nolint:errcheck // test
	resp.Body.Close()                //nolint:errcheck,gosec // test
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Received") {
		t.Errorf("callback = %d %q", resp.StatusCode, body)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rd, err := l.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if rd.Code != "abc" || rd.State != "s1" {
		t.Errorf("Wait() = %+v", rd)
	}

	// Only the first redirect is accepted.
	resp, err = client.Get(l.URL() + "?code=second") //nolint:noctx // test
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close() //nolint:errcheck,gosec // test
	if resp.StatusCode != http.StatusGone {
		t.Errorf("second callback status = %d, want 410", resp.StatusCode)
	}
}

func TestListenRejectsBadURL(t *testing.T) {
	if _, err := Listen(context.Background(), "https://example.com/cb", nil); err == nil {
		t.Error("Listen(https) error = nil, want error")
	}
}
