package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gidyola79/VidioAgent/internal/apiclient"
	"github.com/gidyola79/VidioAgent/internal/config"
	"github.com/gidyola79/VidioAgent/internal/logging"
	"github.com/gidyola79/VidioAgent/internal/session"
	"github.com/gidyola79/VidioAgent/internal/state"
)

type fakePresenter struct {
	mu    sync.Mutex
	views []state.View
	last  state.UIState
}

func (p *fakePresenter) Start() {}

func (p *fakePresenter) ShowView(_ *state.AppContext, view state.View) {
	p.mu.Lock()
	p.views = append(p.views, view)
	p.mu.Unlock()
}

func (p *fakePresenter) UpdateUI(ctx *state.AppContext) {
	snap := ctx.Snapshot()
	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()
}

func (p *fakePresenter) RunMainLoop()                  {}
func (p *fakePresenter) Quit()                         {}
func (p *fakePresenter) Shutdown()                     {}
func (p *fakePresenter) WaitAsync(time.Duration) bool { return true }

func (p *fakePresenter) snapshot() state.UIState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *fakePresenter) waitFor(t *testing.T, what string, cond func(state.UIState) bool) state.UIState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if snap := p.snapshot(); cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last snapshot %+v", what, p.snapshot())
	return state.UIState{}
}

type backend struct {
	mux      *http.ServeMux
	analyzes atomic.Int32
	register atomic.Int32
}

func newBackend() *backend {
	b := &backend{mux: http.NewServeMux()}
	b.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return b
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func startApp(t *testing.T, b *backend, storage session.Storage, tweak func(*config.Config)) (*Application, *fakePresenter) {
	t.Helper()
	srv := httptest.NewServer(b.mux)
	t.Cleanup(srv.Close)

	cfg := config.Default(t.TempDir())
	cfg.APIBaseURL = srv.URL
	cfg.RequestTimeout = 2 * time.Second
	if tweak != nil {
		tweak(cfg)
	}
	presenter := &fakePresenter{}
	application, err := New(cfg, logging.Discard(), Options{Presenter: presenter, Storage: storage})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(application.Stop)
	if err := application.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return application, presenter
}

func storageWithToken(t *testing.T, token string) session.Storage {
	t.Helper()
	storage := session.NewMemoryStorage()
	if err := storage.Save(session.TokenKey, token); err != nil {
		t.Fatal(err)
	}
	return storage
}

func TestLogin_StoresTokenAndOpensLanding(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Phone != "+2348012345678" || req.Password != "secret123" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, apiclient.LoginResponse{AccessToken: "abc", TokenType: "bearer"})
	})
	app, ui := startApp(t, b, session.NewMemoryStorage(), nil)
	ui.waitFor(t, "login view", func(s state.UIState) bool { return s.View == state.ViewLogin })

	_ = app.dispatch(state.Event{Type: state.EventUISubmitLogin, Payload: state.LoginPayload{
		Draft: state.LoginDraft{Phone: "+2348012345678", Password: "secret123"},
	}})

	ui.waitFor(t, "landing", func(s state.UIState) bool { return s.View == state.ViewLanding && s.Authenticated })
	if token, ok := app.Session().Token(); !ok || token != "abc" {
		t.Errorf("Token() = %q, %v; want abc", token, ok)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
	})
	app, ui := startApp(t, b, session.NewMemoryStorage(), nil)
	ui.waitFor(t, "login view", func(s state.UIState) bool { return s.View == state.ViewLogin })

	_ = app.dispatch(state.Event{Type: state.EventUISubmitLogin, Payload: state.LoginPayload{
		Draft: state.LoginDraft{Phone: "+2348012345678", Password: "wrong"},
	}})

	snap := ui.waitFor(t, "login error", func(s state.UIState) bool { return s.Login.Phase == state.PhaseError })
	if snap.Login.ErrorText() != "Invalid credentials" {
		t.Errorf("error = %q", snap.Login.ErrorText())
	}
	if snap.View != state.ViewLogin {
		t.Errorf("view = %s", snap.View)
	}
	if app.Session().IsAuthenticated() {
		t.Error("session changed after failed login")
	}
}

func TestLogin_FailureKeepsExistingToken(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
	})
	app, ui := startApp(t, b, storageWithToken(t, "T0"), nil)
	ui.waitFor(t, "landing", func(s state.UIState) bool { return s.View == state.ViewLanding && s.Authenticated })

	_ = app.dispatch(state.Event{Type: state.EventUINavigate, Payload: state.NavigatePayload{View: state.ViewLogin}})
	ui.waitFor(t, "login view", func(s state.UIState) bool { return s.View == state.ViewLogin })
	_ = app.dispatch(state.Event{Type: state.EventUISubmitLogin, Payload: state.LoginPayload{
		Draft: state.LoginDraft{Phone: "+2348012345678", Password: "wrong"},
	}})

	snap := ui.waitFor(t, "login error", func(s state.UIState) bool { return s.Login.Phase == state.PhaseError })
	if snap.Login.ErrorText() != "Invalid credentials" {
		t.Errorf("error = %q", snap.Login.ErrorText())
	}
	if token, ok := app.Session().Token(); !ok || token != "T0" {
		t.Errorf("Token() = %q, %v; want T0", token, ok)
	}
}

func TestAnalyze_UsesStoredToken(t *testing.T) {
	b := newBackend()
	var gotAuth atomic.Value
	b.mux.HandleFunc("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		b.analyzes.Add(1)
		gotAuth.Store(r.Header.Get("Authorization"))
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["name"]; ok {
			t.Errorf("empty name serialized: %v", req)
		}
		writeJSON(w, http.StatusOK, apiclient.AnalyzeResponse{Analysis: "Try social media."})
	})
	app, ui := startApp(t, b, storageWithToken(t, "T1"), nil)
	ui.waitFor(t, "landing", func(s state.UIState) bool { return s.View == state.ViewLanding })

	_ = app.dispatch(state.Event{Type: state.EventUISubmitAnalyze, Payload: state.AnalyzePayload{
		Draft: state.AnalysisDraft{Text: "How do I get more customers?"},
	}})

	snap := ui.waitFor(t, "analysis", func(s state.UIState) bool { return s.Analyze.Phase == state.PhaseSuccess })
	if snap.Analysis != "Try social media." {
		t.Errorf("analysis = %q", snap.Analysis)
	}
	if gotAuth.Load() != "Bearer T1" {
		t.Errorf("Authorization = %v", gotAuth.Load())
	}
}

func TestAnalyze_FailureShowsGenericMessage(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "groq timeout"})
	})
	app, ui := startApp(t, b, storageWithToken(t, "T1"), nil)
	ui.waitFor(t, "landing", func(s state.UIState) bool { return s.View == state.ViewLanding })

	_ = app.dispatch(state.Event{Type: state.EventUISubmitAnalyze, Payload: state.AnalyzePayload{
		Draft: state.AnalysisDraft{Text: "hi"},
	}})

	snap := ui.waitFor(t, "analysis error", func(s state.UIState) bool { return s.Analyze.Phase == state.PhaseError })
	if snap.Analyze.ErrorText() != state.MsgAnalyzeFailed {
		t.Errorf("error = %q", snap.Analyze.ErrorText())
	}
}

func TestAnalyze_EmptyTextNoNetwork(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		b.analyzes.Add(1)
		writeJSON(w, http.StatusOK, apiclient.AnalyzeResponse{})
	})
	app, ui := startApp(t, b, storageWithToken(t, "T1"), nil)
	ui.waitFor(t, "landing", func(s state.UIState) bool { return s.View == state.ViewLanding })

	_ = app.dispatch(state.Event{Type: state.EventUISubmitAnalyze, Payload: state.AnalyzePayload{
		Draft: state.AnalysisDraft{Text: "  "},
	}})

	snap := ui.waitFor(t, "validation error", func(s state.UIState) bool { return s.Analyze.Phase == state.PhaseError })
	if snap.Analyze.ErrorText() != "Please enter some text to analyze" {
		t.Errorf("error = %q", snap.Analyze.ErrorText())
	}
	if n := b.analyzes.Load(); n != 0 {
		t.Errorf("analyze calls = %d", n)
	}
}

func registrationDraft() state.RegistrationDraft {
	return state.RegistrationDraft{
		Name:           "Ada's Bakery",
		WhatsAppNumber: "08012345678",
		OwnerName:      "Ada",
		BusinessType:   "Bakery",
		Password:       "secret123",
		VoiceSample:    &state.FileRef{Name: "voice.wav", Data: append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)},
		AvatarImage:    &state.FileRef{Name: "me.png", Data: append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)},
	}
}

func TestRegister_MissingFileNoNetwork(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("/api/business/register", func(w http.ResponseWriter, r *http.Request) {
		b.register.Add(1)
	})
	app, ui := startApp(t, b, session.NewMemoryStorage(), nil)
	_ = app.dispatch(state.Event{Type: state.EventUINavigate, Payload: state.NavigatePayload{View: state.ViewRegister}})
	ui.waitFor(t, "register view", func(s state.UIState) bool { return s.View == state.ViewRegister })

	draft := registrationDraft()
	draft.VoiceSample = nil
	_ = app.dispatch(state.Event{Type: state.EventUISubmitRegister, Payload: state.RegisterPayload{Draft: draft}})

	snap := ui.waitFor(t, "validation error", func(s state.UIState) bool { return s.Register.Phase == state.PhaseError })
	if snap.Register.ErrorText() != "Please upload both voice sample and avatar image" {
		t.Errorf("error = %q", snap.Register.ErrorText())
	}
	if n := b.register.Load(); n != 0 {
		t.Errorf("register calls = %d", n)
	}
}

func TestRegister_SuccessRedirects(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("/api/business/register", func(w http.ResponseWriter, r *http.Request) {
		b.register.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		if r.FormValue("response_style") != "professional" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad style " + r.FormValue("response_style")})
			return
		}
		writeJSON(w, http.StatusOK, apiclient.RegistrationResult{ID: 1, Name: r.FormValue("name"), Message: "Business 'Ada's Bakery' registered successfully!"})
	})
	app, ui := startApp(t, b, session.NewMemoryStorage(), func(c *config.Config) { c.UI.RedirectDelay = 20 * time.Millisecond })
	_ = app.dispatch(state.Event{Type: state.EventUINavigate, Payload: state.NavigatePayload{View: state.ViewRegister}})
	ui.waitFor(t, "register view", func(s state.UIState) bool { return s.View == state.ViewRegister })

	_ = app.dispatch(state.Event{Type: state.EventUISubmitRegister, Payload: state.RegisterPayload{Draft: registrationDraft()}})

	ui.waitFor(t, "redirect", func(s state.UIState) bool {
		return s.View == state.ViewLogin && !s.RedirectPending
	})
	if n := b.register.Load(); n != 1 {
		t.Errorf("register calls = %d", n)
	}
}

func TestRegister_DuplicateNumber(t *testing.T) {
	b := newBackend()
	detail := "Business with WhatsApp number +2348012345678 already registered"
	b.mux.HandleFunc("/api/business/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": detail})
	})
	app, ui := startApp(t, b, session.NewMemoryStorage(), nil)
	_ = app.dispatch(state.Event{Type: state.EventUINavigate, Payload: state.NavigatePayload{View: state.ViewRegister}})

	_ = app.dispatch(state.Event{Type: state.EventUISubmitRegister, Payload: state.RegisterPayload{Draft: registrationDraft()}})

	snap := ui.waitFor(t, "register error", func(s state.UIState) bool { return s.Register.Phase == state.PhaseError })
	if snap.Register.ErrorText() != detail {
		t.Errorf("error = %q", snap.Register.ErrorText())
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	storage := storageWithToken(t, "T1")
	app, ui := startApp(t, newBackend(), storage, nil)
	ui.waitFor(t, "landing", func(s state.UIState) bool { return s.View == state.ViewLanding && s.Authenticated })

	_ = app.dispatch(state.Event{Type: state.EventUILogout})

	ui.waitFor(t, "login after logout", func(s state.UIState) bool { return s.View == state.ViewLogin && !s.Authenticated })
	if value, _ := storage.Load(session.TokenKey); value != "" {
		t.Errorf("persisted token = %q", value)
	}
}

func TestHealth_OfflineBanner(t *testing.T) {
	b := &backend{mux: http.NewServeMux()}
	b.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, ui := startApp(t, b, session.NewMemoryStorage(), nil)

	ui.waitFor(t, "offline banner", func(s state.UIState) bool { return s.BackendOffline })
}

func TestNew_SessionBackends(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Session.Backend = config.SessionBackendPreferences
	if _, err := New(cfg, logging.Discard(), Options{Presenter: &fakePresenter{}}); err == nil {
		t.Error("preferences backend without UI accepted")
	}

	cfg.Session.Backend = config.SessionBackendFile
	application, err := New(cfg, logging.Discard(), Options{Presenter: &fakePresenter{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(application.Stop)
	application.Session().SetToken("persisted")
	data, err := os.ReadFile(cfg.Session.File)
	if err != nil || len(data) == 0 {
		t.Errorf("session file not written: %v", err)
	}
}

func TestBuildFailurePayload(t *testing.T) {
	tests := []struct {
		name     string
		build    func(error) state.ResultPayload
		err      error
		wantKind state.ErrorKind
		wantMsg  string
	}{
		{"login detail", buildLoginFailurePayload, &apiclient.Error{Op: "Login", Kind: apiclient.KindAuth, Status: 401, Message: "Invalid credentials"}, state.ErrorKindAuthFailed, "Invalid credentials"},
		{"login network", buildLoginFailurePayload, &apiclient.Error{Op: "Login", Kind: apiclient.KindNetwork, Err: errors.New("refused")}, state.ErrorKindNetworkUnavailable, state.MsgLoginFailed},
		{"login timeout", buildLoginFailurePayload, &apiclient.Error{Op: "Login", Kind: apiclient.KindNetwork, Err: fmt.Errorf("do: %w", context.DeadlineExceeded)}, state.ErrorKindNetworkUnavailable, msgLoginTimeout},
		{"login missing token", buildLoginFailurePayload, &apiclient.Error{Op: "Login", Kind: apiclient.KindUnknown, Status: 200, Err: errors.New("empty access token")}, state.ErrorKindUnknown, state.MsgLoginFailed},
		{"register network", buildRegisterFailurePayload, &apiclient.Error{Op: "Register", Kind: apiclient.KindNetwork, Err: errors.New("refused")}, state.ErrorKindNetworkUnavailable, msgRegisterError},
		{"register no detail", buildRegisterFailurePayload, &apiclient.Error{Op: "Register", Kind: apiclient.KindBackend, Status: 500}, state.ErrorKindBackend, state.MsgRegistrationFailed},
		{"register missing file", buildRegisterFailurePayload, &apiclient.Error{Op: "Register", Kind: apiclient.KindValidation, Message: "Please upload both voice sample and avatar image", Err: apiclient.ErrMissingFile}, state.ErrorKindValidation, "Please upload both voice sample and avatar image"},
		{"analyze detail hidden", buildAnalyzeFailurePayload, &apiclient.Error{Op: "Analyze", Kind: apiclient.KindBackend, Status: 500, Message: "groq timeout"}, state.ErrorKindBackend, state.MsgAnalyzeFailed},
		{"plain error", buildRegisterFailurePayload, errors.New("boom"), state.ErrorKindUnknown, msgRegisterError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.build(tt.err)
			if got.Kind != tt.wantKind || got.Message != tt.wantMsg {
				t.Errorf("got %+v, want kind %s message %q", got, tt.wantKind, tt.wantMsg)
			}
			if got.TechnicalMessage == "" {
				t.Error("technical message is empty")
			}
		})
	}
}
