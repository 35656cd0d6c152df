package state

import (
	"sync"
	"testing"
	"time"
)

type fakeEnv struct {
	mu        sync.Mutex
	authed    bool
	logouts   int
	logins    []LoginDraft
	registers []RegistrationDraft
	analyses  []AnalysisDraft
	health    int
	shown     []View
	updates   int
}

func (f *fakeEnv) callbacks() Callbacks {
	return Callbacks{
		IsAuthenticated: func() bool {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.authed
		},
		Logout: func() {
			f.mu.Lock()
			f.authed = false
			f.logouts++
			f.mu.Unlock()
		},
		StartLogin: func(d LoginDraft) {
			f.mu.Lock()
			f.logins = append(f.logins, d)
			f.mu.Unlock()
		},
		StartRegister: func(d RegistrationDraft) {
			f.mu.Lock()
			f.registers = append(f.registers, d)
			f.mu.Unlock()
		},
		StartAnalyze: func(d AnalysisDraft) {
			f.mu.Lock()
			f.analyses = append(f.analyses, d)
			f.mu.Unlock()
		},
		StartHealthCheck: func() {
			f.mu.Lock()
			f.health++
			f.mu.Unlock()
		},
		ShowView: func(_ *AppContext, v View) {
			f.shown = append(f.shown, v)
		},
		UpdateUI: func(*AppContext) { f.updates++ },
	}
}

func (f *fakeEnv) setAuthed(v bool) {
	f.mu.Lock()
	f.authed = v
	f.mu.Unlock()
}

func newTestMachine(t *testing.T, env *fakeEnv) (*Machine, *AppContext) {
	t.Helper()
	ctx := NewAppContext()
	m := NewMachine(ctx, nil, env.callbacks(), time.Hour)
	t.Cleanup(func() {
		m.cancelRedirect()
		m.WaitAsync(time.Second)
	})
	return m, ctx
}

func TestLaunch_GateRedirectsToLogin(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)

	m.handleEvent(Event{Type: EventUILaunch})
	m.WaitAsync(time.Second)

	if ctx.UI.View != ViewLogin {
		t.Fatalf("view = %s, want Login", ctx.UI.View)
	}
	if len(env.shown) != 1 || env.shown[0] != ViewLogin {
		t.Errorf("shown = %v", env.shown)
	}
	if env.health != 1 {
		t.Errorf("health checks = %d", env.health)
	}
}

func TestLaunch_AuthenticatedStaysOnLanding(t *testing.T) {
	env := &fakeEnv{authed: true}
	m, ctx := newTestMachine(t, env)

	m.handleEvent(Event{Type: EventUILaunch})

	if ctx.UI.View != ViewLanding || !ctx.UI.Authenticated {
		t.Fatalf("view = %s authenticated = %v", ctx.UI.View, ctx.UI.Authenticated)
	}
}

func TestGate_NotEnforcedAfterMount(t *testing.T) {
	env := &fakeEnv{authed: true}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUILaunch})

	env.setAuthed(false)
	m.handleEvent(Event{Type: EventSysHealth, Payload: HealthPayload{Online: true}})

	if ctx.UI.View != ViewLanding {
		t.Errorf("view = %s, gate re-evaluated after mount", ctx.UI.View)
	}
	if ctx.UI.Authenticated {
		t.Error("header still shows authenticated state")
	}
}

func TestSubmitLogin_ValidationSkipsNetwork(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUILaunch})

	m.handleEvent(Event{Type: EventUISubmitLogin, Payload: LoginPayload{Draft: LoginDraft{Phone: "+234"}}})
	m.WaitAsync(time.Second)

	if len(env.logins) != 0 {
		t.Fatalf("login started: %v", env.logins)
	}
	if ctx.UI.Login.Phase != PhaseError || ctx.UI.Login.ErrorText() != "Please provide both phone number and password" {
		t.Errorf("login form = %+v", ctx.UI.Login)
	}
	if ctx.UI.Login.Error.Kind != ErrorKindValidation {
		t.Errorf("kind = %s", ctx.UI.Login.Error.Kind)
	}
}

func TestLoginFlow(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUILaunch})

	m.handleEvent(Event{Type: EventUISubmitLogin, Payload: LoginPayload{Draft: LoginDraft{Phone: " +2348012345678 ", Password: "secret123"}}})
	m.WaitAsync(time.Second)
	if !ctx.UI.Login.Loading() {
		t.Fatalf("login phase = %s", ctx.UI.Login.Phase)
	}
	if len(env.logins) != 1 || env.logins[0].Phone != "+2348012345678" {
		t.Fatalf("logins = %+v", env.logins)
	}

	// second submit while loading is rejected
	m.handleEvent(Event{Type: EventUISubmitLogin, Payload: LoginPayload{Draft: LoginDraft{Phone: "1", Password: "2"}}})
	m.WaitAsync(time.Second)
	if len(env.logins) != 1 {
		t.Fatalf("duplicate submit started: %d", len(env.logins))
	}

	env.setAuthed(true)
	m.handleEvent(Event{Type: EventSysLoginSuccess})

	if ctx.UI.View != ViewLanding {
		t.Errorf("view = %s, want Landing", ctx.UI.View)
	}
	if ctx.LoginDraft != (LoginDraft{}) {
		t.Errorf("draft kept: %+v", ctx.LoginDraft)
	}
	if !ctx.UI.Authenticated {
		t.Error("header not authenticated")
	}
}

func TestLoginFailure_StaysOnLogin(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUILaunch})
	m.handleEvent(Event{Type: EventUISubmitLogin, Payload: LoginPayload{Draft: LoginDraft{Phone: "1", Password: "x"}}})

	m.handleEvent(Event{Type: EventSysLoginFailure, Payload: ResultPayload{Kind: ErrorKindAuthFailed, Message: "Invalid credentials"}})

	if ctx.UI.View != ViewLogin {
		t.Errorf("view = %s", ctx.UI.View)
	}
	if ctx.UI.Login.ErrorText() != "Invalid credentials" {
		t.Errorf("error = %q", ctx.UI.Login.ErrorText())
	}

	m.handleEvent(Event{Type: EventUISubmitLogin, Payload: LoginPayload{Draft: LoginDraft{Phone: "1", Password: "x"}}})
	m.handleEvent(Event{Type: EventSysLoginFailure, Payload: ResultPayload{}})
	if ctx.UI.Login.ErrorText() != MsgLoginFailed {
		t.Errorf("fallback = %q", ctx.UI.Login.ErrorText())
	}
}

func TestLoginSuccess_UnmountedDoesNotNavigate(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUILaunch})
	m.handleEvent(Event{Type: EventUISubmitLogin, Payload: LoginPayload{Draft: LoginDraft{Phone: "1", Password: "x"}}})
	m.handleEvent(Event{Type: EventUINavigate, Payload: NavigatePayload{View: ViewRegister}})

	if !ctx.UI.Login.Loading() {
		t.Fatalf("in-flight login reset on navigation: %+v", ctx.UI.Login)
	}

	env.setAuthed(true)
	m.handleEvent(Event{Type: EventSysLoginSuccess})

	if ctx.UI.View != ViewRegister {
		t.Errorf("view = %s, want Register", ctx.UI.View)
	}
	if ctx.UI.Login.Phase != PhaseSuccess {
		t.Errorf("login phase = %s", ctx.UI.Login.Phase)
	}
}

func TestNavigate_DiscardsDrafts(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUILaunch})
	m.handleEvent(Event{Type: EventUISubmitLogin, Payload: LoginPayload{Draft: LoginDraft{Phone: "1"}}})
	if ctx.LoginDraft.Phone != "1" {
		t.Fatalf("draft = %+v", ctx.LoginDraft)
	}

	m.handleEvent(Event{Type: EventUINavigate, Payload: NavigatePayload{View: ViewRegister}})

	if ctx.LoginDraft != (LoginDraft{}) {
		t.Errorf("draft kept: %+v", ctx.LoginDraft)
	}
	if ctx.UI.Login.Phase != PhaseIdle {
		t.Errorf("login phase = %s", ctx.UI.Login.Phase)
	}
	if ctx.UI.View != ViewRegister {
		t.Errorf("view = %s", ctx.UI.View)
	}
}

func validRegisterPayload() RegisterPayload {
	return RegisterPayload{Draft: RegistrationDraft{
		Name:           "Ada's Bakery",
		WhatsAppNumber: "08012345678",
		OwnerName:      "Ada",
		BusinessType:   "Bakery",
		Password:       "secret123",
		VoiceSample:    &FileRef{Name: "v.wav", Data: []byte("RIFF")},
		AvatarImage:    &FileRef{Name: "a.png", Data: []byte("PNG")},
	}}
}

func TestRegister_MissingFileSkipsNetwork(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUINavigate, Payload: NavigatePayload{View: ViewRegister}})

	payload := validRegisterPayload()
	payload.Draft.AvatarImage = nil
	m.handleEvent(Event{Type: EventUISubmitRegister, Payload: payload})
	m.WaitAsync(time.Second)

	if len(env.registers) != 0 {
		t.Fatalf("registration started")
	}
	if ctx.UI.Register.ErrorText() != "Please upload both voice sample and avatar image" {
		t.Errorf("error = %q", ctx.UI.Register.ErrorText())
	}
}

func TestRegister_SuccessRedirects(t *testing.T) {
	env := &fakeEnv{}
	done := make(chan struct{})
	var once sync.Once
	cb := env.callbacks()
	cb.ShowView = func(_ *AppContext, v View) {
		if v == ViewLogin {
			once.Do(func() { close(done) })
		}
	}
	ctx := NewAppContext()
	ctx.UI.View = ViewRegister
	m := NewMachine(ctx, nil, cb, 10*time.Millisecond)
	m.Start()
	t.Cleanup(m.Stop)

	_ = m.Dispatch(Event{Type: EventUISubmitRegister, Payload: validRegisterPayload()})
	_ = m.Dispatch(Event{Type: EventSysRegisterSuccess, Payload: RegisterSuccessPayload{Message: "Business registered"}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("redirect did not happen")
	}
	m.WaitAsync(time.Second)
	env.mu.Lock()
	defer env.mu.Unlock()
	if len(env.registers) != 1 || env.registers[0].ResponseStyle != ResponseStyleProfessional {
		t.Errorf("registers = %+v", env.registers)
	}
}

func TestRegister_SuccessSetsConfirmation(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUINavigate, Payload: NavigatePayload{View: ViewRegister}})
	m.handleEvent(Event{Type: EventUISubmitRegister, Payload: validRegisterPayload()})

	m.handleEvent(Event{Type: EventSysRegisterSuccess, Payload: RegisterSuccessPayload{Message: "ok!"}})

	if ctx.UI.Register.Phase != PhaseSuccess || ctx.UI.Register.Message != "ok!" {
		t.Errorf("register = %+v", ctx.UI.Register)
	}
	if !ctx.UI.RedirectPending || m.redirectTimer == nil {
		t.Error("redirect not scheduled")
	}
	if ctx.RegisterDraft.Name != "" {
		t.Errorf("draft kept: %+v", ctx.RegisterDraft)
	}

	m.handleEvent(Event{Type: EventUINavigate, Payload: NavigatePayload{View: ViewLogin}})
	if m.redirectTimer != nil || ctx.UI.RedirectPending {
		t.Error("redirect survived navigation")
	}
	m.handleEvent(Event{Type: EventSysRedirect})
	if ctx.UI.View != ViewLogin {
		t.Errorf("stale redirect moved view to %s", ctx.UI.View)
	}
}

func TestRegister_RedirectTarget(t *testing.T) {
	tests := []struct {
		name   string
		authed bool
		want   View
	}{
		{"without session", false, ViewLogin},
		{"with session", true, ViewLanding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &fakeEnv{authed: tt.authed}
			m, ctx := newTestMachine(t, env)
			m.handleEvent(Event{Type: EventUINavigate, Payload: NavigatePayload{View: ViewRegister}})
			m.handleEvent(Event{Type: EventUISubmitRegister, Payload: validRegisterPayload()})
			m.handleEvent(Event{Type: EventSysRegisterSuccess, Payload: RegisterSuccessPayload{Message: "ok"}})
			env.shown = nil

			m.handleEvent(Event{Type: EventSysRedirect})
			if ctx.UI.View != tt.want {
				t.Errorf("view = %s, want %s", ctx.UI.View, tt.want)
			}
			if len(env.shown) != 1 || env.shown[0] != tt.want {
				t.Errorf("shown = %v, want only %s", env.shown, tt.want)
			}
		})
	}
}

func TestAnalyzeFlow(t *testing.T) {
	env := &fakeEnv{authed: true}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUILaunch})

	m.handleEvent(Event{Type: EventUISubmitAnalyze, Payload: AnalyzePayload{Draft: AnalysisDraft{Text: "   "}}})
	m.WaitAsync(time.Second)
	if len(env.analyses) != 0 || ctx.UI.Analyze.ErrorText() != "Please enter some text to analyze" {
		t.Fatalf("analyses = %v form = %+v", env.analyses, ctx.UI.Analyze)
	}

	m.handleEvent(Event{Type: EventUISubmitAnalyze, Payload: AnalyzePayload{Draft: AnalysisDraft{Text: "How do I get more customers?"}}})
	m.WaitAsync(time.Second)
	if len(env.analyses) != 1 {
		t.Fatalf("analyses = %v", env.analyses)
	}
	m.handleEvent(Event{Type: EventSysAnalyzeSuccess, Payload: AnalyzeSuccessPayload{Analysis: "Try social media."}})
	if ctx.UI.Analysis != "Try social media." || ctx.UI.Analyze.Phase != PhaseSuccess {
		t.Errorf("analysis = %q form = %+v", ctx.UI.Analysis, ctx.UI.Analyze)
	}

	m.handleEvent(Event{Type: EventUISubmitAnalyze, Payload: AnalyzePayload{Draft: AnalysisDraft{Text: "again"}}})
	m.handleEvent(Event{Type: EventSysAnalyzeFailure, Payload: ResultPayload{Kind: ErrorKindBackend, TechnicalMessage: "status 500"}})
	if ctx.UI.Analyze.ErrorText() != MsgAnalyzeFailed {
		t.Errorf("error = %q", ctx.UI.Analyze.ErrorText())
	}
	if ctx.UI.Analysis != "" {
		t.Errorf("stale analysis shown: %q", ctx.UI.Analysis)
	}
}

func TestLogout(t *testing.T) {
	env := &fakeEnv{authed: true}
	m, ctx := newTestMachine(t, env)
	m.handleEvent(Event{Type: EventUILaunch})

	m.handleEvent(Event{Type: EventUILogout})

	if env.logouts != 1 {
		t.Errorf("logouts = %d", env.logouts)
	}
	if ctx.UI.View != ViewLogin || ctx.UI.Authenticated {
		t.Errorf("view = %s authenticated = %v", ctx.UI.View, ctx.UI.Authenticated)
	}
}

func TestHealthBanner(t *testing.T) {
	env := &fakeEnv{}
	m, ctx := newTestMachine(t, env)

	m.handleEvent(Event{Type: EventSysHealth, Payload: HealthPayload{Online: false, TechnicalMessage: "refused"}})
	if !ctx.UI.BackendOffline {
		t.Error("offline banner not set")
	}
	m.handleEvent(Event{Type: EventSysHealth, Payload: HealthPayload{Online: true}})
	if ctx.UI.BackendOffline {
		t.Error("offline banner not cleared")
	}
}

func TestDispatchAfterStop(t *testing.T) {
	m := NewMachine(NewAppContext(), nil, Callbacks{}, 0)
	m.Start()
	m.Stop()
	if err := m.Dispatch(Event{Type: EventUILaunch}); err != ErrMachineStopped {
		t.Errorf("Dispatch() error = %v, want ErrMachineStopped", err)
	}
}

func TestStopDuringConcurrentDispatch(t *testing.T) {
	for i := 0; i < 50; i++ {
		m := NewMachine(NewAppContext(), nil, Callbacks{}, 0)
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				evt := Event{Type: EventSysHealth, Payload: HealthPayload{Online: true}}
				if g%2 == 0 {
					evt = Event{Type: EventUIExit}
				}
				for n := 0; n < 200; n++ {
					if err := m.Dispatch(evt); err != nil {
						return
					}
				}
			}(g)
		}
		m.Stop()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Dispatch blocked after Stop")
		}
		if err := m.Dispatch(Event{Type: EventUIExit}); err != ErrMachineStopped {
			t.Fatalf("Dispatch() error = %v, want ErrMachineStopped", err)
		}
	}
}

func TestExitInvokesCleanup(t *testing.T) {
	called := make(chan struct{})
	m := NewMachine(NewAppContext(), nil, Callbacks{CleanupAndExit: func(*AppContext) { close(called) }}, 0)
	m.Start()
	t.Cleanup(m.Stop)

	if err := m.Dispatch(Event{Type: EventUIExit}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup not invoked")
	}
}
