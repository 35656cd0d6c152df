package state

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gidyola79/VidioAgent/internal/logging"
)

// EventType представляет собой тип события из очереди state machine.
type EventType string

const (
	EventUILaunch         EventType = "UI_LAUNCH"
	EventUINavigate       EventType = "UI_NAVIGATE"
	EventUISubmitLogin    EventType = "UI_SUBMIT_LOGIN"
	EventUISubmitRegister EventType = "UI_SUBMIT_REGISTER"
	EventUISubmitAnalyze  EventType = "UI_SUBMIT_ANALYZE"
	EventUILogout         EventType = "UI_LOGOUT"
	EventUIExit           EventType = "UI_EXIT"

	EventSysLoginSuccess    EventType = "SYS_LOGIN_SUCCESS"
	EventSysLoginFailure    EventType = "SYS_LOGIN_FAILURE"
	EventSysRegisterSuccess EventType = "SYS_REGISTER_SUCCESS"
	EventSysRegisterFailure EventType = "SYS_REGISTER_FAILURE"
	EventSysAnalyzeSuccess  EventType = "SYS_ANALYZE_SUCCESS"
	EventSysAnalyzeFailure  EventType = "SYS_ANALYZE_FAILURE"
	EventSysRedirect        EventType = "SYS_REDIRECT"
	EventSysHealth          EventType = "SYS_HEALTH"
)

// DefaultRedirectDelay задаёт паузу между подтверждением регистрации и переходом на главную.
const DefaultRedirectDelay = 3 * time.Second

// Fallback messages shown when an operation reports no details.
const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgAnalyzeFailed      = "Failed to analyze text. Please ensure the backend is running."
)

// Event инкапсулирует событие очереди и произвольную полезную нагрузку.
type Event struct {
	Type    EventType
	Payload any
	TS      time.Time
}

// NavigatePayload указывает целевой экран.
type NavigatePayload struct {
	View View
}

// LoginPayload передаёт введённые учётные данные.
type LoginPayload struct {
	Draft LoginDraft
}

// RegisterPayload передаёт черновик регистрации.
type RegisterPayload struct {
	Draft RegistrationDraft
}

// AnalyzePayload передаёт черновик анализа.
type AnalyzePayload struct {
	Draft AnalysisDraft
}

// RegisterSuccessPayload содержит подтверждение бэкенда.
type RegisterSuccessPayload struct {
	Message string
}

// AnalyzeSuccessPayload содержит текст анализа.
type AnalyzeSuccessPayload struct {
	Analysis string
}

// ResultPayload описывает неуспешное завершение операции.
type ResultPayload struct {
	Kind             ErrorKind
	Message          string
	TechnicalMessage string
}

// HealthPayload содержит результат проверки /health.
type HealthPayload struct {
	Online           bool
	TechnicalMessage string
}

// Callbacks содержит функции, вызываемые state machine для побочных эффектов.
// Start* выполняются в отдельной горутине и сообщают результат событием SYS_*.
type Callbacks struct {
	IsAuthenticated  func() bool
	Logout           func()
	StartLogin       func(draft LoginDraft)
	StartRegister    func(draft RegistrationDraft)
	StartAnalyze     func(draft AnalysisDraft)
	StartHealthCheck func()
	ShowView         func(ctx *AppContext, view View)
	UpdateUI         func(ctx *AppContext)
	CleanupAndExit   func(ctx *AppContext)
}

// Machine инкапсулирует event-loop и текущее состояние клиента.
type Machine struct {
	ctx           *AppContext
	callbacks     Callbacks
	logger        *logging.Logger
	redirectDelay time.Duration
	events        chan Event
	priority      chan Event
	done          chan struct{}
	stopped       atomic.Bool
	loopOnce      sync.Once
	stopOnce      sync.Once
	wg            sync.WaitGroup
	redirectTimer *time.Timer
}

// ErrMachineStopped возвращается при попытке отправить событие после остановки петли.
var ErrMachineStopped = errors.New("state machine stopped")

// NewMachine создаёт state machine. Экран, указанный в ctx.UI.View, монтируется
// по событию UI_LAUNCH; пустой означает Landing.
func NewMachine(ctx *AppContext, logger *logging.Logger, callbacks Callbacks, redirectDelay time.Duration) *Machine {
	if redirectDelay <= 0 {
		redirectDelay = DefaultRedirectDelay
	}
	return &Machine{
		ctx:           ctx,
		callbacks:     callbacks,
		logger:        logger.Named("state"),
		redirectDelay: redirectDelay,
		events:        make(chan Event, 64),
		priority:      make(chan Event, 8),
		done:          make(chan struct{}),
	}
}

// Start запускает event-loop в отдельной горутине.
func (m *Machine) Start() {
	m.loopOnce.Do(func() {
		go m.loopSafely()
	})
}

// Stop завершает event-loop.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		close(m.done)
	})
}

// WaitAsync ждёт завершения фоновых задач, запущенных state machine.
func (m *Machine) WaitAsync(timeout time.Duration) bool {
	if m == nil {
		return true
	}
	if timeout <= 0 {
		m.wg.Wait()
		return true
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Dispatch отправляет событие в очередь state machine.
func (m *Machine) Dispatch(evt Event) error {
	if m.stopped.Load() {
		return ErrMachineStopped
	}
	m.logger.Debugf("event queued: %s", evt.Type)
	ch := m.events
	if evt.Type == EventUIExit {
		ch = m.priority
	}
	// Каналы событий не закрываются: остановку сигнализирует только done.
	select {
	case <-m.done:
		return ErrMachineStopped
	case ch <- evt:
		return nil
	}
}

func (m *Machine) loop() {
	for {
		if m.stopped.Load() {
			return
		}

		select {
		case evt := <-m.priority:
			m.handleEvent(evt)
			continue
		default:
		}

		select {
		case <-m.done:
			return
		case evt := <-m.priority:
			m.handleEvent(evt)
		case evt := <-m.events:
			m.handleEvent(evt)
		}
	}
}

func (m *Machine) loopSafely() {
	defer m.logPanic("state loop")
	m.loop()
}

func (m *Machine) handleEvent(evt Event) {
	if evt.TS.IsZero() {
		evt.TS = time.Now()
	}
	m.logger.Debugf("event handle: %s view=%s", evt.Type, m.ctx.UI.View)

	switch evt.Type {
	case EventUILaunch:
		m.mount(m.ctx.UI.View)
		m.invokeHealthCheck()
	case EventUINavigate:
		payload, _ := evt.Payload.(NavigatePayload)
		m.navigate(payload.View)
	case EventUISubmitLogin:
		payload, _ := evt.Payload.(LoginPayload)
		m.submitLogin(payload.Draft)
	case EventUISubmitRegister:
		payload, _ := evt.Payload.(RegisterPayload)
		m.submitRegister(payload.Draft)
	case EventUISubmitAnalyze:
		payload, _ := evt.Payload.(AnalyzePayload)
		m.submitAnalyze(payload.Draft)
	case EventUILogout:
		m.logout()
	case EventUIExit:
		m.cancelRedirect()
		m.invokeCleanup()
	case EventSysLoginSuccess:
		m.onLoginSuccess()
	case EventSysLoginFailure:
		payload, _ := evt.Payload.(ResultPayload)
		m.failForm(FormLogin, payload, MsgLoginFailed)
	case EventSysRegisterSuccess:
		payload, _ := evt.Payload.(RegisterSuccessPayload)
		m.onRegisterSuccess(payload)
	case EventSysRegisterFailure:
		payload, _ := evt.Payload.(ResultPayload)
		m.failForm(FormRegister, payload, MsgRegistrationFailed)
	case EventSysAnalyzeSuccess:
		payload, _ := evt.Payload.(AnalyzeSuccessPayload)
		m.onAnalyzeSuccess(payload)
	case EventSysAnalyzeFailure:
		payload, _ := evt.Payload.(ResultPayload)
		m.failForm(FormAnalyze, payload, MsgAnalyzeFailed)
	case EventSysRedirect:
		m.onRedirect()
	case EventSysHealth:
		payload, _ := evt.Payload.(HealthPayload)
		m.ctx.UI.BackendOffline = !payload.Online
		if !payload.Online {
			m.logger.Infof("backend unreachable: %s", payload.TechnicalMessage)
		}
		m.refreshUI()
	default:
		m.logger.Debugf("ignored %s", evt.Type)
	}
}

// mount показывает экран. Защищённый экран один раз проверяет сессию при
// монтировании и без токена уступает место Login.
func (m *Machine) mount(view View) {
	if view == "" {
		view = ViewLanding
	}
	if view.Protected() && !m.isAuthenticated() {
		m.logger.Debugf("view %s requires session, redirecting to %s", view, ViewLogin)
		view = ViewLogin
	}
	prev := m.ctx.UI.View
	m.ctx.UI.View = view
	if prev != view {
		m.logger.Debugf("view %s → %s", prev, view)
	}
	if m.callbacks.ShowView != nil {
		m.callbacks.ShowView(m.ctx, view)
	}
	m.refreshUI()
}

func (m *Machine) navigate(target View) {
	if target == "" || target == m.ctx.UI.View {
		return
	}
	m.unmount(m.ctx.UI.View)
	m.mount(target)
}

// unmount сбрасывает черновики покидаемого экрана. Формы с запросом в полёте
// сохраняют Loading: результат будет применён, но навигации не вызовет.
func (m *Machine) unmount(view View) {
	switch view {
	case ViewLogin:
		m.ctx.LoginDraft = LoginDraft{}
		resetForm(&m.ctx.UI.Login)
	case ViewRegister:
		m.cancelRedirect()
		m.ctx.UI.RedirectPending = false
		m.ctx.RegisterDraft = RegistrationDraft{ResponseStyle: ResponseStyleProfessional}
		resetForm(&m.ctx.UI.Register)
	case ViewLanding:
		m.ctx.AnalysisDraft = AnalysisDraft{}
		m.ctx.UI.Analysis = ""
		resetForm(&m.ctx.UI.Analyze)
	}
}

func resetForm(form *FormState) {
	if form.Loading() {
		return
	}
	*form = FormState{Phase: PhaseIdle}
}

func (m *Machine) submitLogin(draft LoginDraft) {
	if m.ctx.UI.Login.Loading() {
		m.logger.Debugf("login already in progress")
		return
	}
	m.ctx.LoginDraft = draft
	valid, err := ValidateLogin(draft)
	if err != nil {
		m.rejectForm(FormLogin, err)
		return
	}
	m.startForm(FormLogin)
	if m.callbacks.StartLogin != nil {
		m.runAsync(func() { m.callbacks.StartLogin(valid) })
	}
}

func (m *Machine) submitRegister(draft RegistrationDraft) {
	if m.ctx.UI.Register.Loading() {
		m.logger.Debugf("registration already in progress")
		return
	}
	m.ctx.RegisterDraft = draft
	valid, err := ValidateRegistration(draft)
	if err != nil {
		m.rejectForm(FormRegister, err)
		return
	}
	m.cancelRedirect()
	m.ctx.UI.RedirectPending = false
	m.startForm(FormRegister)
	if m.callbacks.StartRegister != nil {
		m.runAsync(func() { m.callbacks.StartRegister(valid) })
	}
}

func (m *Machine) submitAnalyze(draft AnalysisDraft) {
	if m.ctx.UI.Analyze.Loading() {
		m.logger.Debugf("analysis already in progress")
		return
	}
	m.ctx.AnalysisDraft = draft
	valid, err := ValidateAnalysis(draft)
	if err != nil {
		m.rejectForm(FormAnalyze, err)
		return
	}
	m.ctx.UI.Analysis = ""
	m.startForm(FormAnalyze)
	if m.callbacks.StartAnalyze != nil {
		m.runAsync(func() { m.callbacks.StartAnalyze(valid) })
	}
}

func (m *Machine) startForm(form Form) {
	*m.ctx.UI.Form(form) = FormState{Phase: PhaseLoading}
	m.refreshUI()
}

func (m *Machine) rejectForm(form Form, err error) {
	message := err.Error()
	var verr *ValidationError
	if errors.As(err, &verr) {
		message = verr.Message
	}
	m.setError(form, &ErrorInfo{
		Kind:             ErrorKindValidation,
		UserMessage:      message,
		TechnicalMessage: err.Error(),
		OccurredAt:       time.Now(),
	})
}

func (m *Machine) failForm(form Form, payload ResultPayload, fallback string) {
	kind := payload.Kind
	if kind == "" {
		kind = ErrorKindUnknown
	}
	message := payload.Message
	if message == "" {
		message = fallback
	}
	technical := payload.TechnicalMessage
	if technical == "" {
		technical = string(form) + " failed"
	}
	m.logger.Infof("%s failed: kind=%s %s", form, kind, technical)
	m.setError(form, &ErrorInfo{
		Kind:             kind,
		UserMessage:      message,
		TechnicalMessage: technical,
		OccurredAt:       time.Now(),
	})
}

func (m *Machine) setError(form Form, info *ErrorInfo) {
	m.ctx.LastError = info
	*m.ctx.UI.Form(form) = FormState{Phase: PhaseError, Error: info}
	m.refreshUI()
}

func (m *Machine) onLoginSuccess() {
	m.ctx.UI.Login = FormState{Phase: PhaseSuccess}
	m.ctx.LoginDraft = LoginDraft{}
	m.ctx.LastError = nil
	if m.ctx.UI.View != ViewLogin {
		m.refreshUI()
		return
	}
	m.unmount(ViewLogin)
	m.mount(ViewLanding)
}

func (m *Machine) onRegisterSuccess(payload RegisterSuccessPayload) {
	m.ctx.UI.Register = FormState{Phase: PhaseSuccess, Message: payload.Message}
	m.ctx.RegisterDraft = RegistrationDraft{ResponseStyle: ResponseStyleProfessional}
	m.ctx.LastError = nil
	if m.ctx.UI.View == ViewRegister {
		m.ctx.UI.RedirectPending = true
		m.scheduleRedirect()
	}
	m.refreshUI()
}

func (m *Machine) onAnalyzeSuccess(payload AnalyzeSuccessPayload) {
	m.ctx.UI.Analyze = FormState{Phase: PhaseSuccess}
	m.ctx.AnalysisDraft = AnalysisDraft{}
	m.ctx.LastError = nil
	if m.ctx.UI.View == ViewLanding {
		m.ctx.UI.Analysis = payload.Analysis
	}
	m.refreshUI()
}

func (m *Machine) onRedirect() {
	m.redirectTimer = nil
	if !m.ctx.UI.RedirectPending {
		return
	}
	m.ctx.UI.RedirectPending = false
	if m.ctx.UI.View != ViewRegister {
		m.refreshUI()
		return
	}
	// Регистрация не выдаёт токен: без сессии переходим сразу на вход.
	target := ViewLanding
	if !m.isAuthenticated() {
		target = ViewLogin
	}
	m.navigate(target)
}

func (m *Machine) logout() {
	if m.callbacks.Logout != nil {
		m.callbacks.Logout()
	}
	m.ctx.LastError = nil
	m.logger.Infof("logged out")
	if m.ctx.UI.View == ViewLanding {
		m.unmount(ViewLanding)
		m.mount(ViewLanding)
		return
	}
	m.navigate(ViewLanding)
}

func (m *Machine) scheduleRedirect() {
	m.cancelRedirect()
	m.redirectTimer = time.AfterFunc(m.redirectDelay, func() {
		_ = m.Dispatch(Event{Type: EventSysRedirect})
	})
}

func (m *Machine) cancelRedirect() {
	if m.redirectTimer != nil {
		m.redirectTimer.Stop()
		m.redirectTimer = nil
	}
}

func (m *Machine) isAuthenticated() bool {
	if m.callbacks.IsAuthenticated == nil {
		return false
	}
	return m.callbacks.IsAuthenticated()
}

func (m *Machine) invokeHealthCheck() {
	if m.callbacks.StartHealthCheck != nil {
		m.runAsync(m.callbacks.StartHealthCheck)
	}
}

func (m *Machine) runAsync(fn func()) {
	if fn == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.logPanic("async task")
		fn()
	}()
}

func (m *Machine) logPanic(scope string) {
	if r := recover(); r != nil {
		m.logger.Errorf("panic in %s: %v\n%s", scope, r, debug.Stack())
		panic(r)
	}
}

func (m *Machine) invokeCleanup() {
	if m.callbacks.CleanupAndExit != nil {
		m.callbacks.CleanupAndExit(m.ctx)
		return
	}
	if !m.stopped.Load() {
		m.Stop()
	}
}

// refreshUI перечитывает признак сессии: шапка отражает IsAuthenticated на момент отрисовки.
func (m *Machine) refreshUI() {
	m.ctx.UI.Authenticated = m.isAuthenticated()
	if m.callbacks.UpdateUI != nil {
		m.callbacks.UpdateUI(m.ctx)
	}
}
