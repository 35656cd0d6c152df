package ui

import (
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/gidyola79/VidioAgent/internal/logging"
	"github.com/gidyola79/VidioAgent/internal/state"
)

// Options описывает параметры инициализации UI Manager.
type Options struct {
	AppID    string
	AppName  string
	Logger   *logging.Logger
	Dispatch func(state.Event) error
	// App позволяет передать готовое Fyne-приложение (например, test.NewTempApp).
	App fyne.App
}

// Manager управляет окном Fyne и связывает его со state machine.
type Manager struct {
	app       fyne.App
	appName   string
	logger    *logging.Logger
	dispatch  func(state.Event) error
	win       fyne.Window
	content   *fyne.Container
	banner    *widget.Label
	signInBtn *widget.Button
	signUpBtn *widget.Button
	logoutBtn *widget.Button
	view      state.View
	login     *loginView
	register  *registerView
	landing   *landingView
	last      state.UIState
	onStopped func()
	updateCh  chan state.UIState
	stopCh    chan struct{}
	runOnce   sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewManager создаёт UI Manager и главное окно.
func NewManager(opts Options) *Manager {
	appID := strings.TrimSpace(opts.AppID)
	if appID == "" {
		appID = "com.vidioagent.client"
	}
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = "VidioAgent"
	}
	fyneApp := opts.App
	if fyneApp == nil {
		fyneApp = fyneapp.NewWithID(appID)
	}
	fyneApp.Settings().SetTheme(newVidioTheme())
	m := &Manager{
		app:      fyneApp,
		appName:  name,
		logger:   opts.Logger,
		dispatch: opts.Dispatch,
		updateCh: make(chan state.UIState, 16),
		stopCh:   make(chan struct{}),
	}
	fyneApp.Lifecycle().SetOnStopped(func() {
		if m.onStopped != nil {
			m.onStopped()
		}
	})
	m.buildWindow()
	return m
}

// SetOnStopped регистрирует обработчик завершения цикла Fyne.
func (m *Manager) SetOnStopped(fn func()) {
	m.onStopped = fn
}

// Preferences возвращает настройки Fyne-приложения; используются как хранилище сессии.
func (m *Manager) Preferences() fyne.Preferences {
	if m.app == nil {
		return nil
	}
	return m.app.Preferences()
}

// Start запускает фоновую goroutine применения снимков состояния.
func (m *Manager) Start() {
	m.runOnce.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.processUpdates()
		}()
	})
}

// RunMainLoop блокирует текущую горутину до завершения цикла Fyne.
func (m *Manager) RunMainLoop() {
	if m.app == nil {
		return
	}
	m.win.Show()
	m.app.Run()
}

// Quit завершает цикл Fyne.
func (m *Manager) Quit() {
	m.callOnUI(func() {
		if m.app != nil {
			m.app.Quit()
		}
	})
}

// Shutdown останавливает обновления и закрывает окно.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.callOnUI(func() {
			if m.win != nil {
				m.win.Close()
			}
			if m.app != nil {
				m.app.Quit()
			}
		})
	})
}

// WaitAsync ждёт завершения фоновых UI goroutine.
func (m *Manager) WaitAsync(timeout time.Duration) bool {
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

// ShowView заменяет содержимое окна экраном view. Виджеты создаются заново,
// поэтому введённые ранее данные не переносятся.
func (m *Manager) ShowView(_ *state.AppContext, view state.View) {
	m.callOnUI(func() {
		m.mountView(view)
	})
}

// UpdateUI передаёт снимок состояния UI в безопасную для Fyne goroutine.
func (m *Manager) UpdateUI(ctx *state.AppContext) {
	if ctx == nil {
		return
	}
	snap := ctx.Snapshot()
	select {
	case <-m.stopCh:
		return
	case m.updateCh <- snap:
	default:
		select {
		case <-m.updateCh:
		default:
		}
		m.updateCh <- snap
	}
}

func (m *Manager) processUpdates() {
	for {
		select {
		case <-m.stopCh:
			return
		case snap := <-m.updateCh:
			m.callOnUI(func() { m.applySnapshot(snap) })
		}
	}
}

func (m *Manager) mountView(view state.View) {
	m.view = view
	m.login, m.register, m.landing = nil, nil, nil
	var body fyne.CanvasObject
	switch view {
	case state.ViewLogin:
		m.login = m.newLoginView()
		body = m.login.root
	case state.ViewRegister:
		m.register = m.newRegisterView()
		body = m.register.root
	default:
		m.landing = m.newLandingView()
		body = m.landing.root
	}
	if m.content != nil {
		m.content.Objects = []fyne.CanvasObject{container.NewVScroll(body)}
		m.content.Refresh()
	}
	if m.login != nil && m.win != nil {
		if c := m.win.Canvas(); c != nil {
			c.Focus(m.login.phone)
		}
	}
}

// applySnapshot выполняется в UI goroutine.
func (m *Manager) applySnapshot(snap state.UIState) {
	prev := m.last
	m.last = snap
	m.updateHeader(snap)
	if snap.View != m.view {
		return
	}
	switch {
	case m.login != nil:
		m.login.apply(snap.Login)
	case m.register != nil:
		m.register.apply(snap.Register, prev.Register.Phase)
	case m.landing != nil:
		m.landing.apply(snap.Analyze, snap.Analysis, prev.Analyze.Phase)
	}
}

func (m *Manager) updateHeader(snap state.UIState) {
	if snap.Authenticated {
		m.signInBtn.Hide()
		m.signUpBtn.Hide()
		m.logoutBtn.Show()
	} else {
		m.logoutBtn.Hide()
		m.signInBtn.Show()
		m.signUpBtn.Show()
	}
	if snap.BackendOffline {
		m.banner.Show()
	} else {
		m.banner.Hide()
	}
}

func (m *Manager) buildWindow() {
	if m.app == nil {
		return
	}
	win := m.app.NewWindow(m.appName)
	win.Resize(fyne.NewSize(720, 760))
	win.CenterOnScreen()

	title := widget.NewLabelWithStyle(m.appName, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	title.SizeName = theme.SizeNameHeadingText
	subtitle := widget.NewLabel("AI Customer Relations")

	m.signInBtn = widget.NewButton("Sign In", func() { m.navigate(state.ViewLogin) })
	m.signInBtn.Importance = widget.HighImportance
	m.signUpBtn = widget.NewButton("Register", func() { m.navigate(state.ViewRegister) })
	m.logoutBtn = widget.NewButton("Logout", func() { m.sendSimpleEvent(state.EventUILogout) })
	m.logoutBtn.Importance = widget.DangerImportance
	m.logoutBtn.Hide()

	home := widget.NewButton("Home", func() { m.navigate(state.ViewLanding) })
	home.Importance = widget.LowImportance

	m.banner = widget.NewLabel("Backend is unreachable. Please ensure the backend is running.")
	m.banner.Importance = widget.WarningImportance
	m.banner.Wrapping = fyne.TextWrapWord
	m.banner.Hide()

	header := container.NewVBox(
		container.NewHBox(container.NewVBox(title, subtitle), layout.NewSpacer(), home, m.signInBtn, m.signUpBtn, m.logoutBtn),
		m.banner,
		widget.NewSeparator(),
	)
	m.content = container.NewStack()
	win.SetContent(container.NewPadded(container.NewBorder(header, nil, nil, nil, m.content)))
	win.SetCloseIntercept(func() {
		m.sendSimpleEvent(state.EventUIExit)
	})
	m.win = win
}

func (m *Manager) navigate(view state.View) {
	m.dispatchEvent(state.Event{Type: state.EventUINavigate, Payload: state.NavigatePayload{View: view}, TS: time.Now()})
}

func (m *Manager) sendSimpleEvent(t state.EventType) {
	m.dispatchEvent(state.Event{Type: t, TS: time.Now()})
}

func (m *Manager) dispatchEvent(evt state.Event) {
	if m.dispatch == nil {
		return
	}
	if err := m.dispatch(evt); err != nil {
		m.logger.Errorf("ui dispatch %s failed: %v", evt.Type, err)
	}
}

func (m *Manager) callOnUI(fn func()) {
	if m.app == nil || fn == nil {
		return
	}
	if drv := m.app.Driver(); drv != nil {
		drv.DoFromGoroutine(fn, true)
		return
	}
	fn()
}
