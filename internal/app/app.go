package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fyne.io/fyne/v2"

	"github.com/gidyola79/VidioAgent/internal/apiclient"
	"github.com/gidyola79/VidioAgent/internal/config"
	"github.com/gidyola79/VidioAgent/internal/logging"
	"github.com/gidyola79/VidioAgent/internal/session"
	"github.com/gidyola79/VidioAgent/internal/state"
	"github.com/gidyola79/VidioAgent/internal/ui"
)

const (
	appID   = "com.vidioagent.client"
	appName = "VidioAgent"
)

// Presenter описывает часть UI, которой управляет state machine.
type Presenter interface {
	Start()
	ShowView(ctx *state.AppContext, view state.View)
	UpdateUI(ctx *state.AppContext)
	RunMainLoop()
	Quit()
	Shutdown()
	WaitAsync(timeout time.Duration) bool
}

// Options позволяет подменить UI, хранилище сессии и HTTP-клиент.
type Options struct {
	Presenter  Presenter
	Storage    session.Storage
	HTTPClient *http.Client
}

// Application связывает state machine, сессию, API-клиент и UI.
type Application struct {
	cfg         *config.Config
	logger      *logging.Logger
	session     *session.Store
	api         *apiclient.Client
	machine     *state.Machine
	ctx         *state.AppContext
	ui          Presenter
	cleanupOnce sync.Once
	shutdown    chan struct{}
	runCtx      context.Context
	runCancel   context.CancelFunc
	stopOnce    sync.Once
}

// New создаёт Application и настраивает state machine callbacks.
func New(cfg *config.Config, logger *logging.Logger, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	runCtx, runCancel := context.WithCancel(logging.WithContext(context.Background(), logger))
	app := &Application{
		cfg:       cfg,
		logger:    logger,
		ctx:       state.NewAppContext(),
		shutdown:  make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}

	presenter := opts.Presenter
	var prefs fyne.Preferences
	if presenter == nil {
		manager := ui.NewManager(ui.Options{
			AppID:    appID,
			AppName:  appName,
			Logger:   logger.Named("ui"),
			Dispatch: app.dispatch,
		})
		manager.SetOnStopped(app.onAppStopped)
		prefs = manager.Preferences()
		presenter = manager
	}
	app.ui = presenter

	storage := opts.Storage
	if storage == nil {
		var err error
		storage, err = newStorage(cfg, prefs)
		if err != nil {
			runCancel()
			return nil, err
		}
	}
	app.session = session.New(storage, logger.Named("session"))
	app.session.Restore()

	client, err := apiclient.New(cfg.APIBaseURL, apiclient.Options{
		HTTPClient: opts.HTTPClient,
		Session:    app.session,
		Logger:     logger.Named("api"),
		Timeout:    cfg.RequestTimeout,
	})
	if err != nil {
		runCancel()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	app.api = client

	callbacks := state.Callbacks{
		IsAuthenticated:  app.session.IsAuthenticated,
		Logout:           app.session.Logout,
		StartLogin:       app.startLogin,
		StartRegister:    app.startRegister,
		StartAnalyze:     app.startAnalyze,
		StartHealthCheck: app.startHealthCheck,
		ShowView:         presenter.ShowView,
		UpdateUI:         presenter.UpdateUI,
		CleanupAndExit:   app.cleanupAndExit,
	}
	app.machine = state.NewMachine(app.ctx, logger, callbacks, cfg.UI.RedirectDelay)
	return app, nil
}

// newStorage выбирает хранилище токена по session.backend.
func newStorage(cfg *config.Config, prefs fyne.Preferences) (session.Storage, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		return session.NewMemoryStorage(), nil
	case config.SessionBackendPreferences:
		if prefs == nil {
			return nil, fmt.Errorf("session backend %q requires the desktop UI", cfg.Session.Backend)
		}
		return session.NewPreferencesStorage(prefs), nil
	default:
		return session.NewFileStorage(cfg.Session.File), nil
	}
}

// Session возвращает хранилище сессии приложения.
func (a *Application) Session() *session.Store {
	return a.session
}

// Run запускает state machine и монтирует стартовый экран.
func (a *Application) Run() error {
	if a.machine == nil {
		return fmt.Errorf("machine is not initialized")
	}
	a.logger.Infof("starting, backend %s, session phase %s", a.api.BaseURL(), a.session.Phase())
	if a.ui != nil {
		a.ui.Start()
	}
	a.machine.Start()
	return a.dispatch(state.Event{Type: state.EventUILaunch, TS: time.Now()})
}

// RunUILoop запускает главный цикл Fyne и блокирует вызывающую горутину до выхода.
func (a *Application) RunUILoop() {
	if a.ui == nil {
		return
	}
	a.ui.RunMainLoop()
}

// Stop останавливает state machine и UI.
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		if a.runCancel != nil {
			a.runCancel()
		}
		if a.ui != nil {
			a.ui.Shutdown()
			if !a.ui.WaitAsync(3 * time.Second) {
				a.logger.Errorf("ui background tasks did not finish before timeout")
			}
		}
		if a.machine != nil {
			a.machine.Stop()
			if !a.machine.WaitAsync(3 * time.Second) {
				a.logger.Errorf("state machine background tasks did not finish before timeout")
			}
		}
		close(a.shutdown)
	})
}

func (a *Application) dispatch(evt state.Event) error {
	if err := a.machine.Dispatch(evt); err != nil {
		a.logger.Errorf("dispatch %s failed: %v", evt.Type, err)
		return err
	}
	return nil
}

// Done возвращает канал, закрывающийся после полной остановки приложения.
func (a *Application) Done() <-chan struct{} {
	return a.shutdown
}

func (a *Application) cleanupAndExit(_ *state.AppContext) {
	a.logger.Infof("state machine requested shutdown")
	a.cleanupOnce.Do(a.runExitCleanup)
	if a.ui != nil {
		a.ui.Quit()
	}
	a.Stop()
}

func (a *Application) onAppStopped() {
	a.cleanupOnce.Do(a.runExitCleanup)
}

// runExitCleanup фиксирует состояние сессии при выходе. Токен остаётся в
// хранилище до явного Logout.
func (a *Application) runExitCleanup() {
	if a.session == nil {
		return
	}
	a.logger.Infof("exit: session phase %s, authenticated %v", a.session.Phase(), a.session.IsAuthenticated())
	if a.session.Degraded() {
		a.logger.Errorf("exit: session storage was unavailable, token was kept in memory only")
	}
}
