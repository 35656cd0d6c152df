package session

import (
	"sync"

	"github.com/gidyola79/VidioAgent/internal/logging"
)

// Phase описывает жизненный цикл сессии.
type Phase string

const (
	PhaseUninitialized Phase = "Uninitialized"
	PhaseLoaded        Phase = "Loaded"
	PhaseActive        Phase = "Active"
	PhaseCleared       Phase = "Cleared"
)

// Store владеет bearer-токеном: хранит активное значение в памяти и дублирует его в Storage.
// Ошибки хранилища не возвращаются вызывающему: после первой ошибки Store до конца
// процесса работает только с памятью.
type Store struct {
	storage Storage
	logger  *logging.Logger

	mu       sync.RWMutex
	token    string
	phase    Phase
	degraded bool

	restoreOnce sync.Once
}

// New создаёт Store поверх storage. nil storage означает работу только в памяти.
func New(storage Storage, logger *logging.Logger) *Store {
	s := &Store{storage: storage, logger: logger, phase: PhaseUninitialized}
	if storage == nil {
		s.degraded = true
	}
	return s
}

// Restore однократно загружает сохранённый токен в активный слот.
// Повторные вызовы ничего не делают.
func (s *Store) Restore() {
	s.restoreOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.phase != PhaseUninitialized {
			return
		}
		s.phase = PhaseLoaded
		if s.degraded {
			return
		}
		token, err := s.storage.Load(TokenKey)
		if err != nil {
			s.degradeLocked("load", err)
			return
		}
		if token == "" {
			s.logger.Debugf("no stored session")
			return
		}
		s.token = token
		s.phase = PhaseActive
		s.logger.Infof("session restored (token length %d)", len(token))
	})
}

// SetToken делает token активным и сохраняет его. Пустая строка очищает сессию
// и удаляет сохранённое значение.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		s.clearLocked()
		return
	}
	s.token = token
	s.phase = PhaseActive
	if s.degraded {
		return
	}
	if err := s.storage.Save(TokenKey, token); err != nil {
		s.degradeLocked("save", err)
		return
	}
	s.logger.Debugf("session stored (token length %d)", len(token))
}

// Token возвращает текущий токен и признак его наличия.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	if s.degraded {
		token := s.token
		s.mu.RUnlock()
		return token, token != ""
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return s.token, s.token != ""
	}
	token, err := s.storage.Load(TokenKey)
	if err != nil {
		s.degradeLocked("load", err)
		return s.token, s.token != ""
	}
	return token, token != ""
}

// IsAuthenticated сообщает, есть ли токен. Подпись и срок действия не проверяются.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// Logout эквивалентен SetToken("").
func (s *Store) Logout() {
	s.SetToken("")
}

// Phase возвращает текущую фазу жизненного цикла.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Degraded сообщает, что персистентность отключена до конца процесса.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *Store) clearLocked() {
	s.token = ""
	s.phase = PhaseCleared
	if s.degraded {
		return
	}
	if err := s.storage.Remove(TokenKey); err != nil {
		s.degradeLocked("remove", err)
		return
	}
	s.logger.Debugf("session cleared")
}

func (s *Store) degradeLocked(op string, err error) {
	s.degraded = true
	s.logger.Debugf("session storage %s failed, keeping token in memory only: %v", op, err)
}
