package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
)

// TokenKey задаёт фиксированный ключ, под которым токен хранится между запусками.
const TokenKey = "vidioagent_token"

// ErrStorageUnavailable возвращается хранилищем, которое сейчас нельзя использовать.
var ErrStorageUnavailable = errors.New("session: storage unavailable")

// Storage описывает долговременное хранилище строк по ключу.
// Load возвращает ("", nil), если значения нет.
type Storage interface {
	Load(key string) (string, error)
	Save(key, value string) error
	Remove(key string) error
}

// FileStorage хранит значения в JSON-объекте на диске.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage создаёт хранилище поверх файла path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path возвращает путь к файлу хранилища.
func (s *FileStorage) Path() string {
	return s.path
}

// Load читает значение по ключу; отсутствующий файл даёт пустую строку.
func (s *FileStorage) Load(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Save записывает значение; файл создаётся с правами 0600.
func (s *FileStorage) Save(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		// повреждённый файл перезаписываем целиком
		values = map[string]string{}
	}
	values[key] = value
	return s.write(values)
}

// Remove удаляет ключ. Отсутствующий ключ ошибкой не считается.
func (s *FileStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	if len(values) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return s.write(values)
}

func (s *FileStorage) read() (map[string]string, error) {
	if s.path == "" {
		return nil, ErrStorageUnavailable
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *FileStorage) write(values map[string]string) error {
	if s.path == "" {
		return ErrStorageUnavailable
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// PreferencesStorage хранит значения в настройках Fyne-приложения.
type PreferencesStorage struct {
	prefs fyne.Preferences
}

// NewPreferencesStorage оборачивает fyne.Preferences (обычно app.Preferences()).
func NewPreferencesStorage(prefs fyne.Preferences) *PreferencesStorage {
	return &PreferencesStorage{prefs: prefs}
}

func (s *PreferencesStorage) Load(key string) (string, error) {
	if s == nil || s.prefs == nil {
		return "", ErrStorageUnavailable
	}
	return s.prefs.String(key), nil
}

func (s *PreferencesStorage) Save(key, value string) error {
	if s == nil || s.prefs == nil {
		return ErrStorageUnavailable
	}
	s.prefs.SetString(key, value)
	return nil
}

func (s *PreferencesStorage) Remove(key string) error {
	if s == nil || s.prefs == nil {
		return ErrStorageUnavailable
	}
	s.prefs.RemoveValue(key)
	return nil
}

// MemoryStorage хранит токен только в памяти процесса.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStorage создаёт пустое хранилище в памяти.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Load(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *MemoryStorage) Save(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
