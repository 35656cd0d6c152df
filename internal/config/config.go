package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigFailed обозначает любую проблему с чтением или разбором config.yaml.
var ErrConfigFailed = errors.New("config: failed to load")

const (
	// EnvAPIURL переопределяет адрес бэкенда при старте.
	EnvAPIURL = "VIDIOAGENT_API_URL"
	// EnvLogLevel переопределяет уровень логирования.
	EnvLogLevel = "VIDIOAGENT_LOG_LEVEL"

	DefaultAPIBaseURL     = "http://localhost:8000"
	DefaultRequestTimeout = 30 * time.Second
	DefaultRedirectDelay  = 3 * time.Second
)

// Session backends.
const (
	SessionBackendFile        = "file"
	SessionBackendPreferences = "preferences"
	SessionBackendMemory      = "memory"
)

// Config описывает пользовательские настройки клиента и вычисляемые пути.
type Config struct {
	APIBaseURL     string        `yaml:"api_base_url"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Session        SessionConfig `yaml:"session"`
	UI             UIConfig      `yaml:"ui"`

	AppDir string `yaml:"-"`
}

// SessionConfig задаёт, где хранится токен между запусками.
type SessionConfig struct {
	Backend string `yaml:"backend"`
	File    string `yaml:"file"`
}

// UIConfig содержит параметры поведения окон.
type UIConfig struct {
	RedirectDelay time.Duration `yaml:"redirect_delay"`
}

// Error содержит дополнительный контекст при неудачной загрузке конфигурации.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ErrConfigFailed.Error()
	}
	return fmt.Sprintf("%v: %s: %v", ErrConfigFailed, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is позволяет проверять любую ошибку конфигурации через errors.Is(err, ErrConfigFailed).
func (e *Error) Is(target error) bool {
	return target == ErrConfigFailed
}

// DetectAppDir возвращает каталог, в котором находится исполняемый файл.
func DetectAppDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("detect executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exePath)
	if err == nil {
		exePath = resolved
	}
	return filepath.Dir(exePath), nil
}

// DefaultPath возвращает путь к config.yaml относительно каталога приложения.
func DefaultPath(appDir string) string {
	return filepath.Join(appDir, "config.yaml")
}

// Default возвращает конфигурацию, которая используется без config.yaml.
func Default(appDir string) *Config {
	cfg := &Config{AppDir: appDir}
	cfg.applyDefaults()
	cfg.applyAppDir()
	return cfg
}

// Override изменяет конфигурацию после чтения файла и переменных окружения,
// но до проверки значений.
type Override func(*Config)

// WithAPIBaseURL задаёт адрес бэкенда из командной строки. Пустое значение игнорируется.
func WithAPIBaseURL(baseURL string) Override {
	return func(c *Config) {
		if strings.TrimSpace(baseURL) != "" {
			c.APIBaseURL = baseURL
		}
	}
}

// Load читает YAML конфигурации (если файл существует), применяет переменные окружения,
// overrides и appDir ко всем относительным путям.
func Load(path string, appDir string, overrides ...Override) (*Config, error) {
	if appDir == "" {
		return nil, &Error{Path: path, Err: errors.New("app directory is empty")}
	}
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// без файла работаем на значениях по умолчанию
		case err != nil:
			return nil, &Error{Path: path, Err: err}
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, &Error{Path: path, Err: err}
			}
		}
	}
	cfg.AppDir = appDir
	cfg.applyEnv()
	for _, override := range overrides {
		if override != nil {
			override(&cfg)
		}
	}
	cfg.applyDefaults()
	cfg.applyAppDir()
	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if err := cfg.ensureDirectories(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv(EnvAPIURL); ok && strings.TrimSpace(value) != "" {
		c.APIBaseURL = value
	}
	if value, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(value) != "" {
		c.LogLevel = value
	}
}

func (c *Config) applyDefaults() {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	c.LogLevel = normalizeLogLevel(c.LogLevel)
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	c.Session.Backend = strings.TrimSpace(strings.ToLower(c.Session.Backend))
	if c.Session.Backend == "" {
		c.Session.Backend = SessionBackendFile
	}
	if c.Session.File == "" {
		c.Session.File = filepath.Join("data", "session.json")
	}
	if c.UI.RedirectDelay <= 0 {
		c.UI.RedirectDelay = DefaultRedirectDelay
	}
}

func (c *Config) applyAppDir() {
	if c.AppDir == "" {
		return
	}
	c.AppDir = filepath.Clean(c.AppDir)
	c.LogFile = makeAbsolute(c.LogFile, c.AppDir)
	c.Session.File = makeAbsolute(c.Session.File, c.AppDir)
}

func (c *Config) validate() error {
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("api_base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api_base_url must be http or https, got %q", c.APIBaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api_base_url has no host: %q", c.APIBaseURL)
	}
	if _, ok := allowedLevels[c.LogLevel]; !ok {
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}
	if _, ok := allowedBackends[c.Session.Backend]; !ok {
		return fmt.Errorf("unsupported session.backend %q", c.Session.Backend)
	}
	return nil
}

func (c *Config) ensureDirectories() error {
	var dirs []string
	if c.LogFile != "" {
		dirs = append(dirs, filepath.Dir(c.LogFile))
	}
	if c.Session.Backend == SessionBackendFile {
		dirs = append(dirs, filepath.Dir(c.Session.File))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func makeAbsolute(path string, base string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if base == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func normalizeLogLevel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "info"
	}
	return value
}

var allowedLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"error": {},
}

var allowedBackends = map[string]struct{}{
	SessionBackendFile:        {},
	SessionBackendPreferences: {},
	SessionBackendMemory:      {},
}
