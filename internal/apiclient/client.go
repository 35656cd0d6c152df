package apiclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"github.com/gidyola79/VidioAgent/internal/logging"
)

// TokenSource отдаёт текущий bearer-токен. Реализуется session.Store.
type TokenSource interface {
	Token() (string, bool)
}

// Client инкапсулирует HTTP-взаимодействия с бэкендом VidioAgent.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    TokenSource
	logger     *logging.Logger
}

// Options позволяет переопределить зависимости клиента.
type Options struct {
	HTTPClient *http.Client
	Session    TokenSource
	Logger     *logging.Logger
	Timeout    time.Duration
}

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 4 << 20

	pathLogin    = "/api/auth/login"
	pathRegister = "/api/business/register"
	pathAnalyze  = "/api/analyze"
	pathHealth   = "/health"

	// RequestIDHeader несёт идентификатор запроса для сопоставления с логами бэкенда.
	RequestIDHeader = "X-Request-ID"
)

// ErrorKind классифицирует ошибку запроса. Сообщения для пользователя подбирает
// вызывающая сторона.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNetwork    ErrorKind = "network"
	KindAuth       ErrorKind = "auth"
	KindBackend    ErrorKind = "backend"
	KindUnknown    ErrorKind = "unknown"
)

// New создаёт новый клиент бэкенда.
func New(baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: parsed, httpClient: client, session: opts.Session, logger: opts.Logger}, nil
}

// BaseURL возвращает адрес бэкенда.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Error описывает проблему при запросах к бэкенду.
type Error struct {
	Op      string
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "api client error"
	}
	switch {
	case e.Err != nil && e.Status > 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	case e.Status > 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Analyze вызывает POST /api/analyze с bearer-токеном текущей сессии.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	const op = "Analyze"
	if strings.TrimSpace(req.Text) == "" {
		return AnalyzeResponse{}, &Error{Op: op, Kind: KindValidation, Message: "text is required"}
	}
	resp, err := c.doJSON(ctx, http.MethodPost, pathAnalyze, true, req)
	if err != nil {
		return AnalyzeResponse{}, wrapError(op, KindNetwork, err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp)
	if err != nil {
		return AnalyzeResponse{}, wrapError(op, KindNetwork, err)
	}
	if !isSuccess(resp.StatusCode) {
		return AnalyzeResponse{}, statusError(op, resp.StatusCode, body)
	}
	var out AnalyzeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return AnalyzeResponse{}, &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Err: err}
	}
	return out, nil
}

// Login вызывает POST /api/auth/login и возвращает access_token.
// Запрос отправляется без Authorization.
func (c *Client) Login(ctx context.Context, phone, password string) (string, error) {
	const op = "Login"
	payload := LoginRequest{Phone: phone, Password: password}
	resp, err := c.doJSON(ctx, http.MethodPost, pathLogin, false, payload)
	if err != nil {
		return "", wrapError(op, KindNetwork, err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp)
	if err != nil {
		return "", wrapError(op, KindNetwork, err)
	}
	if !isSuccess(resp.StatusCode) {
		return "", statusError(op, resp.StatusCode, body)
	}
	var out LoginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Err: err}
	}
	if out.AccessToken == "" {
		return "", &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Err: errors.New("empty access token")}
	}
	return out.AccessToken, nil
}

// CheckHealth выполняет GET /health и ожидает {"status": "ok"}.
func (c *Client) CheckHealth(ctx context.Context) error {
	const op = "CheckHealth"
	req, err := c.newRequest(ctx, http.MethodGet, pathHealth, nil, "", false)
	if err != nil {
		return wrapError(op, KindUnknown, err)
	}
	resp, err := c.send(req)
	if err != nil {
		return wrapError(op, KindNetwork, err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp)
	if err != nil {
		return wrapError(op, KindNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{Op: op, Kind: KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || !strings.EqualFold(payload.Status, "ok") {
		return &Error{Op: op, Kind: KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("unexpected body %q", string(body))}
	}
	return nil
}

// newRequest собирает запрос. Токен читается из сессии в момент сборки, поэтому
// SetToken/Logout влияют уже на следующий запрос.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string, withAuth bool) (*http.Request, error) {
	// JoinPath сохраняет префикс пути из базового адреса (например, /backend за reverse proxy).
	full := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, full.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")
	req.Header.Set(RequestIDHeader, newRequestID())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if withAuth && c.session != nil {
		if token, ok := c.session.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debugf("%s %s failed after %s: %v", req.Method, req.URL.Path, time.Since(started), err)
		return nil, err
	}
	c.logger.Debugf("%s %s -> %d in %s (request %s)", req.Method, req.URL.Path, resp.StatusCode, time.Since(started), req.Header.Get(RequestIDHeader))
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, withAuth bool, payload any) (*http.Response, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, path, buf, "application/json", withAuth)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// readBody читает тело ответа с учётом Content-Encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(io.LimitReader(reader, maxBodySize))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// statusError строит ошибку для не-2xx ответа. Message содержит detail бэкенда
// или пуст, если detail разобрать не удалось.
func statusError(op string, status int, body []byte) error {
	kind := KindBackend
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuth
	}
	return &Error{Op: op, Kind: kind, Status: status, Message: parseDetail(body)}
}

func wrapError(op string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
