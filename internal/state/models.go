package state

import (
	"time"
)

// ErrorKind описывает тип ошибки, отображаемой пользователю и используемой для логики состояния.
type ErrorKind string

const (
	ErrorKindValidation         ErrorKind = "Validation"
	ErrorKindNetworkUnavailable ErrorKind = "NetworkUnavailable"
	ErrorKindAuthFailed         ErrorKind = "AuthFailed"
	ErrorKindBackend            ErrorKind = "Backend"
	ErrorKindUnknown            ErrorKind = "Unknown"
)

// ErrorInfo описывает ошибку для UI и логов.
type ErrorInfo struct {
	Kind             ErrorKind
	UserMessage      string
	TechnicalMessage string
	OccurredAt       time.Time
}

// View идентифицирует экран клиента.
type View string

const (
	ViewLanding  View = "Landing"
	ViewLogin    View = "Login"
	ViewRegister View = "Register"
)

// Protected сообщает, требует ли экран авторизации при монтировании.
func (v View) Protected() bool {
	return v == ViewLanding
}

// Form идентифицирует форму с собственным жизненным циклом запроса.
type Form string

const (
	FormLogin    Form = "login"
	FormRegister Form = "register"
	FormAnalyze  Form = "analyze"
)

// Phase описывает фазу запроса формы: Idle → Loading → Success | Error.
type Phase string

const (
	PhaseIdle    Phase = "Idle"
	PhaseLoading Phase = "Loading"
	PhaseSuccess Phase = "Success"
	PhaseError   Phase = "Error"
)

// FormState хранит состояние одной формы.
type FormState struct {
	Phase   Phase
	Error   *ErrorInfo
	Message string
}

// Loading сообщает, что запрос формы ещё выполняется.
func (f FormState) Loading() bool {
	return f.Phase == PhaseLoading
}

// ErrorText возвращает сообщение об ошибке для отображения рядом с формой.
func (f FormState) ErrorText() string {
	if f.Phase != PhaseError || f.Error == nil {
		return ""
	}
	return f.Error.UserMessage
}

// LoginDraft содержит введённые пользователем учётные данные.
type LoginDraft struct {
	Phone    string
	Password string
}

// FileRef описывает выбранный пользователем файл, уже прочитанный в память.
type FileRef struct {
	Name string
	Data []byte
}

// Size возвращает размер файла в байтах.
func (f *FileRef) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// Response styles accepted by the backend.
const (
	ResponseStyleProfessional = "professional"
	ResponseStyleCasual       = "casual"
	ResponseStyleFriendly     = "friendly"
)

// ResponseStyles перечисляет стили ответа в порядке отображения.
var ResponseStyles = []string{ResponseStyleProfessional, ResponseStyleCasual, ResponseStyleFriendly}

// RegistrationDraft хранит черновик регистрации бизнеса.
type RegistrationDraft struct {
	Name           string
	WhatsAppNumber string
	OwnerName      string
	BusinessType   string
	ResponseStyle  string
	Password       string
	VoiceSample    *FileRef
	AvatarImage    *FileRef
}

// AnalysisDraft хранит черновик запроса анализа.
type AnalysisDraft struct {
	Name         string
	BusinessType string
	Text         string
}

// UIState хранит минимально необходимую информацию для управления UI.
type UIState struct {
	View            View
	Authenticated   bool
	BackendOffline  bool
	Login           FormState
	Register        FormState
	Analyze         FormState
	Analysis        string
	RedirectPending bool
}

// Form возвращает состояние указанной формы.
func (u *UIState) Form(form Form) *FormState {
	switch form {
	case FormLogin:
		return &u.Login
	case FormRegister:
		return &u.Register
	case FormAnalyze:
		return &u.Analyze
	default:
		return nil
	}
}

// AppContext содержит всё состояние клиента, которым владеет state machine.
type AppContext struct {
	UI            UIState
	LoginDraft    LoginDraft
	RegisterDraft RegistrationDraft
	AnalysisDraft AnalysisDraft
	LastError     *ErrorInfo
}

// NewAppContext создаёт AppContext в исходном состоянии.
func NewAppContext() *AppContext {
	ctx := &AppContext{}
	ctx.UI.Login.Phase = PhaseIdle
	ctx.UI.Register.Phase = PhaseIdle
	ctx.UI.Analyze.Phase = PhaseIdle
	ctx.RegisterDraft.ResponseStyle = ResponseStyleProfessional
	return ctx
}

// Snapshot возвращает копию UIState, безопасную для передачи в другую горутину.
func (ctx *AppContext) Snapshot() UIState {
	snap := ctx.UI
	snap.Login.Error = copyError(ctx.UI.Login.Error)
	snap.Register.Error = copyError(ctx.UI.Register.Error)
	snap.Analyze.Error = copyError(ctx.UI.Analyze.Error)
	return snap
}

func copyError(info *ErrorInfo) *ErrorInfo {
	if info == nil {
		return nil
	}
	cp := *info
	return &cp
}
