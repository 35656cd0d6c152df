package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gidyola79/VidioAgent/internal/apiclient"
	"github.com/gidyola79/VidioAgent/internal/state"
)

const (
	healthTimeout = 5 * time.Second

	msgRegisterError = "Failed to register business"
	msgLoginTimeout  = "The server did not respond in time"
)

func (a *Application) startLogin(draft state.LoginDraft) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(a.cfg.RequestTimeout)
	defer cancel()
	token, err := a.api.Login(ctx, draft.Phone, draft.Password)
	if err != nil {
		a.logger.Errorf("login request failed: %v", err)
		a.dispatch(state.Event{Type: state.EventSysLoginFailure, Payload: buildLoginFailurePayload(err)})
		return
	}
	a.session.SetToken(token)
	a.logger.Infof("login succeeded, token length %d", len(token))
	a.dispatch(state.Event{Type: state.EventSysLoginSuccess})
}

func (a *Application) startRegister(draft state.RegistrationDraft) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(a.cfg.RequestTimeout)
	defer cancel()
	result, err := a.api.Register(ctx, registrationFromDraft(draft))
	if err != nil {
		a.logger.Errorf("registration request failed: %v", err)
		a.dispatch(state.Event{Type: state.EventSysRegisterFailure, Payload: buildRegisterFailurePayload(err)})
		return
	}
	a.logger.Infof("business %d registered", result.ID)
	a.dispatch(state.Event{Type: state.EventSysRegisterSuccess, Payload: state.RegisterSuccessPayload{Message: result.Message}})
}

func (a *Application) startAnalyze(draft state.AnalysisDraft) {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(a.cfg.RequestTimeout)
	defer cancel()
	req := apiclient.AnalyzeRequest{
		Name:         apiclient.OptionalString(draft.Name),
		BusinessType: apiclient.OptionalString(draft.BusinessType),
		Text:         draft.Text,
	}
	resp, err := a.api.Analyze(ctx, req)
	if err != nil {
		a.logger.Errorf("analyze request failed: %v", err)
		a.dispatch(state.Event{Type: state.EventSysAnalyzeFailure, Payload: buildAnalyzeFailurePayload(err)})
		return
	}
	a.logger.Debugf("analysis received, %d bytes", len(resp.Analysis))
	a.dispatch(state.Event{Type: state.EventSysAnalyzeSuccess, Payload: state.AnalyzeSuccessPayload{Analysis: resp.Analysis}})
}

func (a *Application) startHealthCheck() {
	if a.isStopping() {
		return
	}
	ctx, cancel := a.requestContext(healthTimeout)
	defer cancel()
	payload := state.HealthPayload{Online: true}
	if err := a.api.CheckHealth(ctx); err != nil {
		payload = state.HealthPayload{Online: false, TechnicalMessage: err.Error()}
	}
	a.dispatch(state.Event{Type: state.EventSysHealth, Payload: payload})
}

func registrationFromDraft(draft state.RegistrationDraft) apiclient.Registration {
	return apiclient.Registration{
		Name:           draft.Name,
		WhatsAppNumber: draft.WhatsAppNumber,
		OwnerName:      draft.OwnerName,
		BusinessType:   draft.BusinessType,
		ResponseStyle:  draft.ResponseStyle,
		Password:       draft.Password,
		VoiceSample:    fileFromRef(draft.VoiceSample),
		AvatarImage:    fileFromRef(draft.AvatarImage),
	}
}

func fileFromRef(ref *state.FileRef) *apiclient.File {
	if ref == nil {
		return nil
	}
	return &apiclient.File{Name: ref.Name, Data: ref.Data}
}

// buildFailurePayload переводит ошибку API-клиента в полезную нагрузку SYS_*_FAILURE.
// detail бэкенда показывается как есть. Ответ без detail получает statusFallback,
// сетевые и прочие ошибки получают fallback.
func buildFailurePayload(err error, statusFallback, fallback string) state.ResultPayload {
	payload := state.ResultPayload{
		Kind:    state.ErrorKindUnknown,
		Message: fallback,
	}
	if err == nil {
		return payload
	}
	payload.TechnicalMessage = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		payload.Kind = state.ErrorKindNetworkUnavailable
		return payload
	}
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		return payload
	}
	payload.Kind = errorKindFromAPI(apiErr.Kind)
	switch {
	case apiErr.Kind == apiclient.KindNetwork:
	case strings.TrimSpace(apiErr.Message) != "":
		payload.Message = apiErr.Message
	case apiErr.Status > 0:
		payload.Message = statusFallback
	}
	return payload
}

func errorKindFromAPI(kind apiclient.ErrorKind) state.ErrorKind {
	switch kind {
	case apiclient.KindValidation:
		return state.ErrorKindValidation
	case apiclient.KindNetwork:
		return state.ErrorKindNetworkUnavailable
	case apiclient.KindAuth:
		return state.ErrorKindAuthFailed
	case apiclient.KindBackend:
		return state.ErrorKindBackend
	default:
		return state.ErrorKindUnknown
	}
}

func buildLoginFailurePayload(err error) state.ResultPayload {
	payload := buildFailurePayload(err, state.MsgLoginFailed, state.MsgLoginFailed)
	if errors.Is(err, context.DeadlineExceeded) {
		payload.Message = msgLoginTimeout
	}
	return payload
}

func buildRegisterFailurePayload(err error) state.ResultPayload {
	return buildFailurePayload(err, state.MsgRegistrationFailed, msgRegisterError)
}

// buildAnalyzeFailurePayload всегда показывает общее сообщение; detail остаётся в
// техническом сообщении и логах.
func buildAnalyzeFailurePayload(err error) state.ResultPayload {
	payload := buildFailurePayload(err, state.MsgAnalyzeFailed, state.MsgAnalyzeFailed)
	payload.Message = state.MsgAnalyzeFailed
	return payload
}

func (a *Application) requestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = healthTimeout
	}
	parent := context.Background()
	if a != nil && a.runCtx != nil {
		parent = a.runCtx
	}
	return context.WithTimeout(parent, timeout)
}

func (a *Application) isStopping() bool {
	if a == nil || a.runCtx == nil {
		return false
	}
	select {
	case <-a.runCtx.Done():
		return true
	default:
		return false
	}
}
