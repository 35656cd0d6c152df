package apiclient

import (
	"encoding/json"
	"strings"
)

// AnalyzeRequest описывает тело POST /api/analyze. Необязательные поля
// не сериализуются, если равны nil.
type AnalyzeRequest struct {
	Name         *string `json:"name,omitempty"`
	BusinessType *string `json:"business_type,omitempty"`
	Text         string  `json:"text"`
}

// AnalyzeResponse содержит ответ модели.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
}

// LoginRequest описывает тело POST /api/auth/login.
type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// LoginResponse содержит выданный бэкендом токен.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// RegistrationResult соответствует ответу POST /api/business/register.
type RegistrationResult struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
	OwnerName      string `json:"owner_name"`
	BusinessType   string `json:"business_type"`
	Message        string `json:"message"`
}

// errorBody описывает тело ошибки бэкенда. detail бывает строкой или списком
// ошибок валидации вида [{"loc": [...], "msg": "..."}].
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Msg string `json:"msg"`
}

// parseDetail достаёт человекочитаемое сообщение из тела ошибки.
func parseDetail(body []byte) string {
	var payload errorBody
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var issues []validationIssue
	if err := json.Unmarshal(payload.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if msg := strings.TrimSpace(issue.Msg); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// OptionalString возвращает nil для пустой строки.
func OptionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
