package state

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinPasswordLength задаёт минимальную длину пароля при регистрации.
const MinPasswordLength = 8

// ValidationError описывает локальную ошибку формы, обнаруженная до обращения к сети.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation failed"
	}
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NormalizeText приводит ввод к NFC и обрезает пробелы по краям.
func NormalizeText(value string) string {
	return strings.TrimSpace(norm.NFC.String(value))
}

// ValidateLogin проверяет, что телефон и пароль заполнены.
func ValidateLogin(draft LoginDraft) (LoginDraft, error) {
	phone := NormalizeText(draft.Phone)
	if phone == "" || draft.Password == "" {
		return draft, &ValidationError{Message: "Please provide both phone number and password"}
	}
	return LoginDraft{Phone: phone, Password: draft.Password}, nil
}

// ValidateRegistration проверяет черновик регистрации и возвращает нормализованную копию.
// Пароль не нормализуется.
func ValidateRegistration(draft RegistrationDraft) (RegistrationDraft, error) {
	out := draft
	out.Name = NormalizeText(draft.Name)
	out.WhatsAppNumber = NormalizeText(draft.WhatsAppNumber)
	out.OwnerName = NormalizeText(draft.OwnerName)
	out.BusinessType = NormalizeText(draft.BusinessType)
	out.ResponseStyle = strings.ToLower(strings.TrimSpace(draft.ResponseStyle))

	required := []struct {
		field, label, value string
	}{
		{"name", "Business name", out.Name},
		{"whatsapp_number", "WhatsApp number", out.WhatsAppNumber},
		{"owner_name", "Owner name", out.OwnerName},
		{"business_type", "Business type", out.BusinessType},
	}
	for _, item := range required {
		if item.value == "" {
			return draft, &ValidationError{Field: item.field, Message: item.label + " is required"}
		}
	}
	if out.VoiceSample.Size() == 0 || out.AvatarImage.Size() == 0 {
		return draft, &ValidationError{Field: "files", Message: "Please upload both voice sample and avatar image"}
	}
	if utf8.RuneCountInString(out.Password) < MinPasswordLength {
		return draft, &ValidationError{Field: "password", Message: fmt.Sprintf("Please provide a password (minimum %d characters)", MinPasswordLength)}
	}
	if out.ResponseStyle == "" {
		out.ResponseStyle = ResponseStyleProfessional
	}
	if !isResponseStyle(out.ResponseStyle) {
		return draft, &ValidationError{Field: "response_style", Message: fmt.Sprintf("Unknown response style %q", draft.ResponseStyle)}
	}
	return out, nil
}

// ValidateAnalysis требует непустой текст; имя и тип бизнеса передаются как есть.
func ValidateAnalysis(draft AnalysisDraft) (AnalysisDraft, error) {
	text := strings.TrimSpace(draft.Text)
	if text == "" {
		return draft, &ValidationError{Field: "text", Message: "Please enter some text to analyze"}
	}
	return AnalysisDraft{Name: draft.Name, BusinessType: draft.BusinessType, Text: text}, nil
}

func isResponseStyle(value string) bool {
	for _, style := range ResponseStyles {
		if style == value {
			return true
		}
	}
	return false
}

// Strength содержит косметическую оценку пароля для индикатора.
type Strength struct {
	Score   int
	Percent int
	Label   string
}

// PasswordStrength считает по одному баллу за длину, заглавную букву, цифру и символ.
// На возможность отправки формы не влияет.
func PasswordStrength(password string) Strength {
	if password == "" {
		return Strength{}
	}
	score := 0
	if utf8.RuneCountInString(password) >= MinPasswordLength {
		score++
	}
	var upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r < 'a' || r > 'z':
			symbol = true
		}
	}
	for _, ok := range []bool{upper, digit, symbol} {
		if ok {
			score++
		}
	}
	label := "Strong"
	switch {
	case score <= 1:
		label = "Weak"
	case score == 2:
		label = "Fair"
	case score == 3:
		label = "Good"
	}
	return Strength{Score: score, Percent: score * 100 / 4, Label: label}
}
