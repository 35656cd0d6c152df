package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"
)

const msgInvalidCredentials = "Invalid credentials"

// loginHandler handles POST /api/auth/login
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Errorf("failed to decode login request: %v", err)
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	var missing []ValidationIssue
	if req.Phone == "" {
		missing = append(missing, missingField("body", "phone"))
	}
	if req.Password == "" {
		missing = append(missing, missingField("body", "password"))
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{Detail: missing})
		return
	}

	phone := normalizePhone(req.Phone)
	business, ok := s.store.FindByNumber(phone)
	if !ok || !checkPassword(business.PasswordHash, req.Password) {
		s.logger.Infof("login rejected for %s", phone)
		writeDetail(w, http.StatusBadRequest, msgInvalidCredentials)
		return
	}

	token := s.store.IssueToken(business.ID)
	s.logger.Infof("business %d logged in", business.ID)
	writeJSON(w, http.StatusOK, LoginResponse{AccessToken: token.Value, TokenType: "bearer"})
}

// normalizePhone converts a login phone to +<digits>, dropping a whatsapp: prefix.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:"))
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + digitsOnly(phone)
}

// validateWhatsAppNumber converts a registration number to international format.
// Ten digits, or eleven with a leading zero, are treated as Nigerian numbers.
func validateWhatsAppNumber(number string) string {
	digits := digitsOnly(number)
	switch {
	case len(digits) == 10:
		return "+234" + digits
	case len(digits) == 11 && digits[0] == '0':
		return "+234" + digits[1:]
	default:
		return "+" + digits
	}
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
