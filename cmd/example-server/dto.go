package main

import "time"

// LoginRequest represents the login request body.
type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// LoginResponse represents the login response.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// BusinessResponse is returned by registration.
type BusinessResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
	OwnerName      string `json:"owner_name"`
	BusinessType   string `json:"business_type"`
	Message        string `json:"message"`
}

// BusinessDTO is a business as listed by the read endpoints.
type BusinessDTO struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	WhatsAppNumber string     `json:"whatsapp_number"`
	OwnerName      string     `json:"owner_name,omitempty"`
	BusinessType   string     `json:"business_type"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// AnalyzeRequest represents the analyze request body.
type AnalyzeRequest struct {
	Name         *string `json:"name"`
	BusinessType *string `json:"business_type"`
	Text         string  `json:"text"`
}

// AnalyzeResponse represents the analyze response.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
}

// ErrorResponse carries a single message in detail.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationIssue is one entry of a field validation error list.
type ValidationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationErrorResponse lists field validation errors in detail.
type ValidationErrorResponse struct {
	Detail []ValidationIssue `json:"detail"`
}
