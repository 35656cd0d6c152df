package main

import "time"

// Business represents a registered business.
type Business struct {
	ID             int64
	Name           string
	WhatsAppNumber string
	OwnerName      string
	BusinessType   string
	ResponseStyle  string
	PasswordHash   []byte
	VoiceSample    Upload
	AvatarImage    Upload
	IsActive       bool
	CreatedAt      time.Time
}

// Upload describes a stored media file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int
}

// AuthToken represents an issued access token.
type AuthToken struct {
	Value      string
	BusinessID int64
	IssuedAt   time.Time
}
