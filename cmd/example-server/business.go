package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
)

const (
	defaultResponseStyle = "professional"
	defaultListLimit     = 10
	minPasswordLength    = 8
)

// registerHandler handles POST /api/business/register
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadMB << 20); err != nil {
		s.logger.Errorf("failed to parse registration form: %v", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Upload is too large")
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var missing []ValidationIssue
	field := func(name string) string {
		value := r.FormValue(name)
		if value == "" {
			missing = append(missing, missingField("body", name))
		}
		return value
	}
	name := field("name")
	number := field("whatsapp_number")
	owner := field("owner_name")
	businessType := field("business_type")
	password := field("password")
	voice, voiceHeader := formFile(r, "voice_sample", &missing)
	avatar, avatarHeader := formFile(r, "avatar_image", &missing)
	if len(missing) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{Detail: missing})
		return
	}
	style := r.FormValue("response_style")
	if style == "" {
		style = defaultResponseStyle
	}

	number = validateWhatsAppNumber(number)
	if number == "+" {
		writeDetail(w, http.StatusBadRequest, "Invalid WhatsApp number format: no digits")
		return
	}
	if _, exists := s.store.FindByNumber(number); exists {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Business with WhatsApp number %s already registered", number))
		return
	}

	voiceUpload, voiceType, err := inspectUpload(voice, voiceHeader)
	if err != nil {
		s.logger.Errorf("read voice sample: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to save files: "+err.Error())
		return
	}
	if !strings.HasPrefix(voiceType, "audio/") {
		writeDetail(w, http.StatusBadRequest, "Voice sample must be an audio file")
		return
	}
	avatarUpload, avatarType, err := inspectUpload(avatar, avatarHeader)
	if err != nil {
		s.logger.Errorf("read avatar image: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to save files: "+err.Error())
		return
	}
	if !strings.HasPrefix(avatarType, "image/") {
		writeDetail(w, http.StatusBadRequest, "Avatar must be an image file")
		return
	}
	if len(password) < minPasswordLength {
		writeDetail(w, http.StatusBadRequest, "Password must be at least 8 characters long")
		return
	}

	hash, err := hashPassword(password)
	if err != nil {
		s.logger.Errorf("hash password: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to register business")
		return
	}
	business, err := s.store.CreateBusiness(Business{
		Name:           name,
		WhatsAppNumber: number,
		OwnerName:      owner,
		BusinessType:   businessType,
		ResponseStyle:  style,
		PasswordHash:   hash,
		VoiceSample:    voiceUpload,
		AvatarImage:    avatarUpload,
	})
	if errors.Is(err, errDuplicateNumber) {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Business with WhatsApp number %s already registered", number))
		return
	}
	if err != nil {
		s.logger.Errorf("create business: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to register business")
		return
	}

	s.logger.Infof("registered business %d (%s), voice %s %dB, avatar %s %dB",
		business.ID, business.WhatsAppNumber, voiceUpload.ContentType, voiceUpload.Size, avatarUpload.ContentType, avatarUpload.Size)
	writeJSON(w, http.StatusOK, BusinessResponse{
		ID:             business.ID,
		Name:           business.Name,
		WhatsAppNumber: business.WhatsAppNumber,
		OwnerName:      business.OwnerName,
		BusinessType:   business.BusinessType,
		Message:        fmt.Sprintf("Business '%s' registered successfully! You can now receive AI video responses on %s", business.Name, business.WhatsAppNumber),
	})
}

// getBusinessHandler handles GET /api/businesses/{id}
func (s *Server) getBusinessHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid business id")
		return
	}
	business, err := s.store.Get(id)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Business not found")
		return
	}
	dto := toBusinessDTO(business)
	dto.OwnerName = business.OwnerName
	dto.CreatedAt = &business.CreatedAt
	writeJSON(w, http.StatusOK, dto)
}

// listBusinessesHandler handles GET /api/businesses?skip=&limit=
func (s *Server) listBusinessesHandler(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
		return
	}
	businesses := s.store.List(skip, limit)
	out := make([]BusinessDTO, 0, len(businesses))
	for _, b := range businesses {
		out = append(out, toBusinessDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func toBusinessDTO(b Business) BusinessDTO {
	return BusinessDTO{
		ID:             b.ID,
		Name:           b.Name,
		WhatsAppNumber: b.WhatsAppNumber,
		BusinessType:   b.BusinessType,
		IsActive:       b.IsActive,
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func formFile(r *http.Request, name string, missing *[]ValidationIssue) (multipart.File, *multipart.FileHeader) {
	file, header, err := r.FormFile(name)
	if err != nil {
		*missing = append(*missing, missingField("body", name))
		return nil, nil
	}
	return file, header
}

// inspectUpload reads the part and sniffs its type. The declared Content-Type is
// used when sniffing yields neither audio nor image.
func inspectUpload(file multipart.File, header *multipart.FileHeader) (Upload, string, error) {
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return Upload{}, "", err
	}
	detected := mimetype.Detect(data).String()
	declared := header.Header.Get("Content-Type")
	contentType := detected
	if !strings.HasPrefix(detected, "audio/") && !strings.HasPrefix(detected, "image/") && declared != "" {
		contentType = declared
	}
	return Upload{Filename: header.Filename, ContentType: contentType, Size: len(data)}, contentType, nil
}
