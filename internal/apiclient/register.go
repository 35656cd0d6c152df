package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

)

// File описывает загружаемый файл.
type File struct {
	Name string
	Data []byte
}

// Registration описывает multipart-запрос регистрации бизнеса.
type Registration struct {
	Name           string
	WhatsAppNumber string
	OwnerName      string
	BusinessType   string
	ResponseStyle  string
	Password       string
	VoiceSample    *File
	AvatarImage    *File
}

// ErrMissingFile возвращается, если не приложен один из обязательных файлов.
var ErrMissingFile = errors.New("voice sample and avatar image are required")

// Register вызывает POST /api/business/register. Оба файла обязательны: без них
// запрос не отправляется. Запрос отправляется без Authorization.
func (c *Client) Register(ctx context.Context, reg Registration) (RegistrationResult, error) {
	const op = "Register"
	if reg.VoiceSample == nil || len(reg.VoiceSample.Data) == 0 || reg.AvatarImage == nil || len(reg.AvatarImage.Data) == 0 {
		return RegistrationResult{}, &Error{Op: op, Kind: KindValidation, Message: "Please upload both voice sample and avatar image", Err: ErrMissingFile}
	}
	body, contentType, err := encodeRegistration(reg)
	if err != nil {
		return RegistrationResult{}, wrapError(op, KindUnknown, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, pathRegister, body, contentType, false)
	if err != nil {
		return RegistrationResult{}, wrapError(op, KindUnknown, err)
	}
	resp, err := c.send(req)
	if err != nil {
		return RegistrationResult{}, wrapError(op, KindNetwork, err)
	}
	defer resp.Body.Close()
	raw, err := readBody(resp)
	if err != nil {
		return RegistrationResult{}, wrapError(op, KindNetwork, err)
	}
	if !isSuccess(resp.StatusCode) {
		return RegistrationResult{}, statusError(op, resp.StatusCode, raw)
	}
	var out RegistrationResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return RegistrationResult{}, &Error{Op: op, Kind: KindUnknown, Status: resp.StatusCode, Err: err}
	}
	return out, nil
}

func encodeRegistration(reg Registration) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fields := []struct{ name, value string }{
		{"name", reg.Name},
		{"whatsapp_number", reg.WhatsAppNumber},
		{"owner_name", reg.OwnerName},
		{"business_type", reg.BusinessType},
		{"response_style", reg.ResponseStyle},
		{"password", reg.Password},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := writeFile(w, "voice_sample", reg.VoiceSample, "voice"); err != nil {
		return nil, "", err
	}
	if err := writeFile(w, "avatar_image", reg.AvatarImage, "avatar"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// writeFile добавляет файловую часть. Content-Type определяется по содержимому:
// бэкенд отклоняет голос не audio/* и аватар не image/*.
func writeFile(w *multipart.Writer, field string, file *File, fallbackName string) error {
	detected := mimetype.Detect(file.Data)
	name := filepath.Base(strings.TrimSpace(file.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = fallbackName + detected.Extension()
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
	header.Set("Content-Type", detected.String())
	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Data)
	return err
}
