package ui

import (
	"fmt"
	"io"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"github.com/gidyola79/VidioAgent/internal/state"
)

// formControls объединяет кнопку отправки, текст ошибки и индикатор загрузки формы.
type formControls struct {
	submit   *widget.Button
	errLabel *widget.Label
	progress *widget.ProgressBarInfinite
}

func newFormControls(label string, onSubmit func()) formControls {
	submit := widget.NewButton(label, onSubmit)
	submit.Importance = widget.HighImportance
	errLabel := widget.NewLabel("")
	errLabel.Importance = widget.DangerImportance
	errLabel.Wrapping = fyne.TextWrapWord
	errLabel.Hide()
	progress := widget.NewProgressBarInfinite()
	progress.Stop()
	progress.Hide()
	return formControls{submit: submit, errLabel: errLabel, progress: progress}
}

// apply отражает фазу формы: кнопка отключена на время запроса.
func (f formControls) apply(form state.FormState) {
	if form.Loading() {
		f.submit.Disable()
		f.progress.Show()
		f.progress.Start()
	} else {
		f.submit.Enable()
		f.progress.Stop()
		f.progress.Hide()
	}
	if text := form.ErrorText(); text != "" {
		f.errLabel.SetText(text)
		f.errLabel.Show()
	} else {
		f.errLabel.SetText("")
		f.errLabel.Hide()
	}
}

func fieldLabel(text string) *widget.Label {
	return widget.NewLabelWithStyle(text, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
}

type loginView struct {
	root     fyne.CanvasObject
	phone    *widget.Entry
	password *widget.Entry
	formControls
}

func (m *Manager) newLoginView() *loginView {
	v := &loginView{}
	v.phone = widget.NewEntry()
	v.phone.SetPlaceHolder("+2348012345678")
	v.password = widget.NewPasswordEntry()
	v.password.SetPlaceHolder("Your account password")
	submit := func() {
		draft := state.LoginDraft{Phone: v.phone.Text, Password: v.password.Text}
		m.dispatchEvent(state.Event{Type: state.EventUISubmitLogin, Payload: state.LoginPayload{Draft: draft}, TS: time.Now()})
	}
	v.phone.OnSubmitted = func(string) { submit() }
	v.password.OnSubmitted = func(string) { submit() }
	v.formControls = newFormControls("Sign In", submit)

	toRegister := widget.NewButton("Don't have an account? Register", func() { m.navigate(state.ViewRegister) })
	toRegister.Importance = widget.LowImportance

	card := widget.NewCard("Sign In", "Access your business account", container.NewVBox(
		fieldLabel("WhatsApp Number"),
		v.phone,
		fieldLabel("Password"),
		v.password,
		v.errLabel,
		v.submit,
		v.progress,
		toRegister,
	))
	v.root = container.NewPadded(card)
	return v
}

func (v *loginView) apply(form state.FormState) {
	v.formControls.apply(form)
}

type registerView struct {
	root         *fyne.Container
	formBox      fyne.CanvasObject
	successBox   fyne.CanvasObject
	successText  *widget.Label
	name         *widget.Entry
	number       *widget.Entry
	owner        *widget.Entry
	password     *widget.Entry
	businessType *widget.Entry
	style        *widget.Select
	strength     *widget.ProgressBar
	strengthText string
	voice        *state.FileRef
	avatar       *state.FileRef
	voiceLabel   *widget.Label
	avatarLabel  *widget.Label
	formControls
}

func (m *Manager) newRegisterView() *registerView {
	v := &registerView{}
	v.name = widget.NewEntry()
	v.name.SetPlaceHolder("e.g., Ada's Bakery")
	v.number = widget.NewEntry()
	v.number.SetPlaceHolder("+234 801 234 5678")
	v.owner = widget.NewEntry()
	v.owner.SetPlaceHolder("Your name")
	v.password = widget.NewPasswordEntry()
	v.password.SetPlaceHolder("Choose a password (min 8 chars)")
	v.businessType = widget.NewEntry()
	v.businessType.SetPlaceHolder("e.g., Bakery, Salon, Restaurant")
	v.style = widget.NewSelect(state.ResponseStyles, nil)
	v.style.SetSelected(state.ResponseStyleProfessional)

	v.strength = widget.NewProgressBar()
	v.strength.TextFormatter = func() string { return v.strengthText }
	v.strength.Hide()
	v.password.OnChanged = v.updateStrength

	v.voiceLabel = widget.NewLabel("No file selected")
	v.avatarLabel = widget.NewLabel("No file selected")
	voiceBtn := widget.NewButton("Choose voice sample", func() {
		m.pickFile("audio/*", func(ref *state.FileRef) {
			v.voice = ref
			v.voiceLabel.SetText(describeFile(ref))
		})
	})
	avatarBtn := widget.NewButton("Choose avatar image", func() {
		m.pickFile("image/*", func(ref *state.FileRef) {
			v.avatar = ref
			v.avatarLabel.SetText(describeFile(ref))
		})
	})

	v.formControls = newFormControls("Register Business", func() {
		m.dispatchEvent(state.Event{Type: state.EventUISubmitRegister, Payload: state.RegisterPayload{Draft: v.draft()}, TS: time.Now()})
	})

	info := widget.NewCard("Business Information", "", container.NewVBox(
		fieldLabel("Business Name"), v.name,
		fieldLabel("WhatsApp Number"), v.number,
		fieldLabel("Owner Name"), v.owner,
		fieldLabel("Password"), v.password, v.strength,
		fieldLabel("Business Type"), v.businessType,
		fieldLabel("Response Style"), v.style,
	))
	media := widget.NewCard("Media Assets", "", container.NewVBox(
		fieldLabel("Voice Sample"), container.NewBorder(nil, nil, voiceBtn, nil, v.voiceLabel),
		fieldLabel("Avatar Image"), container.NewBorder(nil, nil, avatarBtn, nil, v.avatarLabel),
	))
	v.formBox = container.NewVBox(
		widget.NewLabelWithStyle("Register Your Business", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		info,
		media,
		v.errLabel,
		v.submit,
		v.progress,
	)

	v.successText = widget.NewLabel("")
	v.successText.Wrapping = fyne.TextWrapWord
	v.successBox = widget.NewCard("Registration Successful!", "", container.NewVBox(
		v.successText,
		widget.NewLabel("Redirecting to home..."),
	))
	v.successBox.Hide()
	v.root = container.NewVBox(v.formBox, v.successBox)
	return v
}

func (v *registerView) draft() state.RegistrationDraft {
	return state.RegistrationDraft{
		Name:           v.name.Text,
		WhatsAppNumber: v.number.Text,
		OwnerName:      v.owner.Text,
		BusinessType:   v.businessType.Text,
		ResponseStyle:  v.style.Selected,
		Password:       v.password.Text,
		VoiceSample:    v.voice,
		AvatarImage:    v.avatar,
	}
}

func (v *registerView) updateStrength(password string) {
	s := state.PasswordStrength(password)
	if password == "" {
		v.strength.Hide()
		return
	}
	v.strengthText = s.Label
	v.strength.SetValue(float64(s.Percent) / 100)
	v.strength.Show()
}

func (v *registerView) apply(form state.FormState, prev state.Phase) {
	v.formControls.apply(form)
	if form.Phase != state.PhaseSuccess {
		v.successBox.Hide()
		v.formBox.Show()
		return
	}
	if prev != state.PhaseSuccess {
		v.reset()
	}
	message := form.Message
	if message == "" {
		message = "Your business has been registered. You can now receive AI video responses on WhatsApp!"
	}
	v.successText.SetText(message)
	v.formBox.Hide()
	v.successBox.Show()
}

func (v *registerView) reset() {
	for _, e := range []*widget.Entry{v.name, v.number, v.owner, v.password, v.businessType} {
		e.SetText("")
	}
	v.style.SetSelected(state.ResponseStyleProfessional)
	v.voice, v.avatar = nil, nil
	v.voiceLabel.SetText("No file selected")
	v.avatarLabel.SetText("No file selected")
}

type landingView struct {
	root         fyne.CanvasObject
	name         *widget.Entry
	businessType *widget.Entry
	text         *widget.Entry
	result       *widget.Label
	formControls
}

func (m *Manager) newLandingView() *landingView {
	v := &landingView{}
	v.name = widget.NewEntry()
	v.name.SetPlaceHolder("Your name")
	v.businessType = widget.NewEntry()
	v.businessType.SetPlaceHolder("e.g., Bakery, Salon, Tech Startup")
	v.text = widget.NewMultiLineEntry()
	v.text.SetPlaceHolder("How can I get more customers for my business?")
	v.text.Wrapping = fyne.TextWrapWord
	v.text.SetMinRowsVisible(5)
	v.formControls = newFormControls("Analyze with AI", func() {
		draft := state.AnalysisDraft{Name: v.name.Text, BusinessType: v.businessType.Text, Text: v.text.Text}
		m.dispatchEvent(state.Event{Type: state.EventUISubmitAnalyze, Payload: state.AnalyzePayload{Draft: draft}, TS: time.Now()})
	})

	v.result = widget.NewLabel("No analysis yet. Enter your message and click \"Analyze with AI\" to get started.")
	v.result.Wrapping = fyne.TextWrapWord

	input := widget.NewCard("Get AI Analysis", "", container.NewVBox(
		fieldLabel("Name (optional)"), v.name,
		fieldLabel("Business Type (optional)"), v.businessType,
		fieldLabel("Your Message"), v.text,
		v.errLabel,
		v.submit,
		v.progress,
	))
	output := widget.NewCard("AI Analysis", "", v.result)
	v.root = container.NewVBox(input, output)
	return v
}

func (v *landingView) apply(form state.FormState, analysis string, prev state.Phase) {
	v.formControls.apply(form)
	if form.Phase == state.PhaseSuccess && prev != state.PhaseSuccess {
		v.text.SetText("")
	}
	switch {
	case analysis != "":
		v.result.SetText(analysis)
	case form.Loading():
		v.result.SetText("Analyzing...")
	default:
		v.result.SetText("No analysis yet. Enter your message and click \"Analyze with AI\" to get started.")
	}
}

// pickFile открывает диалог выбора файла с фильтром по MIME-типу и читает файл целиком.
func (m *Manager) pickFile(mimeType string, onPicked func(*state.FileRef)) {
	if m.win == nil {
		return
	}
	picker := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, m.win)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			m.logger.Errorf("read %s: %v", reader.URI().Name(), err)
			dialog.ShowError(err, m.win)
			return
		}
		onPicked(&state.FileRef{Name: reader.URI().Name(), Data: data})
	}, m.win)
	picker.SetFilter(storage.NewMimeTypeFileFilter([]string{mimeType}))
	picker.Show()
}

func describeFile(ref *state.FileRef) string {
	if ref == nil {
		return "No file selected"
	}
	return fmt.Sprintf("%s (%s)", ref.Name, humanSize(ref.Size()))
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
