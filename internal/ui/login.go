package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/otpmail/internal/model"
)

// LoginForm collects the mailbox credential. Fields start from the
// previously saved credential, if any.
type LoginForm struct {
	form *huh.Form
	cred model.Credential
}

// NewLoginForm builds the form around prev.
func NewLoginForm(prev model.Credential) *LoginForm {
	f := &LoginForm{cred: prev}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Description("Outlook or Office 365 mailbox address").
				Placeholder("someone@outlook.com").
				Value(&f.cred.Email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Client ID").
				Description("Application (client) ID of the Entra app registration").
				Value(&f.cred.ClientID).
				Validate(validateRequired("Client ID")),
			huh.NewInput().
				Title("Refresh Token").
				Description("Refresh token granted with IMAP.AccessAsUser.All and offline_access").
				EchoMode(huh.EchoModePassword).
				Value(&f.cred.RefreshToken).
				Validate(validateRequired("Refresh token")),
		),
	).WithWidth(72)

	return f
}

// Run shows the form and returns the entered credential. Aborting the
// form returns huh.ErrUserAborted.
func (f *LoginForm) Run() (model.Credential, error) {
	if err := f.form.Run(); err != nil {
		return model.Credential{}, err
	}
	return f.Credential(), nil
}

// Credential returns the trimmed form values.
func (f *LoginForm) Credential() model.Credential {
	return model.Credential{
		Email:        strings.TrimSpace(f.cred.Email),
		ClientID:     strings.TrimSpace(f.cred.ClientID),
		RefreshToken: strings.TrimSpace(f.cred.RefreshToken),
	}
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("%q is not a bare email address", s)
	}
	return nil
}
