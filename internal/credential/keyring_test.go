package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/otpmail/internal/model"
)

func TestVaultRoundTrip(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	if _, err := v.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() on empty vault = %v, want ErrNotFound", err)
	}

	want := model.Credential{Email: "me@outlook.com", ClientID: "client", RefreshToken: "refresh"}
	if err := v.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := v.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}

	if err := v.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := v.Delete(); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := v.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() after delete = %v, want ErrNotFound", err)
	}
}

func TestVaultRejectsCorruptItem(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring([]keyring.Item{
		{Key: credentialKey, Data: []byte("not json")},
	}))

	if _, err := v.Load(); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() = %v, want decode error", err)
	}
}
