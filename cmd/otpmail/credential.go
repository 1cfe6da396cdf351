package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/nhle/otpmail/internal/credential"
	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/ui"
)

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	verify := fs.Bool("verify", true, "exchange the refresh token once before saving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	vault, err := credential.Open(e.cfgDir)
	if err != nil {
		return err
	}

	prev, err := vault.Load()
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		return err
	}

	cred, err := ui.NewLoginForm(prev).Run()
	if err != nil {
		return err
	}

	if *verify {
		if _, err := newExchanger(e.cfg.OAuth).Exchange(ctx, cred.ClientID, cred.RefreshToken); err != nil {
			return fmt.Errorf("verifying credential: %w", err)
		}
	}

	if err := vault.Save(cred); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Saved credential for %s\n", cred.Email)
	return nil
}

func runLogout(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	vault, err := credential.Open(e.cfgDir)
	if err != nil {
		return err
	}
	if err := vault.Delete(); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Removed saved credential")
	return nil
}

// savedCredential loads the credential written by login.
func savedCredential(e *env) (model.Credential, error) {
	vault, err := credential.Open(e.cfgDir)
	if err != nil {
		return model.Credential{}, err
	}
	return vault.Load()
}
