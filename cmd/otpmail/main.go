package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"go.uber.org/zap"

	"github.com/nhle/otpmail/internal/logger"
	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/oauth"
	"github.com/nhle/otpmail/internal/retrieval"
	"github.com/nhle/otpmail/internal/source/email"
	"github.com/nhle/otpmail/internal/store"
	"github.com/nhle/otpmail/internal/theme"
)

const usage = `otpmail retrieves one-time verification codes from an Outlook mailbox.

Usage:
  otpmail [-config path] <command> [flags]

Commands:
  serve     run the HTTP service
  login     save a mailbox credential to the system keyring
  logout    remove the saved credential
  wait      wait for the next code to arrive
  list      list the codes currently in the mailbox
  history   show recent retrievals from the audit log

Run "otpmail <command> -h" for command flags.
`

// env carries what every command needs.
type env struct {
	cfg    *model.AppConfig
	cfgDir string
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("otpmail: "+err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("otpmail", flag.ContinueOnError)
	cfgPath := global.String("config", model.DefaultConfigPath(), "config file path")
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	e := &env{
		cfg:    cfg,
		cfgDir: filepath.Dir(*cfgPath),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cmd func(context.Context, *env, []string) error
	switch name := global.Arg(0); name {
	case "serve":
		cmd = runServe
	case "login":
		cmd = runLogin
	case "logout":
		cmd = runLogout
	case "wait":
		cmd = runWait
	case "list":
		cmd = runList
	case "history":
		cmd = runHistory
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	err = cmd(ctx, e, global.Args()[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// cliLogger keeps interactive output clean unless verbose is set.
func cliLogger(cfg model.LogConfig, verbose bool) (*zap.Logger, error) {
	if verbose {
		return logger.New("debug", true)
	}
	return logger.New("error", cfg.Development)
}

func newExchanger(cfg model.OAuthConfig) *oauth.Exchanger {
	return oauth.NewExchanger(cfg.TokenURL, &http.Client{Timeout: seconds(cfg.HTTPTimeoutSec)})
}

func newService(cfg *model.AppConfig, log *zap.Logger, opts ...retrieval.Option) (*retrieval.Service, error) {
	var imapOpts []email.Option
	if cfg.IMAP.Debug {
		imapOpts = append(imapOpts, email.WithDebug(os.Stderr))
	}
	src := email.NewIMAPClient(cfg.IMAP.Host, cfg.IMAP.Port, seconds(cfg.IMAP.DialTimeoutSec), imapOpts...)

	svc, err := retrieval.NewService(newExchanger(cfg.OAuth), src, cfg.Scan, cfg.Limits, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("configuring retrieval: %w", err)
	}
	return svc, nil
}

// openAudit opens the audit store when auditing is enabled. The returned
// close function is always safe to call.
func openAudit(cfg model.AuditConfig) ([]retrieval.Option, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	st, err := store.NewSQLiteStore(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit log: %w", err)
	}
	return []retrieval.Option{retrieval.WithAudit(st)}, func() { _ = st.Close() }, nil
}
