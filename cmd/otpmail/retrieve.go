package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/retrieval"
	"github.com/nhle/otpmail/internal/store"
	"github.com/nhle/otpmail/internal/ui"
)

// errNoCode is returned by wait when the deadline passes without a code.
var errNoCode = errors.New("no verification code arrived before the deadline")

const (
	formatText = "text"
	formatCode = "code"
	formatJSON = "json"
)

func checkFormat(f string) error {
	switch f {
	case formatText, formatCode, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, code or json)", f)
}

func runWait(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("wait", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	timeout := fs.Int("timeout", 0, "seconds to wait; 0 uses the configured default")
	interval := fs.Int("interval", 0, "seconds between scans; 0 uses the configured default")
	perFolder := fs.Int("max-per-folder", 0, "newest messages to scan per folder; 0 uses the default")
	format := fs.String("format", formatText, "output format: text, code or json")
	verbose := fs.Bool("v", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	cred, err := savedCredential(e)
	if err != nil {
		return err
	}
	log, err := cliLogger(e.cfg.Log, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts, closeAudit, err := openAudit(e.cfg.Audit)
	if err != nil {
		return err
	}
	defer closeAudit()

	svc, err := newService(e.cfg, log, opts...)
	if err != nil {
		return err
	}

	req := retrieval.PollRequest{
		Credential:      cred,
		TimeoutSeconds:  *timeout,
		IntervalSeconds: *interval,
		MaxPerFolder:    *perFolder,
	}
	poll := func(ctx context.Context, onState retrieval.StateFunc) (*model.Match, error) {
		r := req
		r.OnState = onState
		return svc.WaitForCode(ctx, r)
	}

	var match *model.Match
	if *verbose {
		match, err = poll(ctx, nil)
	} else {
		match, err = ui.RunWait(ctx, e.stderr, cred.Email, e.cfg.Limits.Timeout(*timeout), poll)
	}
	if err != nil {
		return err
	}
	if match == nil {
		return errNoCode
	}

	switch *format {
	case formatJSON:
		return writeJSON(e.stdout, match)
	case formatCode:
		fmt.Fprintln(e.stdout, match.Code)
	default:
		fmt.Fprintln(e.stdout, ui.RenderMatch(*match, time.Now()))
	}
	return nil
}

func runList(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	perFolder := fs.Int("max-per-folder", 0, "newest messages to scan per folder; 0 uses the default")
	format := fs.String("format", formatText, "output format: text, code or json")
	verbose := fs.Bool("v", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	cred, err := savedCredential(e)
	if err != nil {
		return err
	}
	log, err := cliLogger(e.cfg.Log, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts, closeAudit, err := openAudit(e.cfg.Audit)
	if err != nil {
		return err
	}
	defer closeAudit()

	svc, err := newService(e.cfg, log, opts...)
	if err != nil {
		return err
	}

	matches, err := svc.ListCodes(ctx, retrieval.ListRequest{Credential: cred, MaxPerFolder: *perFolder})
	if err != nil {
		return err
	}

	switch *format {
	case formatJSON:
		return writeJSON(e.stdout, matches)
	case formatCode:
		for _, m := range matches {
			fmt.Fprintln(e.stdout, m.Code)
		}
	default:
		fmt.Fprintln(e.stdout, ui.RenderMatches(matches, time.Now()))
	}
	return nil
}

func runHistory(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	limit := fs.Int("limit", store.DefaultHistoryLimit, "number of records to show")
	mailbox := fs.String("email", "", "only show this mailbox")
	mode := fs.String("mode", "", "only show poll or list retrievals")
	outcome := fs.String("outcome", "", "only show found, not_found, listed or error")
	asJSON := fs.Bool("json", false, "print records as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(e.cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer func() { _ = st.Close() }()

	records, err := st.RecentRetrievals(ctx, store.HistoryFilter{
		Email:   *mailbox,
		Mode:    model.RetrievalMode(*mode),
		Outcome: *outcome,
		Limit:   *limit,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(e.stdout, records)
	}
	fmt.Fprintln(e.stdout, ui.RenderHistory(records, time.Now()))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
