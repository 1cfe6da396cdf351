package main

import (
	"context"
	"flag"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/otpmail/internal/httpserver"
	"github.com/nhle/otpmail/internal/logger"
)

func runServe(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	addr := fs.String("addr", e.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	e.cfg.Server.Addr = *addr

	log, err := logger.New(e.cfg.Log.Level, e.cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if !e.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	opts, closeAudit, err := openAudit(e.cfg.Audit)
	if err != nil {
		return err
	}
	defer closeAudit()

	svc, err := newService(e.cfg, log, opts...)
	if err != nil {
		return err
	}

	log.Info("otpmail starting",
		zap.String("imap", e.cfg.IMAP.Addr()),
		zap.Strings("mailboxes", e.cfg.Scan.Mailboxes),
		zap.Bool("audit", e.cfg.Audit.Enabled),
	)

	router := httpserver.NewRouter(httpserver.NewHandler(svc, log), log, e.cfg.Server.MaxBodyBytes)
	return httpserver.NewServer(e.cfg.Server, router, log).Run(ctx)
}
