package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"commvault-ops/src/config"
	"commvault-ops/src/cvapi"
	"commvault-ops/src/dispatch"
	"commvault-ops/src/entities"
	"commvault-ops/src/invocation"
	"commvault-ops/src/safety"
	"commvault-ops/src/session"
	"commvault-ops/src/util/progress"
)

// errFailed marks an invocation whose failure record was already written.
var errFailed = errors.New("invocation failed")

type connectorFunc func(cfg config.Config, logger *slog.Logger) cvapi.Connector

var newConnectorFn connectorFunc = restConnector

func restConnector(cfg config.Config, logger *slog.Logger) cvapi.Connector {
	c := cvapi.NewRESTConnector(logger, cfg.HTTPTimeout, cfg.InsecureSkipVerify)
	c.Endpoint = cfg.Endpoint
	c.RateLimit = cfg.RateLimit
	return c
}

// SetConnectorForTest replaces the CommCell connector used by every command.
// The returned function restores the previous one.
func SetConnectorForTest(c cvapi.Connector) func() {
	prev := newConnectorFn
	newConnectorFn = func(config.Config, *slog.Logger) cvapi.Connector { return c }
	return func() { newConnectorFn = prev }
}

// app is everything one command invocation needs.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	connector cvapi.Connector
	safety    safety.Options
	format    string
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(getString(cmd, "env-file"))
	if err != nil {
		return nil, err
	}
	level := getString(cmd, "log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	format := getString(cmd, "log-format")
	if format == "" {
		format = cfg.LogFormat
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return nil, err
	}
	logger = logger.With("invocation_id", uuid.NewString())
	return &app{
		cfg:       cfg,
		logger:    logger,
		connector: newConnectorFn(cfg, logger),
		safety:    getSafetyOptions(cmd),
		format:    getString(cmd, "format"),
		stdin:     cmd.InOrStdin(),
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
	}, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q (use text or json)", format)
	}
}

// execute answers one invocation record. Every failure becomes a failure
// record.
func (a *app) execute(ctx context.Context, in invocation.Input, interactive bool) invocation.Record {
	rec, err := a.answer(ctx, in, interactive)
	if err != nil {
		a.logger.Error("invocation failed", "operation", in.Operation, "entity_type", in.EntityType, "error", err)
		return invocation.FailureRecord(err)
	}
	return rec
}

func (a *app) answer(ctx context.Context, in invocation.Input, interactive bool) (invocation.Record, error) {
	creds, err := in.Credentials()
	if err != nil {
		return nil, err
	}
	if in.IsLogin() {
		info, _, err := a.login(ctx, creds)
		if err != nil {
			return nil, err
		}
		return invocation.LoginRecord(info), nil
	}

	_, s, err := a.login(ctx, creds)
	if err != nil {
		return nil, err
	}
	names, err := in.Names()
	if err != nil {
		return nil, &dispatch.ValidationError{Err: err}
	}
	ents, err := entities.Resolve(ctx, a.logger, s, names)
	if err != nil {
		return nil, err
	}

	opts := dispatch.Options{
		DryRun:   in.CheckMode || a.safety.DryRun,
		Progress: progress.NewPrinter(a.stderr, nil).Update,
	}
	if interactive && !a.safety.Yes {
		opts.Confirm = safety.Prompter(a.safety, a.stdin, a.stderr)
	}
	res, err := dispatch.New(a.logger, opts).Dispatch(ctx, ents, dispatch.Request{
		EntityType: in.EntityType,
		Operation:  in.Operation,
		Args:       in.Args,
	})
	if err != nil {
		return nil, err
	}
	return invocation.ResultRecord(res), nil
}

// login fills missing credentials from the environment, then restores a
// token session or authenticates with username and password.
func (a *app) login(ctx context.Context, creds cvapi.Credentials) (session.Info, cvapi.Session, error) {
	creds = session.FillFrom(creds, a.cfg.Credentials)
	if creds.AuthToken != "" {
		info := session.Info{AuthToken: creds.AuthToken, WebconsoleHostname: creds.Hostname}
		s, err := session.Restore(ctx, a.connector, info)
		if err != nil {
			return session.Info{}, nil, err
		}
		return info, s, nil
	}
	return session.Login(ctx, a.connector, creds)
}

// emit writes rec and reports errFailed for a failure record.
func (a *app) emit(rec invocation.Record) error {
	if err := invocation.Write(a.stdout, rec, a.format); err != nil {
		return err
	}
	if rec.Failed() {
		return errFailed
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
