package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gestionlocal/cuenta"
	"github.com/gestionlocal/cuenta/metrics/export/prometheus"
)

type options struct {
	apiURL      string
	sessionFile string
	redisAddr   string
	profile     string
	verbose     bool
	auditLog    string
	metricsFile string
}

// app is built once per invocation by the root PersistentPreRunE.
type app struct {
	client  *cuenta.Client
	in      *bufio.Reader
	out     io.Writer
	cleanup []func()
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// ask prints label and reads one trimmed line.
func (a *app) ask(label string) (string, error) {
	fmt.Fprint(a.out, label+": ")
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) confirm(label string) (bool, error) {
	v, err := a.ask(label + " [s/N]")
	if err != nil {
		return false, err
	}
	v = strings.ToLower(v)
	return v == "s" || v == "si" || v == "sí" || v == "y", nil
}

// fail prints the user-facing text for err and returns it for the exit code.
func (a *app) fail(err error) error {
	if err == nil {
		return nil
	}
	fmt.Fprintln(a.out, cuenta.UserMessage(err))
	return err
}

func newRootCmd() (*cobra.Command, *app) {
	opts := &options{}
	a := &app{}

	root := &cobra.Command{
		Use:           "cuenta",
		Short:         "Cuenta de miembro de la congregación",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, opts)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.apiURL, "api", "", "backend base URL (overrides CUENTA_API_URL)")
	f.StringVar(&opts.sessionFile, "session-file", defaultSessionFile(), "file holding the logged-in user")
	f.StringVar(&opts.redisAddr, "redis", os.Getenv("REDIS_ADDR"), "redis address; when set the session lives in redis")
	f.StringVar(&opts.profile, "profile", "", "session profile when several users share redis")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")
	f.StringVar(&opts.auditLog, "audit-log", "", "append audit events as JSON lines to this file")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "on exit, write counters here for node_exporter's textfile collector")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newReportCmd(a),
		newEditCmd(a),
		newRecoverCmd(a),
		newSecurityCmd(a),
		newPublicationsCmd(a),
		newAvatarCmd(a),
	)
	return root, a
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".cuenta-session"
	}
	return filepath.Join(dir, "cuenta", "session")
}

func (a *app) init(cmd *cobra.Command, opts *options) error {
	a.in = bufio.NewReader(cmd.InOrStdin())
	a.out = cmd.OutOrStdout()

	cfg, err := cuenta.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	if opts.apiURL != "" {
		cfg.API.BaseURL = opts.apiURL
	}
	if opts.profile != "" {
		cfg.Session.Profile = opts.profile
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	b := cuenta.New().WithLogger(logger).WithNavigator(cuenta.NavigatorFunc(func() {
		fmt.Fprintln(a.out, "Sesión cerrada. Volvé a iniciar sesión con 'cuenta login'.")
	}))

	var rdb redis.UniversalClient
	switch {
	case opts.redisAddr != "":
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{opts.redisAddr}})
		a.cleanup = append(a.cleanup, func() { _ = rdb.Close() })
	case cfg.PinLimit.Enabled:
		// Without a shared redis the limiter only spans this process.
		mr, err := miniredis.Run()
		if err != nil {
			return err
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		a.cleanup = append(a.cleanup, mr.Close, func() { _ = rdb.Close() })
		logger.Warn("pin limit enabled without redis; using an in-process store")
	}
	if rdb != nil {
		b.WithRedis(rdb)
	}
	if opts.redisAddr == "" {
		if err := os.MkdirAll(filepath.Dir(opts.sessionFile), 0o700); err != nil {
			return err
		}
		b.WithSessionFile(opts.sessionFile)
	}

	if opts.auditLog != "" {
		cfg.Audit.Enabled = true
		file, err := os.OpenFile(opts.auditLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		a.cleanup = append(a.cleanup, func() { _ = file.Close() })
		b.WithAuditSink(cuenta.NewJSONWriterSink(file))
	}

	if opts.metricsFile != "" {
		cfg.Metrics.Enabled = true
	}

	client, err := b.WithConfig(cfg).Build()
	if err != nil {
		return err
	}
	a.client = client
	a.cleanup = append(a.cleanup, client.Close)
	if opts.metricsFile != "" {
		exp := prometheus.NewPrometheusExporter(client, prometheus.Options{OmitZero: true})
		a.cleanup = append(a.cleanup, func() {
			if err := exp.WriteTextfile(opts.metricsFile); err != nil {
				logger.Warn("metrics textfile", "path", opts.metricsFile, "err", err)
			}
		})
	}
	return nil
}
