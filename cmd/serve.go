package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/projectops/internal/api"
	"github.com/joescharf/projectops/internal/auth"
	"github.com/joescharf/projectops/internal/daemon"
	"github.com/joescharf/projectops/internal/ui"
)

const (
	serveName         = "projectops"
	stopWaitTimeout   = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	serveReadTimeout  = 30 * time.Second
	serveWriteTimeout = 5 * time.Minute
)

var serveDaemonChild bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API server in the foreground",
	Long: `Run the HTTP API used by the web dashboard.

By default it listens on port 8080. Use --port to change it, or the
start/stop/status subcommands to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.Flags().BoolVar(&serveDaemonChild, "daemon-child", false, "internal: run as the background child")
	_ = serveCmd.Flags().MarkHidden("daemon-child")
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), serveName+"-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), serveName+"-serve.log")
}

func serveAddr() string {
	return fmt.Sprintf(":%d", viper.GetInt("port"))
}

// newAPIHandler assembles the API with auth and backups from config.
func newAPIHandler(ctx context.Context) (http.Handler, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	backups, err := newBackupService(ctx)
	if err != nil {
		return nil, err
	}

	if viper.GetString("auth.password") == "" {
		slog.Warn("auth.password is empty, every login will be rejected")
	}
	srv := api.NewServer(s, backups, api.Options{
		Verifier: auth.StaticVerifier{
			Username: viper.GetString("auth.username"),
			Password: viper.GetString("auth.password"),
		},
		Sessions:      auth.NewSessions(viper.GetDuration("auth.session_ttl")),
		Limiter:       auth.NewLoginLimiter(auth.DefaultLoginRate, auth.DefaultLoginBurst),
		SecureCookies: viper.GetBool("auth.secure_cookies"),
	})
	handler := srv.Router()

	if dir := viper.GetString("web_dir"); dir != "" {
		fsys, err := ui.DirFS(dir)
		if err != nil {
			return nil, fmt.Errorf("open web_dir %s: %w", dir, err)
		}
		slog.Info("serving dashboard", "dir", dir)
		handler = ui.Mount(handler, fsys)
	}
	return handler, nil
}

func serveRun(ctx context.Context) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	handler, err := newAPIHandler(ctx)
	if err != nil {
		return err
	}

	addr := serveAddr()
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       serveReadTimeout,
		WriteTimeout:      serveWriteTimeout,
	}

	if serveDaemonChild {
		defer func() { _ = pidFile().Remove() }()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "addr", addr, "version", buildVersion)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if st, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (PID %d, %s)", st.PID, st.Addr)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	addr := serveAddr()
	args := []string{"serve", "--daemon-child", "--port", fmt.Sprintf("%d", viper.GetInt("port"))}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if verbose {
		args = append(args, "--verbose")
	}

	if dryRun {
		ui.DryRunMsg("Would start %s %v (log: %s)", exe, args, serveLogPath())
		return nil
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if err := pf.WriteState(daemon.State{PID: child.Process.Pid, Addr: addr}); err != nil {
		_ = child.Process.Kill()
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Server started (PID %d) on %s", child.Process.Pid, addr)
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	st, running := pf.IsRunning()
	if !running {
		if st.PID != 0 {
			_ = pf.Remove()
		}
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", st.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(stopWaitTimeout)
	for time.Now().Before(deadline) {
		if _, alive := pf.IsRunning(); !alive {
			_ = pf.Remove()
			ui.Success("Server stopped (PID %d)", st.PID)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Server did not exit in %s, killing", stopWaitTimeout)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = pf.Remove()
	ui.Success("Server killed (PID %d)", st.PID)
	return nil
}

func serveStatusRun() error {
	st, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server is not running")
		return nil
	}
	ui.Success("Server running (PID %d) on %s", st.PID, st.Addr)
	ui.Info("Logs: %s", serveLogPath())
	return nil
}
