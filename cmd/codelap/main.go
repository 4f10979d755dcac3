package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codelap/internal/app"
	"codelap/internal/config"
	"codelap/internal/logging"
	"codelap/internal/session"
	"codelap/internal/types"
)

var (
	// Global flags
	verbose     bool
	workspace   string
	apiURL      string
	timeout     time.Duration
	plainOutput bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codelap",
	Short: "codelap - learn a codebase one step at a time",
	Long: `codelap turns a GitHub repository into a step-by-step learning plan.

Search for a repository, generate a plan, approve it, then work through
its steps and coding exercises. Progress is kept locally in .codelap/.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := resolveWorkspace()
		if err := config.LoadDotEnv(ws); err != nil {
			logger.Warn("Failed to load .env", zap.Error(err))
		}
		cfg, err = config.Load(config.DefaultPath(ws))
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.API.BaseURL = apiURL
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := logging.Initialize(ws, cfg.Logging); err != nil {
			logger.Warn("File logging disabled", zap.Error(err))
		}
		logger.Debug("Configuration loaded",
			zap.String("workspace", ws),
			zap.String("api", cfg.BaseURL()),
			zap.String("storage", cfg.Storage.Driver))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (or set CODELAP_API_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Overall command timeout (default: none, api.timeout bounds each request)")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "Print markdown without terminal styling")

	initAuthCommands()
	initPlanCommands()
	initRoadmapCommands()
	initStepCommands()
	initStorageCommands()

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd, healthCmd)
	rootCmd.AddCommand(searchCmd, planCmd, roadmapCmd, stepCmd, storageCmd)
	rootCmd.AddCommand(interactiveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err followed by a hint of how to retry, if one applies.
func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
	if hint := retryHint(err); hint != "" {
		fmt.Fprintln(w, hint)
	}
}

func retryHint(err error) string {
	var authErr *types.AuthenticationError
	var valErr *types.ValidationError
	var reqErr *types.RequestFailure
	switch {
	case errors.Is(err, types.ErrAuthorizationExpired), errors.Is(err, types.ErrNotAuthenticated):
		return "Run 'codelap login' to sign in, then retry the command."
	case errors.As(err, &authErr):
		return "Check your username and password, then run 'codelap login' again."
	case errors.As(err, &valErr):
		return "Fix the rejected input and retry."
	case errors.Is(err, types.ErrSubmissionInProgress):
		return "Wait for the pending submission to finish, then retry."
	case errors.As(err, &reqErr) && reqErr.Status == 0:
		return "Is the backend running? Check with 'codelap health' or pass --api-url."
	case errors.As(err, &reqErr) && reqErr.Status >= 500:
		return "The backend failed to handle the request. Retry in a moment."
	}
	return ""
}

// expiredNotice is the CLI's login redirect. The session is already cleared
// when it runs.
var expiredNotice = session.NavigatorFunc(func() {
	fmt.Fprintln(os.Stderr, "Your session has expired and you have been logged out.")
})

func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// commandContext returns a context bounded by --timeout and cancelled on
// SIGINT/SIGTERM. A zero timeout means no deadline.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

// openApp wires the client. With restore set, the persisted session is
// rebuilt first, which costs one backend call when a token is held.
func openApp(ctx context.Context, restore bool) (*app.App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a, err := app.New(cfg, resolveWorkspace(), expiredNotice)
	if err != nil {
		return nil, err
	}
	if restore {
		if u := a.Restore(ctx); u != nil {
			logger.Debug("Session restored", zap.String("user", u.Username))
		}
	} else {
		a.Progress.RestoreCurrent()
	}
	return a, nil
}

// joinArgs joins command arguments with spaces
func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
