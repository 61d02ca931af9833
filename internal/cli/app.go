// Package cli implements the agentchat command line.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentplatform/config"
	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/logger"
	"github.com/kbukum/agentplatform/platform"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitAPI     = 2
	ExitNetwork = 3
	ExitDecode  = 4
)

// ConfigLoader loads the client configuration.
type ConfigLoader func(configFile, envFile string) (*config.ClientConfig, error)

// ClientFactory builds the platform client.
type ClientFactory func(ctx context.Context, cfg *config.ClientConfig) (*platform.Client, error)

// App holds CLI state and its injectable dependencies.
type App struct {
	root *cobra.Command

	loadConfig ConfigLoader
	newClient  ClientFactory
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer

	configFile string
	envFile    string
	output     string
	verbose    bool
	userID     string

	cfg    *config.ClientConfig
	client *platform.Client
}

// AppOption customizes App dependencies.
type AppOption func(*App)

// WithConfigLoader replaces the config loader.
func WithConfigLoader(l ConfigLoader) AppOption {
	return func(a *App) {
		if l != nil {
			a.loadConfig = l
		}
	}
}

// WithClientFactory replaces the client factory.
func WithClientFactory(f ClientFactory) AppOption {
	return func(a *App) {
		if f != nil {
			a.newClient = f
		}
	}
}

// WithIO replaces the process streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates the CLI with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig: loadConfig,
		newClient:  newClient,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.root = a.newRootCommand()
	return a
}

func loadConfig(configFile, envFile string) (*config.ClientConfig, error) {
	return config.Load(config.AppName, config.WithConfigFile(configFile), config.WithEnvFile(envFile))
}

func newClient(ctx context.Context, cfg *config.ClientConfig) (*platform.Client, error) {
	return platform.New(ctx, cfg)
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentchat",
		Short: "Chat with an agent app on the agent platform",
		Long: `agentchat talks to an agent app over the platform HTTP API.

Settings come from config.yml, .env and AGENTPLATFORM_* variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: search ./config.yml, ./config/config.yml, ~/.agentplatform/config.yml)")
	pf.StringVar(&a.envFile, "env-file", "", ".env file to load")
	pf.StringVarP(&a.output, "output", "o", formatText, "output format: text, json or yaml")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&a.userID, "user", "", "user id (overrides user_id from config)")

	root.AddCommand(
		a.newAskCommand(),
		a.newChatCommand(),
		a.newConversationCommand(),
		a.newVersionCommand(),
	)
	return root
}

// setup loads configuration, initializes logging and opens the client.
func (a *App) setup(cmd *cobra.Command) error {
	if err := validFormat(a.output); err != nil {
		return exitWithCode(ExitUsage, err)
	}
	cfg, err := a.loadConfig(a.configFile, a.envFile)
	if err != nil {
		return exitWithCode(ExitUsage, err)
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	logger.Init(cfg.Logging, "agentchat")
	if a.userID != "" {
		cfg.UserID = a.userID
	}

	client, err := a.newClient(cmd.Context(), cfg)
	if err != nil {
		return exitWithCode(ExitUsage, err)
	}
	a.cfg, a.client = cfg, client
	return nil
}

func (a *App) teardown(ctx context.Context) {
	if a.client == nil {
		return
	}
	if err := a.client.Close(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("close client", logger.Fields(logger.FieldError, err))
	}
	a.client = nil
}

// Execute runs the CLI with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	defer a.teardown(ctx)
	a.root.SetArgs(args)
	return a.root.ExecuteContext(ctx)
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode is the process exit status for the error.
func (e *exitError) ExitCode() int { return e.code }

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// apiFailure maps a platform error to an exit code.
func apiFailure(err error) error {
	switch {
	case errors.Is(err, httpclient.ErrInvalidRequest):
		return exitWithCode(ExitUsage, err)
	case httpclient.IsTransport(err):
		return exitWithCode(ExitNetwork, err)
	case httpclient.IsDecode(err):
		return exitWithCode(ExitDecode, err)
	default:
		return exitWithCode(ExitAPI, err)
	}
}

// ExitCode returns the exit status for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsage
}
