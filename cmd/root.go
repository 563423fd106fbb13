package cmd

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/saravenpi/parley/internal/app"
	"github.com/saravenpi/parley/internal/config"
	"github.com/saravenpi/parley/internal/logging"
	"github.com/saravenpi/parley/internal/session"
	"github.com/saravenpi/parley/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "unknown"
)

var configPath string

// rootCmd starts the chat client when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Terminal client for one-to-one chat",
	Long: `Parley is a terminal chat client. It keeps your conversations in a
sidebar, shows the active thread next to it and receives new messages live.

Navigation:
  tab               Switch between sidebar and thread
  ↑/↓ or j/k        Move in the sidebar
  enter             Open conversation / send message
  /                 Search by name, or by user id to start a conversation
  u                 Toggle unread only
  c                 Cycle categories
  r                 Refresh conversations
  ctrl+o            Log out
  ctrl+c            Quit

Settings live in ~/.parley/config.yml; PARLEY_* environment variables
override them.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default is $HOME/.parley/config.yml)")
}

// loadEnv reads the config, opens the log file and the session store.
func loadEnv() (*app.Env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	env, err := app.NewEnv(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return env, nil
}

func closeEnv(env *app.Env) {
	if err := env.Close(); err != nil {
		env.Log.Warn("close_store_failed", zap.Error(err))
	}
	_ = env.Log.Sync()
}

func runTUI() error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer closeEnv(env)

	env.Log.Info("starting", zap.String("version", version), zap.String("api_url", env.Config.APIURL))

	var initial tea.Model = ui.NewMenuModel(env, "")
	identity, err := env.Resume()
	switch {
	case err == nil:
		sess, err := app.Open(env, identity)
		if err != nil {
			return err
		}
		initial = ui.NewChatModel(env, sess)
	case !errors.Is(err, session.ErrNoSession):
		return err
	}

	p := tea.NewProgram(initial, tea.WithAltScreen())
	final, err := p.Run()
	if final != nil {
		ui.Shutdown(final)
	}
	if err != nil {
		env.Log.Error("program_failed", zap.Error(err))
		return err
	}
	return nil
}
