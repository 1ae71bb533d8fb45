// Package main provides the CLI entrypoint for tuimath.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuimath/internal/config"
	"github.com/verte-zerg/tuimath/internal/logging"
	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/session"
	"github.com/verte-zerg/tuimath/internal/store"
	"github.com/verte-zerg/tuimath/internal/tui"
)

var (
	globalDB       string
	globalLogLevel string

	practiceUser       string
	practiceLength     int
	practiceMax        int
	practiceOps        string
	practiceFocus      string
	practiceWeakFactor float64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuimath",
		Short:         "TUI mental-math trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&globalDB, "db", "", "database path (default: $XDG_DATA_HOME/tuimath/tuimath.db)")
	rootCmd.PersistentFlags().StringVar(&globalLogLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.Flags().StringVar(&practiceUser, "user", "", "practice as this user (created if missing)")
	rootCmd.Flags().IntVar(&practiceLength, "length", 0, "problems per session (saved to the user's preferences)")
	rootCmd.Flags().IntVar(&practiceMax, "max", 0, "largest operand (saved to the user's preferences)")
	rootCmd.Flags().StringVar(&practiceOps, "ops", "", "enabled operations, e.g. add,sub,mul,div (saved to the user's preferences)")
	rootCmd.Flags().StringVar(&practiceFocus, "focus", "", "drill a single strategy (see: tuimath strategies)")
	rootCmd.Flags().Float64Var(&practiceWeakFactor, "weak-factor", 0, "extra weight for weak strategies")

	rootCmd.AddCommand(newAgainCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newStrategiesCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())

	return rootCmd
}

// app bundles the resources every command needs.
type app struct {
	settings config.Settings
	logger   *slog.Logger
	store    *store.Manager
	closers  []func() error
}

// openApp resolves settings (defaults < file < env < flags), opens the log
// file and the database.
func openApp(cmd *cobra.Command) (*app, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	settings, err := config.Resolve(fileCfg, envCfg)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	applyStringFlag(cmd, "db", &settings.DBPath, globalDB)
	applyStringFlag(cmd, "log-level", &settings.LogLevel, globalLogLevel)

	a := &app{settings: settings}
	logFile, err := logging.OpenFile(settings.LogPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, logFile.Close)
	a.logger = logging.Setup(settings.LogLevel, logFile)

	backend, err := store.OpenSQLite(settings.DBPath, settings.QuotaBytes)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	a.closers = append(a.closers, backend.Close)

	st, err := store.Open(backend, store.WithLogger(a.logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	a.store = st
	a.logger.Debug("opened", "db", settings.DBPath)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logErrf("failed to close: %v\n", err)
		}
	}
}

func (a *app) newMachine() *session.Machine {
	return session.New(a.store,
		session.WithLogger(a.logger),
		session.WithWeakFactor(a.settings.WeakFactor),
		session.WithHistoryLimit(a.settings.HistoryLimit),
	)
}

// resolveUser finds the user by name, or the current user when name is
// empty. With create set, a missing named user is created.
func (a *app) resolveUser(name string, create bool) (model.User, error) {
	if name == "" {
		u, ok := a.store.CurrentUser()
		if !ok {
			return model.User{}, fmt.Errorf("no current user; create one with: tuimath user create NAME")
		}
		return u, nil
	}
	if u, ok := a.store.FindUserByName(name); ok {
		return u, nil
	}
	if !create {
		return model.User{}, fmt.Errorf("user %q: %w", name, store.ErrNotFound)
	}
	prefs := a.settings.Preferences
	return a.store.CreateUser(model.CreateUserInput{Name: name, Preferences: &prefs})
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	applyFloatFlag(cmd, "weak-factor", &a.settings.WeakFactor, practiceWeakFactor)
	if a.settings.WeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}

	user, err := a.resolveUser(practiceUser, true)
	if err != nil {
		return err
	}
	if err := a.store.SetCurrentUser(user.ID); err != nil {
		return err
	}
	patch, changed, err := preferenceFlags(cmd, "length", "max", "ops")
	if err != nil {
		return err
	}
	if changed {
		if user, err = a.store.UpdateUser(user.ID, model.UserPatch{Preferences: &patch}); err != nil {
			return err
		}
	}

	machine := a.newMachine()
	if practiceFocus != "" {
		id := model.StrategyID(practiceFocus)
		if err := machine.SetFocusedStrategy(id); err != nil {
			return fmt.Errorf("--focus: %w", err)
		}
		if err := machine.SetSessionTypeIntent(model.SessionFocused); err != nil {
			return err
		}
	}
	machine.SetPracticeIntent(true)
	return runPractice(a, machine, user)
}

func newAgainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "again",
		Short: "Start a session of the same type as the last one",
		Args:  cobra.NoArgs,
		RunE:  runAgainCmd,
	}
}

func runAgainCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.resolveUser("", false)
	if err != nil {
		return err
	}
	machine := a.newMachine()
	if sessions := a.store.ListSessions(user.ID); len(sessions) > 0 {
		machine.RememberLastSession(sessions[len(sessions)-1])
	}
	if err := machine.StartSameTypeSession(); err != nil {
		if errors.Is(err, session.ErrNoPreviousSession) {
			return fmt.Errorf("%s has no previous session; run tuimath first", user.Name)
		}
		return err
	}
	return runPractice(a, machine, user)
}

func runPractice(a *app, machine *session.Machine, user model.User) error {
	view := tui.NewModel(machine, a.store, user.ID, a.logger)
	defer view.Close()
	program := tea.NewProgram(view, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// preferenceFlags builds a preferences patch from the named flags that were
// set on the command line.
func preferenceFlags(cmd *cobra.Command, lengthFlag, maxFlag, opsFlag string) (model.PreferencesPatch, bool, error) {
	var patch model.PreferencesPatch
	changed := false
	if cmd.Flags().Changed(lengthFlag) {
		v, err := cmd.Flags().GetInt(lengthFlag)
		if err != nil {
			return patch, false, err
		}
		patch.SessionLength = &v
		changed = true
	}
	if cmd.Flags().Changed(maxFlag) {
		v, err := cmd.Flags().GetInt(maxFlag)
		if err != nil {
			return patch, false, err
		}
		patch.MaxNumber = &v
		changed = true
	}
	if cmd.Flags().Changed(opsFlag) {
		v, err := cmd.Flags().GetString(opsFlag)
		if err != nil {
			return patch, false, err
		}
		ops, err := config.ParseOperations(v)
		if err != nil {
			return patch, false, fmt.Errorf("--%s: %w", opsFlag, err)
		}
		patch.Operations = ops
		changed = true
	}
	return patch, changed, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringFlag(cmd *cobra.Command, name string, target *string, value string) {
	if cmd.Flags().Changed(name) {
		*target = value
	}
}

func applyFloatFlag(cmd *cobra.Command, name string, target *float64, value float64) {
	if cmd.Flags().Changed(name) {
		*target = value
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
