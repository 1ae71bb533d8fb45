package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/stats"
	"github.com/verte-zerg/tuimath/internal/statsui"
	"github.com/verte-zerg/tuimath/internal/store"
)

var (
	statsPlain       bool
	statsUser        string
	statsLast        int
	statsSince       string
	statsCurveWindow int

	exportFormat string
	exportOut    string
	importFormat string
)

func newStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show practice statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	statsCmd.Flags().BoolVar(&statsPlain, "plain", false, "print plain text instead of the interactive view")
	statsCmd.Flags().StringVar(&statsUser, "user", "", "user name (default: current user)")
	statsCmd.Flags().IntVar(&statsLast, "last", 0, "only the last N completed sessions")
	statsCmd.Flags().StringVar(&statsSince, "since", "", "only sessions ended on or after this date (YYYY-MM-DD)")
	statsCmd.Flags().IntVar(&statsCurveWindow, "curve-window", 1, "moving-average window for learning curves")
	return statsCmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	cfg := model.StatsConfig{Last: statsLast, CurveWindow: statsCurveWindow}
	if statsSince != "" {
		since, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("--since: %w", err)
		}
		cfg.Since = &since
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.resolveUser(statsUser, false)
	if err != nil {
		return err
	}
	cfg.UserID = user.ID

	if statsPlain {
		report, err := stats.BuildReport(a.store, cfg)
		if err != nil {
			return err
		}
		return stats.RenderReport(cmd.OutOrStdout(), report, cfg.CurveWindow)
	}
	view := statsui.NewModel(a.store, cfg)
	defer view.Close()
	program := tea.NewProgram(view, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats UI: %w", err)
	}
	return nil
}

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List mental-math strategies and your accuracy on each",
		Args:  cobra.NoArgs,
		RunE:  runStrategiesCmd,
	}
}

func runStrategiesCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	perf := map[model.StrategyID]model.StrategyPerformance{}
	maxNumber := model.DefaultPreferences().MaxNumber
	if user, ok := a.store.CurrentUser(); ok {
		perf = user.Statistics.StrategyPerformance
		maxNumber = user.Preferences.MaxNumber
	}
	return stats.RenderCatalog(cmd.OutOrStdout(), perf, maxNumber)
}

func newExportCmd() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write all users and sessions to stdout or a file",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
	return exportCmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	raw, err := exportDocument(a.store, exportFormat)
	if err != nil {
		return err
	}
	if exportOut == "" {
		_, err := cmd.OutOrStdout().Write(raw)
		return err
	}
	if err := os.WriteFile(exportOut, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func newImportCmd() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace all data with a previous export",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
	importCmd.Flags().StringVar(&importFormat, "format", "", "input format: json or yaml (default: from file extension)")
	return importCmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import: %w", err)
	}
	format := importFormat
	if format == "" {
		format = formatFromPath(args[0])
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := importDocument(a.store, raw, format); err != nil {
		return err
	}
	d := a.store.Data()
	a.logger.Info("imported", "users", len(d.Users), "sessions", len(d.Sessions))
	return nil
}

// exportDocument serializes the store in the given format.
func exportDocument(st *store.Manager, format string) ([]byte, error) {
	switch format {
	case "json":
		raw, err := st.Export()
		if err != nil {
			return nil, err
		}
		return append(raw, '\n'), nil
	case "yaml":
		return yaml.Marshal(st.Data())
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

// importDocument replaces the store contents with raw. YAML is converted to
// the JSON document form so both formats go through the same validation.
func importDocument(st *store.Manager, raw []byte, format string) error {
	switch format {
	case "json":
		return st.Import(raw)
	case "yaml":
		var doc model.AppData
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		asJSON, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return st.Import(asJSON)
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
