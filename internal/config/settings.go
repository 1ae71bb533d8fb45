package config

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/tuimath/internal/generator"
	"github.com/verte-zerg/tuimath/internal/model"
)

// Settings is the merged configuration before command-line flags apply.
type Settings struct {
	DBPath       string
	QuotaBytes   int
	LogLevel     string
	LogPath      string
	WeakFactor   float64
	HistoryLimit int
	// Preferences holds the file's practice overrides for new users and
	// session flags. Nil fields were not set.
	Preferences model.PreferencesPatch
}

// Resolve merges defaults, the config file and the environment, in that
// order of increasing precedence.
func Resolve(file FileConfig, envCfg EnvConfig) (Settings, error) {
	s := Settings{
		DBPath:     DefaultDBPath(),
		LogLevel:   "info",
		LogPath:    DefaultLogPath(),
		WeakFactor: generator.DefaultWeakFactor,
	}

	p := file.Practice
	s.Preferences.SessionLength = p.SessionLength
	s.Preferences.MaxNumber = p.MaxNumber
	if p.Operations != nil {
		toggles, err := ParseOperations(strings.Join(p.Operations, ","))
		if err != nil {
			return Settings{}, err
		}
		s.Preferences.Operations = toggles
	}
	if p.WeakFactor != nil {
		if *p.WeakFactor < 0 {
			return Settings{}, fmt.Errorf("weak-factor must be >= 0")
		}
		s.WeakFactor = *p.WeakFactor
	}
	setInt(&s.HistoryLimit, p.HistoryLimit)
	setString(&s.DBPath, file.Storage.Path)
	setInt(&s.QuotaBytes, file.Storage.QuotaBytes)
	setString(&s.LogLevel, file.Log.Level)

	setString(&s.DBPath, envCfg.DBPath)
	setInt(&s.QuotaBytes, envCfg.QuotaBytes)
	setString(&s.LogLevel, envCfg.LogLevel)
	setInt(&s.HistoryLimit, envCfg.HistoryLimit)

	if s.QuotaBytes < 0 {
		return Settings{}, fmt.Errorf("quota-bytes must be >= 0")
	}
	if s.HistoryLimit < 0 {
		return Settings{}, fmt.Errorf("history-limit must be >= 0")
	}
	return s, nil
}

// ParseOperations parses a comma-separated operation list. Short names
// (add, sub, mul, div) and full names are accepted. Operations not listed are
// turned off.
func ParseOperations(list string) (*model.OperationTogglesPatch, error) {
	off := func() *bool { v := false; return &v }
	on := func() *bool { v := true; return &v }
	t := &model.OperationTogglesPatch{Addition: off(), Subtraction: off(), Multiplication: off(), Division: off()}
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case "add", "+", string(model.OpAddition):
			t.Addition = on()
		case "sub", "-", string(model.OpSubtraction):
			t.Subtraction = on()
		case "mul", "*", "x", string(model.OpMultiplication):
			t.Multiplication = on()
		case "div", "/", string(model.OpDivision):
			t.Division = on()
		default:
			return nil, fmt.Errorf("unknown operation %q (valid: %s)", raw, validOperations())
		}
	}
	return t, nil
}

func validOperations() string {
	names := make([]string, 0, 4)
	for _, op := range model.AllOperations() {
		names = append(names, string(op))
	}
	return strings.Join(names, ", ")
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}
