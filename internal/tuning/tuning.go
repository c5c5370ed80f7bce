// Package tuning is the single home of every numeric constant the engine
// consumes: the reference energy cost table and the default search
// budgets. Values load from tuning.yaml when one is supplied; nothing
// outside this package hard-codes a constant.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Costs is the reference energy cost table. Per tick the field term is
// FieldLow*R^3 (Low harmonics) or FieldHigh*R^3 (High), plus PerBot for
// each live bot. Command terms are charged on top. Void and fusion refund
// energy, so everything is signed.
type Costs struct {
	FieldLow     int64 `yaml:"field_low"`
	FieldHigh    int64 `yaml:"field_high"`
	PerBot       int64 `yaml:"per_bot"`
	SMovePerUnit int64 `yaml:"smove_per_unit"`
	LMoveBase    int64 `yaml:"lmove_base"`
	FillEmpty    int64 `yaml:"fill_empty"`
	FillFull     int64 `yaml:"fill_full"`
	VoidFull     int64 `yaml:"void_full"`
	VoidEmpty    int64 `yaml:"void_empty"`
	Fission      int64 `yaml:"fission"`
	Fusion       int64 `yaml:"fusion"`
}

// Search carries the default budgets for the constructive search.
type Search struct {
	MaxTicks       int `yaml:"max_ticks"`
	RouteAttempts  int `yaml:"route_attempts"`
	RouteBudgetMs  int `yaml:"route_budget_ms"`
	BotCount       int `yaml:"bot_count"`
	OptimizerIters int `yaml:"optimizer_iters"`
}

type Tuning struct {
	Costs  Costs  `yaml:"costs"`
	Search Search `yaml:"search"`
}

// Default returns the reference cost table and stock search budgets.
func Default() Tuning {
	return Tuning{
		Costs: Costs{
			FieldLow:     3,
			FieldHigh:    30,
			PerBot:       20,
			SMovePerUnit: 2,
			LMoveBase:    4,
			FillEmpty:    12,
			FillFull:     6,
			VoidFull:     -12,
			VoidEmpty:    3,
			Fission:      24,
			Fusion:       -24,
		},
		Search: Search{
			MaxTicks:       500000,
			RouteAttempts:  64,
			RouteBudgetMs:  200,
			BotCount:       4,
			OptimizerIters: 2000,
		},
	}
}

// Load reads a tuning.yaml overlaying the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
