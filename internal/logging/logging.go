// Package logging sets up the process-wide structured logger. Grounded on
// the teacher's go.mod (go.uber.org/zap, github.com/fatih/color); no file
// in the retrieval pack exercises either directly (see DESIGN.md), so this
// follows zap's documented production setup and fatih/color's documented
// terminal-color helpers.
package logging

import (
	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger: JSON in production, console in development.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Banner prints the startup banner the way an operator staring at a
// terminal expects: replica id, primary/standby role, active network
// count. JSON logs carry the same facts for machine consumption; this is
// purely the human-readable echo.
func Banner(replicaID string, isPrimary bool, networkCount int) {
	role := color.YellowString("standby")
	if isPrimary {
		role = color.GreenString("primary")
	}
	color.Cyan("barreleye-indexer")
	color.White("  replica   %s", replicaID)
	color.White("  role      %s", role)
	color.White("  networks  %d", networkCount)
}
