// Package logging constructs the crossplane-runtime logging.Logger every
// long-lived component in this module accepts, backed by zap — the same
// pairing the wider example corpus's CLI tools use (zap.Logger bridged
// through a logr.Logger shim) rather than a bespoke logging stack.
package logging

import (
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// New builds a logging.Logger writing to stderr: structured JSON by
// default, or zap's development console format when debug is set, which
// also lowers the level to zap's Debug (the CLI's --debug flag).
func New(debug bool) (logging.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logging.NewLogrLogger(zapr.NewLogger(zl)), nil
}
