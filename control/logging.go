// control/logging.go
// Author: momentics <momentics@gmail.com>
//
// zap logger construction from Config.

package control

import (
	"go.uber.org/zap"
)

// NewLogger builds a stderr logger at cfg's level. Debug level switches to
// the development encoder with caller information.
func NewLogger(cfg Config) (*zap.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if lvl <= zap.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.Sampling = nil
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
