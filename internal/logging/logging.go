// Package logging builds the service-wide zap logger.
package logging

import (
	"backend-cragmap/internal/config"

	"go.uber.org/zap"
)

// New returns a JSON production logger for production deployments and a
// console development logger everywhere else.
func New(cfg config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// OrNop guards components against a nil logger.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
