package util

import (
	"time"

	"go.uber.org/zap"
)

// Trace 记录一段操作的耗时，用法：defer util.Trace(logger, "composite")()
func Trace(logger *zap.Logger, name string) func() {
	start := time.Now()
	return func() {
		logger.Info(name, zap.Duration("cost", time.Since(start)))
	}
}
