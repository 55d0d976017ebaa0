package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter hides whether categorized log files are enabled. Category
// events always reach the general logger; with a MultiLogger they are also
// written to the category file.
type LoggerAdapter struct {
	general     *zap.Logger
	multiLogger *MultiLogger
}

// NewLoggerAdapter creates an adapter that tees category events into multi
func NewLoggerAdapter(general *zap.Logger, multi *MultiLogger) *LoggerAdapter {
	return &LoggerAdapter{general: general, multiLogger: multi}
}

// NewSingleLoggerAdapter creates an adapter without categorized files
func NewSingleLoggerAdapter(general *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{general: general}
}

// General returns the general logger
func (la *LoggerAdapter) General() *zap.Logger {
	return la.general
}

// LogDownloadEvent records a download lifecycle event
func (la *LoggerAdapter) LogDownloadEvent(event string, fields ...zap.Field) {
	la.general.Info(event, fields...)
	if la.multiLogger != nil {
		la.multiLogger.Download().Info(event, fields...)
	}
}

// LogCacheEvent records a cache mutation or scan event
func (la *LoggerAdapter) LogCacheEvent(event string, fields ...zap.Field) {
	la.general.Info(event, fields...)
	if la.multiLogger != nil {
		la.multiLogger.Cache().Info(event, fields...)
	}
}

// LogError logs an error to the general log and the error category
func (la *LoggerAdapter) LogError(category LogCategory, msg string, fields ...zap.Field) {
	la.general.Error(msg, fields...)
	if la.multiLogger != nil {
		categoryFields := append([]zap.Field{zap.String("category", string(category))}, fields...)
		la.multiLogger.Error().Error(msg, categoryFields...)
	}
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	err := la.general.Sync()
	if la.multiLogger != nil {
		if mErr := la.multiLogger.Sync(); mErr != nil {
			err = mErr
		}
	}
	return err
}

// GetMultiLogger returns the underlying multi-logger, nil when disabled
func (la *LoggerAdapter) GetMultiLogger() *MultiLogger {
	return la.multiLogger
}
