// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the logr.Logger used across regio, backed by zap.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds configuration for the logger.
type Config struct {
	// Level is the log level (debug, info, warn, error).
	Level string
	// Development enables development mode with more verbose output.
	Development bool
	// Encoding is the log encoding (json or console).
	Encoding string
}

// NewLogger creates a new logr.Logger backed by zap.
func NewLogger(cfg Config) (logr.Logger, error) {
	var zapCfg zap.Config

	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLog, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return logr.Discard(), err
	}

	return zapr.NewLogger(zapLog), nil
}

// loggerKey is the context key for storing the logger.
type loggerKey struct{}

// ContextWithLogger returns a new context with the logger attached.
func ContextWithLogger(ctx context.Context, logger logr.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the logger from the context.
// If no logger is found, it returns a discard logger.
func LoggerFromContext(ctx context.Context) logr.Logger {
	logger, ok := ctx.Value(loggerKey{}).(logr.Logger)
	if !ok {
		return logr.Discard()
	}
	return logger
}
