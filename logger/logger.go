// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logger supplies the ambient structured logger used across the
// causal core. It is a thin re-export of github.com/luxfi/log, following
// the same pattern as the teacher's log package (log/nolog.go,
// log/noop.go): the core never constructs its own production logger, it
// is handed one (or the no-op) by the embedding application.
package logger

import (
	"github.com/luxfi/log"
	"go.uber.org/zap"
)

// Logger is the structured logger interface the core depends on.
type Logger = log.Logger

// Field is a structured log field, compatible with the zap-based
// WithFields method on Logger — mirrors log/nolog.go's use of zap.Field.
type Field = zap.Field

// NewNop returns a logger that discards everything, used as the default
// when no Logger is supplied and throughout the test suite.
func NewNop() Logger {
	return log.NewNoOpLogger()
}

// String, Int, Err are convenience field constructors used at call sites
// across compare, backend and entity.
func String(key, value string) Field { return zap.String(key, value) }
func Int(key string, value int) Field { return zap.Int(key, value) }
func Err(err error) Field             { return zap.Error(err) }
