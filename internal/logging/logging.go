// Package logging provides component-scoped structured logging for
// jwtguard, grounded on the teacher's internal/logger package.
//
// Unlike the teacher (an application that owns stdout), jwtguard is a
// library embedded in a host process: it must never force log output.
// The package logger defaults to zerolog.Nop() until a host calls
// Configure, mirroring the teacher's Initialize(level, pretty) but with
// a silent-by-default posture instead of an application default.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base = zerolog.Nop()

// Configure wires up the package logger. level is a zerolog level name
// ("debug", "info", "warn", ...); pretty selects a human-readable console
// writer over the default JSON encoding.
func Configure(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var w zerolog.Logger
	if pretty {
		w = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		w = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	base = w.Level(lvl).With().Str("module", "jwtguard").Logger()
}

// SetLogger lets a host hand jwtguard an already-configured zerolog.Logger
// (e.g. one sharing its sinks/hooks with the rest of the process) instead
// of going through Configure.
func SetLogger(l zerolog.Logger) {
	base = l.With().Str("module", "jwtguard").Logger()
}

// Component returns a logger tagged with the given pipeline component,
// mirroring the teacher's logger.Security()/logger.HTTP() helpers.
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Jwks returns the component logger for the JWKS loader/cache subsystem.
// Recomputed on every call (cheap struct copy) so it reflects the most
// recent Configure/SetLogger call rather than a value cached at init.
func Jwks() zerolog.Logger { return Component("jwks") }

// Validator returns the component logger for the validation pipeline.
func Validator() zerolog.Logger { return Component("validator") }

// Cache returns the component logger for the access-token cache.
func Cache() zerolog.Logger { return Component("cache") }

// Signature returns the component logger for signature verification.
func Signature() zerolog.Logger { return Component("signature") }
