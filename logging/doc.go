// Package logging builds the slog loggers confect uses: JSON handlers
// with a string-configured level, component tagging for composition and
// source subsystems, and a discard logger for silent library defaults.
package logging
