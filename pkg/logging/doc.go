// Package logging configures the structured loggers used across chaoskit.
//
// It is a thin layer over log/slog. Every component takes a *slog.Logger and
// falls back to Nop when none is given, so library users see no output unless
// they opt in.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel(os.Getenv("CHAOSKIT_LOG_LEVEL")),
//	    Format: logging.FormatJSON,
//	})
//	logger.Info("policy loaded", "path", path)
//
// Fanout sends each record to several handlers, e.g. human-readable text on
// stderr plus a JSON decision log on disk.
package logging
