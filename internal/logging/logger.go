package logging

import (
	"log/slog"
	"os"
)

// Setup installs a JSON slog logger on stdout. Development builds log at
// DEBUG, everything else at INFO.
func Setup(appEnv string) *slog.JSONHandler {
	level := slog.LevelInfo
	if appEnv == "development" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return handler
}

// Persist tees ERROR+ records into system_logs alongside stdout.
func Persist(stdout slog.Handler, pg *PGHandler) {
	slog.SetDefault(slog.New(NewMultiHandler(stdout, pg)))
}
