package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// envFiles are tried in order. godotenv never overrides a variable that is
// already set, so the process environment wins over both files and
// .env.local wins over .env.
var envFiles = []string{".env.local", ".env"}

// loadEnvFiles loads KEY=VALUE pairs from the env files present in the
// working directory. Missing files are ignored.
func loadEnvFiles() error {
	for _, name := range envFiles {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return err
		}
		slog.Debug("Loaded environment variables", slog.String("file", name))
	}
	return nil
}
