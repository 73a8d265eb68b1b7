package utils

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. With no arguments it loads ./.env. Missing
// files are skipped; a file that exists but cannot be parsed is reported.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no env file found, continuing", "file", f)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
