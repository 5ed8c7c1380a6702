package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvDeleteEmoji overrides editor.delete_emoji when set.
const EnvDeleteEmoji = "CTX_DELETE_EMOJI"

// EnvToken overrides telegram.token when set.
const EnvToken = "EDITBOT_TOKEN"

// LoadDotenv loads variables from the given files (default ".env") without
// overriding ones already set. Missing files are not an error.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvDeleteEmoji); ok && strings.TrimSpace(v) != "" {
		cfg.Editor.DeleteEmoji = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvToken); ok && strings.TrimSpace(v) != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
}
