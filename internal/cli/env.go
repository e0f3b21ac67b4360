package cli

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideEnvVar names a .env file that wins over the --env flag.
const OverrideEnvVar = "TARA_ENV_FILE"

// ErrEnvFileNotFound is returned when no candidate .env file exists. Commands
// treat it as a warning; deployments usually set real environment variables.
var ErrEnvFileNotFound = errors.New("env file not found")

// EnvLoader loads .env files with a predictable override order.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	value := fs.String("env", defaultPath, description)
	return &EnvLoader{
		value:       value,
		defaultPath: defaultPath,
	}
}

// Load resolves and loads environment variables. Order: $TARA_ENV_FILE, the
// --env value, its basename, then the default path.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	log.SetOutput(os.Stderr)

	if custom := strings.TrimSpace(os.Getenv(OverrideEnvVar)); custom != "" {
		if err := godotenv.Overload(custom); err == nil {
			log.Printf("Loaded environment from %s: %s", OverrideEnvVar, custom)
			return custom, nil
		}
		log.Printf("Warning: failed to load %s=%s", OverrideEnvVar, custom)
	}

	requested := strings.TrimSpace(derefString(l.value))
	if requested == "" {
		requested = l.defaultPath
	}

	candidates := []string{requested}
	if base := filepath.Base(requested); base != "" && base != requested {
		candidates = append(candidates, base)
	}
	if requested != l.defaultPath {
		candidates = append(candidates, l.defaultPath)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Overload(candidate); err != nil {
			return "", fmt.Errorf("parse env file %s: %w", candidate, err)
		}
		return candidate, nil
	}

	return "", fmt.Errorf("%w: %s", ErrEnvFileNotFound, requested)
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
