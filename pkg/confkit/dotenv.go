package confkit

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads a .env file into the process environment exactly once.
// Existing variables win unless DOTENV_OVERLOAD=1; NO_DOTENV=1 disables the
// mechanism entirely and ENV_FILE points at an explicit file. Without
// ENV_FILE the loader walks from this source file up to the module root,
// loading any .env it passes, so tests and binaries run from subdirectories
// still pick up the root .env.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}

	load := godotenv.Load
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = load(envFile)
		return
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		_ = load(".env")
		return
	}
	dir := filepath.Dir(file)
	for i := 0; i < 8; i++ {
		_ = load(filepath.Join(dir, ".env"))
		if isModuleRoot(dir) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func isModuleRoot(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}
