package app

import (
	"log/slog"
	"os"
	"sync"
)

// TestModeEnv is set to "1" by the testing package so binaries linked into
// test runs never open sockets or databases.
const TestModeEnv = "STAFFDIR_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether runtime side effects must be skipped. The
// environment is read once per process.
func InTestMode() bool {
	return testMode()
}

// SkipStartup logs and reports true when component must not start.
func SkipStartup(component string) bool {
	if !InTestMode() {
		return false
	}
	slog.Default().Info("test mode detected, skipping startup", slog.String("component", component))
	return true
}
