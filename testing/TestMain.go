// Package testing puts the application into test mode. Test binaries
// import it for its side effects:
//
//	import _ "github.com/staffdir/staffdir/testing"
package testing

import (
	"os"
	stdtesting "testing"
)

func init() {
	_ = os.Setenv("STAFFDIR_TEST_MODE", "1")
	if _, ok := os.LookupEnv("SESSION_BACKEND"); !ok {
		_ = os.Setenv("SESSION_BACKEND", "memory")
	}
}

// TestMain runs m once init has switched the process into test mode.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
