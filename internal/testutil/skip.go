package testutil

import (
	"os"
	"testing"
)

// SkipIfNoNetwork skips the test if DMFEED_TEST_SKIP_NETWORK is set.
// Use this for tests that listen on loopback TCP, which may not be
// available in sandboxed environments.
func SkipIfNoNetwork(t *testing.T) {
	t.Helper()
	if os.Getenv("DMFEED_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: DMFEED_TEST_SKIP_NETWORK is set")
	}
}
