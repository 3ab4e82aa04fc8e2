package testutils

import (
	"path/filepath"
	"testing"
)

// CreateTestDBPath creates a temporary SQLite database file path for testing
func CreateTestDBPath(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	return filepath.Join(tmpDir, "test.db")
}

// AssertNoError is a helper to check for no error
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// FloatPtr returns a pointer to v, for optional balance/threshold fields
func FloatPtr(v float64) *float64 {
	return &v
}
