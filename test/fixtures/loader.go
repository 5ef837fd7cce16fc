package fixtures

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixturesDir returns the absolute path to the fixtures directory.
func fixturesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}

// ABIPath returns the absolute path of a fixture ABI or artifact file.
func ABIPath(filename string) string {
	return filepath.Join(fixturesDir(), "abis", filename)
}

// LoadABI loads a fixture ABI JSON file and returns its raw bytes.
func LoadABI(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(ABIPath(filename))
	require.NoError(t, err, "failed to load fixture ABI: %s", filename)
	return data
}
