package e2e_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3scan/internal/chaintest"
	"github.com/Mohsinsiddi/w3scan/test/fixtures"
)

var binaryPath string

var selectorPattern = regexp.MustCompile(`0x[0-9a-f]{8}`)

func TestMain(m *testing.M) {
	// Build the binary before all E2E tests.
	tmp, err := os.MkdirTemp("", "w3scan-e2e-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	binaryPath = filepath.Join(tmp, "w3scan")
	// Build from the module root (two levels up from test/e2e/).
	moduleRoot, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		panic(err)
	}
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = moduleRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	os.Exit(m.Run())
}

func runCLI(t *testing.T, configDir string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "W3SCAN_CONFIG_DIR="+configDir)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestVersionFlag(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "w3scan")
}

func TestHelpCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "--help")
	require.NoError(t, err)
	for _, sub := range []string{"txs", "blocks", "block", "tx", "address", "search", "abi", "decode", "rpc", "config"} {
		assert.Contains(t, out, sub)
	}
	assert.Contains(t, out, "--rpc")
}

func TestTxsAgainstFakeNode(t *testing.T) {
	srv := chaintest.NewServer(t)
	srv.Result("eth_chainId", "0x7a69")
	from := "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	to := "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
	srv.AddBlock(chaintest.Block(0, 1_700_000_000))
	srv.AddBlock(chaintest.Block(1, 1_700_000_012, chaintest.Tx(chaintest.Hash("e2e", 1), from, to)))

	out, err := runCLI(t, t.TempDir(), "txs", "--rpc", srv.URL, "--count", "1", "--batch-size", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Latest Transactions")
	assert.Contains(t, out, "1 transactions from 1 blocks")
}

func TestRPCFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	cmd := exec.Command(binaryPath, "config", "get", "rpc")
	cmd.Env = append(os.Environ(), "W3SCAN_CONFIG_DIR="+dir, "W3SCAN_RPC=http://127.0.0.1:9545")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9545", strings.TrimSpace(string(out)))
}

func TestConfigPersists(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, dir, "config", "set", "rpc_algorithm", "round-robin")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "round-robin")
	assert.FileExists(t, filepath.Join(dir, "config.json"))
}

func TestInvalidConfigBlocksOtherCommands(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"feed":{"batch_size":0}}`), 0o600))

	out, err := runCLI(t, dir, "txs")
	assert.Error(t, err)
	assert.Contains(t, out, "invalid config")

	// config commands keep working so the file can be repaired.
	_, err = runCLI(t, dir, "config", "set", "feed.batch_size", "5")
	require.NoError(t, err)
}

func TestAbiAddFromArtifact(t *testing.T) {
	dir := t.TempDir()
	addr := "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	out, err := runCLI(t, dir, "abi", "add", addr, "--file", fixtures.ABIPath("Counter.json"), "--name", "Counter")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 functions, 1 events")

	out, err = runCLI(t, dir, "abi", "show", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "incrementBy(uint256)")
	assert.Contains(t, out, "Incremented(address,uint256)")

	// The stored ABI now decodes calls to the contract.
	out, err = runCLI(t, dir, "decode", "--address", addr, selectorOf(t, dir, "incrementBy(uint256)")+strings.Repeat("0", 63)+"7")
	require.NoError(t, err, out)
	assert.Contains(t, out, "incrementBy")
}

func TestAbiRemoveConfirm(t *testing.T) {
	dir := t.TempDir()
	addr := "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	_, err := runCLI(t, dir, "abi", "add", addr, "--builtin", "erc20")
	require.NoError(t, err)

	// Answer the prompt on stdin.
	cmd := exec.Command(binaryPath, "abi", "remove", addr)
	cmd.Env = append(os.Environ(), "W3SCAN_CONFIG_DIR="+dir)
	cmd.Stdin = strings.NewReader("y\n")
	require.NoError(t, cmd.Run())

	out, err := runCLI(t, dir, "abi", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No ABIs stored.")
}

func TestUnknownCommandShowsError(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "unknowncommand")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(out), "unknown command")
}

func TestTxsHelpShowsFeedFlags(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "txs", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--batch-size")
	assert.Contains(t, out, "--max-lookback")
	assert.Contains(t, out, "--from")
}

// selectorOf asks the binary for the selector of sig.
func selectorOf(t *testing.T, dir, sig string) string {
	t.Helper()
	out, err := runCLI(t, dir, "selector", sig)
	require.NoError(t, err)
	sel := selectorPattern.FindString(out)
	require.NotEmpty(t, sel, "no selector in output: %s", out)
	return sel
}
