package contract_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3scan/internal/contract"
	"github.com/Mohsinsiddi/w3scan/test/fixtures"
)

func TestLoadABIFileFromArtifact(t *testing.T) {
	raw, err := contract.LoadABIFile(fixtures.ABIPath("Counter.json"))
	require.NoError(t, err)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &entries))
	assert.Len(t, entries, 3)
}

func TestLoadABIFileFromArray(t *testing.T) {
	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	require.NoError(t, json.Unmarshal(fixtures.LoadABI(t, "Counter.json"), &artifact))

	path := filepath.Join(t.TempDir(), "Counter.abi.json")
	require.NoError(t, os.WriteFile(path, artifact.ABI, 0o600))

	raw, err := contract.LoadABIFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, string(artifact.ABI), string(raw))
}

func TestLoadABIFileRejects(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	_, err := contract.LoadABIFile(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "cannot read ABI file")

	_, err = contract.LoadABIFile(write("empty.json", "  \n"))
	assert.ErrorContains(t, err, "empty")

	_, err = contract.LoadABIFile(write("object.json", `{"bytecode":"0x"}`))
	assert.ErrorContains(t, err, `"abi" key`)

	_, err = contract.LoadABIFile(write("bare.json", `[]`))
	assert.ErrorContains(t, err, "no functions or events")

	_, err = contract.LoadABIFile(write("text.json", "hello"))
	assert.ErrorContains(t, err, "expected an array")
}
