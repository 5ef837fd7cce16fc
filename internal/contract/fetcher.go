package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LoadABIFile loads an ABI from a local file that is either:
//   - a raw ABI JSON array: [{"type":"function",...}, ...]
//   - a Hardhat/Foundry artifact: {"abi":[...],"bytecode":"0x...",...}
//
// It returns the ABI array as JSON.
func LoadABIFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read ABI file: %w", err)
	}
	raw, err := ParseABI(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

// ParseABI accepts the same formats as LoadABIFile from memory.
func ParseABI(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("ABI is empty")
	}
	raw, err := extractABI(data)
	if err != nil {
		return nil, err
	}
	if err := validateABI(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func extractABI(data []byte) ([]byte, error) {
	if data[0] == '[' {
		return data, nil
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("invalid ABI JSON: expected an array or an artifact object")
	}

	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("invalid artifact JSON: %w", err)
	}
	inner := bytes.TrimSpace(artifact.ABI)
	if len(inner) == 0 || inner[0] != '[' {
		return nil, fmt.Errorf("file is a JSON object, not an ABI array; a Hardhat/Foundry artifact must have an \"abi\" key")
	}
	return inner, nil
}

// validateABI checks that data parses and declares at least one function or event.
func validateABI(data []byte) error {
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid ABI JSON: %w", err)
	}
	if len(parsed.Methods) == 0 && len(parsed.Events) == 0 {
		return fmt.Errorf("ABI has no functions or events")
	}
	return nil
}
