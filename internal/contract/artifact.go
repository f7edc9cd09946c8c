package contract

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Resolve returns the ABI for ref, which is either a built-in ID or a path
// to an ABI file (see LoadABIFile).
func Resolve(ref string) ([]ABIEntry, error) {
	if b, ok := GetBuiltin(ref); ok {
		return b.ABI, nil
	}
	if _, err := os.Stat(ref); err != nil {
		return nil, fmt.Errorf("%q is neither a built-in ABI nor a readable file", ref)
	}
	return LoadABIFile(ref)
}

// LoadABIFile loads an ABI from a local file that is one of:
//   - a raw ABI JSON array: [{"type":"function",...}, ...]
//   - a Hardhat/Foundry artifact: {"abi":[...],"bytecode":"0x...",...}
//   - human-readable fragments, one per line
//
// All formats are detected automatically.
func LoadABIFile(path string) ([]ABIEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read ABI file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("ABI file is empty: %s", path)
	}

	var entries []ABIEntry
	switch data[0] {
	case '{':
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(data, &artifact); err != nil {
			return nil, fmt.Errorf("invalid artifact JSON: %w", err)
		}
		if len(artifact.ABI) < 2 || artifact.ABI[0] != '[' {
			return nil, fmt.Errorf("artifact has no \"abi\" array: %s", path)
		}
		if err := json.Unmarshal(artifact.ABI, &entries); err != nil {
			return nil, fmt.Errorf("parsing artifact ABI: %w", err)
		}
	case '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("invalid ABI JSON: %w", err)
		}
	default:
		var lines []string
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		if entries, err = ParseFragments(lines); err != nil {
			return nil, err
		}
	}

	if err := validateABI(entries, path); err != nil {
		return nil, err
	}
	return entries, nil
}

// validateABI checks that the parsed ABI has at least one function.
func validateABI(entries []ABIEntry, path string) error {
	for _, e := range entries {
		if e.Type == "function" {
			return nil
		}
	}
	return fmt.Errorf("ABI has %d entries but no functions: %s", len(entries), path)
}
