package e2e_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mohsinsiddi/w3probe/test/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary before all E2E tests.
	tmp, err := os.MkdirTemp("", "w3probe-e2e-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	binaryPath = filepath.Join(tmp, "w3probe")
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

// cleanEnv drops variables that would leak the developer's setup into a run.
func cleanEnv() []string {
	var out []string
	for _, kv := range os.Environ() {
		switch strings.SplitN(kv, "=", 2)[0] {
		case "RPC_URL", "CONTRACT_ADDRESS", "PRIVATE_KEY", "TOKEN_PRIVATE_KEY",
			"ALICE_PRIVATE_KEY", "BOB_PRIVATE_KEY", "W3PROBE_IMPERSONATION", "W3PROBE_CONFIG_DIR":
			continue
		}
		out = append(out, kv)
	}
	return out
}

func runCLI(t *testing.T, configDir string, extra map[string]string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(cleanEnv(), "W3PROBE_CONFIG_DIR="+configDir)
	for k, v := range extra {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var stdout, stderr strings.Builder
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), nil, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "w3probe")
	assert.Contains(t, out, "0.1.0")
}

func TestHelpCommand(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), nil, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"run", "list", "studio", "ping", "keys", "config", "--config", "--verbose"} {
		assert.Contains(t, out, sub)
	}
}

func TestListCommand(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), nil, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "testTransfer")
	assert.Contains(t, out, "testFailTransferInsufficientBalance")
	assert.Contains(t, out, "testApproveAndTransferFrom")
}

func TestConfigSetAndList(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runCLI(t, dir, nil, "config", "set", "impersonation", "node")
	require.NoError(t, err)

	out, _, err := runCLI(t, dir, nil, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "impersonation")
	assert.Contains(t, out, "node")

	_, _, err = runCLI(t, dir, nil, "config", "set", "impersonation", "magic")
	assert.Error(t, err)
}

func TestRunJSONAgainstNode(t *testing.T) {
	node := fixtures.NewChain(t)
	out, stderr, err := runCLI(t, t.TempDir(), fixtures.Env(node.URL), "run", "-o", "json")
	require.NoError(t, err, stderr)

	var rep struct {
		RunID   string `json:"run_id"`
		Passed  int    `json:"passed"`
		Failed  int    `json:"failed"`
		Results []struct {
			Name   string `json:"name"`
			Passed bool   `json:"passed"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 3, rep.Passed)
	assert.Zero(t, rep.Failed)
	require.Len(t, rep.Results, 3)
	assert.Equal(t, "testTransfer", rep.Results[0].Name)
}

func TestRunSingleActionTable(t *testing.T) {
	node := fixtures.NewChain(t)
	out, stderr, err := runCLI(t, t.TempDir(), fixtures.Env(node.URL), "run", "testApproveAndTransferFrom", "--isolate")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "testApproveAndTransferFrom")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestRunWithoutContractFails(t *testing.T) {
	_, stderr, err := runCLI(t, t.TempDir(), nil, "run")
	require.Error(t, err)
	assert.Contains(t, stderr, "setup failed at config")
	assert.Contains(t, stderr, "contract_address")
}

func TestPingAgainstNode(t *testing.T) {
	node := fixtures.NewChain(t)
	out, stderr, err := runCLI(t, t.TempDir(), fixtures.Env(node.URL), "ping")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "31337")
	assert.Contains(t, out, fixtures.TokenAddress.Hex())
}

func TestKeysRejectsUnknownRole(t *testing.T) {
	_, stderr, err := runCLI(t, t.TempDir(), nil, "keys", "set", "mallory", "--key", fixtures.AliceKey)
	require.Error(t, err)
	assert.Contains(t, stderr, "unknown role")
}
