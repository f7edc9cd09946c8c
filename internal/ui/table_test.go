package ui

import (
	"strings"
	"testing"

	"github.com/Mohsinsiddi/w3probe/internal/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValueBlockPreservesOrder(t *testing.T) {
	result := KeyValueBlock("Config", [][2]string{
		{"First", "AAA"},
		{"Second", "BBB"},
		{"Third", "CCC"},
	})
	assert.Contains(t, result, "Config")
	i1, i2, i3 := strings.Index(result, "First"), strings.Index(result, "Second"), strings.Index(result, "Third")
	require.Greater(t, i1, -1)
	assert.Less(t, i1, i2)
	assert.Less(t, i2, i3)
	assert.Contains(t, result, "╭")
}

func TestTableRender(t *testing.T) {
	tbl := NewTable([]Column{{Title: "NAME", Width: 6}, {Title: "VALUE", Width: 4}})
	tbl.AddRow(Row{"alice", "100"})
	tbl.AddRow(Row{"bob"})

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "------")
	assert.Contains(t, lines[2], "alice")
	assert.Contains(t, lines[3], "bob")
}

func TestFit(t *testing.T) {
	assert.Equal(t, "ab  ", fit("ab", 4))
	assert.Equal(t, "abcd", fit("abcdef", 4))
	assert.Equal(t, "é   ", fit("é", 4), "pads by runes, not bytes")
}

func TestTrimTo(t *testing.T) {
	assert.Equal(t, "short", trimTo("short", 10))
	assert.Equal(t, "abcd…", trimTo("abcdefgh", 5))
	assert.Equal(t, "", trimTo("abc", 0))
}

func TestReportTable(t *testing.T) {
	rep := suite.NewReport("run-42")
	rep.Add(suite.Result{Name: "testTransfer", Passed: true})
	rep.Add(suite.Result{Name: "testFailTransferInsufficientBalance", Passed: true, ExpectRevert: true, Reverted: true, Reason: "execution reverted: ERC20InsufficientBalance"})
	rep.Add(suite.Result{Name: "testApproveAndTransferFrom", Failures: []string{"allowance after transferFrom: got 1, want 2"}})

	out := ReportTable(rep)
	assert.Contains(t, out, "testTransfer")
	assert.Contains(t, out, "reverted: execution reverted")
	assert.Contains(t, out, "1 assertion(s) failed")
	assert.Contains(t, out, "assert: allowance after transferFrom")
	assert.Contains(t, out, "2 passed, 1 failed")
	assert.Contains(t, out, "run-42")
}
