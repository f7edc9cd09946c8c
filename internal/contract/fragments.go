package contract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ParseFragments parses human-readable ABI fragments such as
//
//	function transfer(address to, uint256 amount) returns (bool)
//	function balanceOf(address) view returns (uint256)
//	event Transfer(address indexed from, address indexed to, uint256 value)
//	error ERC20InsufficientBalance(address sender, uint256 balance, uint256 needed)
//
// Tuple parameters are not supported.
func ParseFragments(lines []string) ([]ABIEntry, error) {
	out := make([]ABIEntry, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		e, err := parseFragment(line)
		if err != nil {
			return nil, fmt.Errorf("fragment %d %q: %w", i+1, line, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// MustParseFragments is ParseFragments for built-in tables; it panics on error.
func MustParseFragments(lines ...string) []ABIEntry {
	out, err := ParseFragments(lines)
	if err != nil {
		panic(err)
	}
	return out
}

func parseFragment(s string) (ABIEntry, error) {
	kind, rest, ok := strings.Cut(s, " ")
	if !ok {
		return ABIEntry{}, fmt.Errorf("missing name")
	}
	switch kind {
	case "function", "event", "error":
	default:
		return ABIEntry{}, fmt.Errorf("unsupported fragment kind %q", kind)
	}

	name, params, tail, err := splitCall(strings.TrimSpace(rest))
	if err != nil {
		return ABIEntry{}, err
	}

	e := ABIEntry{Name: name, Type: kind}
	if e.Inputs, err = parseParams(params, kind == "event"); err != nil {
		return ABIEntry{}, err
	}

	if kind == "function" {
		e.StateMutability = "nonpayable"
		e.Outputs = []ABIParam{}
	}

	for tail = strings.TrimSpace(tail); tail != ""; tail = strings.TrimSpace(tail) {
		var word string
		word, tail, _ = strings.Cut(tail, " ")
		switch word {
		case "view", "pure", "payable", "nonpayable":
			if kind != "function" {
				return ABIEntry{}, fmt.Errorf("%q only applies to functions", word)
			}
			e.StateMutability = word
		case "external", "public":
		case "anonymous":
			if kind != "event" {
				return ABIEntry{}, fmt.Errorf("%q only applies to events", word)
			}
			e.Anonymous = true
		default:
			if !strings.HasPrefix(word, "returns") || kind != "function" {
				return ABIEntry{}, fmt.Errorf("unexpected %q", word)
			}
			_, outs, after, err := splitCall(strings.TrimSpace(strings.TrimPrefix(word+" "+tail, "returns")))
			if err != nil {
				return ABIEntry{}, fmt.Errorf("returns: %w", err)
			}
			if e.Outputs, err = parseParams(outs, false); err != nil {
				return ABIEntry{}, err
			}
			tail = after
		}
	}
	return e, nil
}

// splitCall splits "name(a, b) rest" into name, "a, b" and "rest".
func splitCall(s string) (name, params, tail string, err error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return "", "", "", fmt.Errorf("missing '('")
	}
	closing := strings.IndexByte(s, ')')
	if closing < open {
		return "", "", "", fmt.Errorf("missing ')'")
	}
	params = s[open+1 : closing]
	if strings.ContainsRune(params, '(') {
		return "", "", "", fmt.Errorf("tuple parameters are not supported")
	}
	return strings.TrimSpace(s[:open]), params, s[closing+1:], nil
}

func parseParams(s string, allowIndexed bool) ([]ABIParam, error) {
	out := []ABIParam{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, raw := range strings.Split(s, ",") {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty parameter")
		}
		p := ABIParam{Type: canonicalType(fields[0])}
		if err := checkSize(p.Type); err != nil {
			return nil, fmt.Errorf("parameter type %q: %w", fields[0], err)
		}
		if _, err := abi.NewType(p.Type, "", nil); err != nil {
			return nil, fmt.Errorf("parameter type %q: %w", fields[0], err)
		}
		for _, f := range fields[1:] {
			switch f {
			case "indexed":
				if !allowIndexed {
					return nil, fmt.Errorf("indexed outside an event")
				}
				p.Indexed = true
			case "memory", "calldata", "storage":
			default:
				if p.Name != "" {
					return nil, fmt.Errorf("unexpected %q in parameter", f)
				}
				p.Name = f
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// checkSize enforces the int/uint (8..256, step 8) and bytesN (1..32) widths
// that abi.NewType leaves unchecked.
func checkSize(t string) error {
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	var prefix string
	lo, hi, step := 0, 0, 1
	switch {
	case strings.HasPrefix(t, "uint"):
		prefix, lo, hi, step = "uint", 8, 256, 8
	case strings.HasPrefix(t, "int"):
		prefix, lo, hi, step = "int", 8, 256, 8
	case strings.HasPrefix(t, "bytes") && t != "bytes":
		prefix, lo, hi = "bytes", 1, 32
	default:
		return nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(t, prefix))
	if err != nil || n < lo || n > hi || n%step != 0 {
		return fmt.Errorf("invalid size in %s", t)
	}
	return nil
}

func canonicalType(t string) string {
	switch {
	case t == "uint" || strings.HasPrefix(t, "uint["):
		return "uint256" + strings.TrimPrefix(t, "uint")
	case t == "int" || strings.HasPrefix(t, "int["):
		return "int256" + strings.TrimPrefix(t, "int")
	}
	return t
}
