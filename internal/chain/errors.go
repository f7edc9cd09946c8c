package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertError is a call or transaction the EVM rejected.
type RevertError struct {
	Reason string      // decoded Error(string)/Panic(uint256), or the node's message
	Data   []byte      // raw revert payload, if the node returned one
	TxHash common.Hash // set when a mined transaction reverted
}

func (e *RevertError) Error() string {
	var b strings.Builder
	if e.TxHash != (common.Hash{}) {
		fmt.Fprintf(&b, "transaction %s reverted", e.TxHash.Hex())
	} else {
		b.WriteString("execution reverted")
	}
	switch {
	case e.Reason != "":
		b.WriteString(": " + e.Reason)
	case len(e.Data) >= 4:
		fmt.Fprintf(&b, ": custom error %s", hexutil.Encode(e.Data[:4]))
	}
	return b.String()
}

// Selector returns the 4-byte error selector, or nil.
func (e *RevertError) Selector() []byte {
	if len(e.Data) < 4 {
		return nil
	}
	return e.Data[:4]
}

// IsRevert reports whether err is (or wraps) a *RevertError.
func IsRevert(err error) bool {
	var re *RevertError
	return errors.As(err, &re)
}

// AsRevert extracts the *RevertError from err.
func AsRevert(err error) (*RevertError, bool) {
	var re *RevertError
	ok := errors.As(err, &re)
	return re, ok
}

// wrapCallError turns node revert responses into *RevertError and leaves
// transport errors as they are.
func wrapCallError(err error) error {
	if err == nil {
		return nil
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if data := revertData(de.ErrorData()); data != nil {
			re := &RevertError{Data: data}
			if reason, uerr := abi.UnpackRevert(data); uerr == nil {
				re.Reason = reason
			}
			return re
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "revert") {
		return &RevertError{Reason: extractRevertReason(msg)}
	}
	return err
}

func revertData(v interface{}) []byte {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) == 0 {
		return nil
	}
	return b
}

// extractRevertReason tries to pull the revert reason out of an RPC error message.
func extractRevertReason(errMsg string) string {
	// Common pattern: "execution reverted: <reason>"
	if idx := strings.Index(errMsg, "execution reverted:"); idx >= 0 {
		return strings.TrimSpace(errMsg[idx+len("execution reverted:"):])
	}
	if idx := strings.Index(errMsg, "revert"); idx >= 0 {
		return strings.TrimSpace(errMsg[idx:])
	}
	return errMsg
}
