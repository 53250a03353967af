package decode

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Safe v1.4.1 execTransaction calldata layout: 4-byte selector, then
// `to` (address, right-aligned in a 32-byte word) and `value`
// (uint256). Only the first two parameters matter for funding
// verification.
const safeExecMinLen = 4 + 32 + 32

// SafeExecCall is the inner transfer of a Safe execTransaction.
type SafeExecCall struct {
	To    common.Address
	Value *big.Int
}

// SafeExecTransaction decodes the inner (to, value) from execTransaction calldata.
func SafeExecTransaction(input []byte) (SafeExecCall, error) {
	if len(input) < safeExecMinLen {
		return SafeExecCall{}, fmt.Errorf("execTransaction calldata too short: %d bytes", len(input))
	}

	toWord := input[4:36]
	valueWord := input[36:68]

	return SafeExecCall{
		To:    common.BytesToAddress(toWord[12:]),
		Value: new(big.Int).SetBytes(valueWord),
	}, nil
}
