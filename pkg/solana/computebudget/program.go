package compute_budget

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/artbay/nft-server/pkg/solana"
	"github.com/artbay/nft-server/pkg/solana/binary"
)

// ComputeBudget111111111111111111111111111111
var ProgramKey = ed25519.PublicKey{3, 6, 70, 111, 229, 33, 23, 50, 255, 236, 173, 186, 114, 195, 155, 231, 188, 140, 229, 187, 197, 247, 18, 107, 44, 67, 155, 58, 64, 0, 0, 0}

const (
	commandRequestUnits uint8 = iota
	commandRequestHeapFrame
	commandSetComputeUnitLimit
	commandSetComputeUnitPrice
)

// SetComputeUnitLimit returns an instruction requesting the given compute
// unit ceiling for the transaction.
func SetComputeUnitLimit(computeUnitLimit uint32) solana.Instruction {
	data := make([]byte, 0, 1+4)
	data = binary.AppendUint8(data, commandSetComputeUnitLimit)
	data = binary.AppendUint32(data, computeUnitLimit)

	return solana.NewInstruction(
		ProgramKey,
		data,
	)
}

// SetComputeUnitPrice returns an instruction setting the priority fee in
// micro-lamports per compute unit.
func SetComputeUnitPrice(computeUnitPrice uint64) solana.Instruction {
	data := make([]byte, 0, 1+8)
	data = binary.AppendUint8(data, commandSetComputeUnitPrice)
	data = binary.AppendUint64(data, computeUnitPrice)

	return solana.NewInstruction(
		ProgramKey,
		data,
	)
}

// ParseSetComputeUnitLimitIxnData decodes the data of a SetComputeUnitLimit
// instruction.
func ParseSetComputeUnitLimitIxnData(data []byte) (uint32, error) {
	if len(data) != 5 {
		return 0, errors.Errorf("invalid length: %d", len(data))
	}

	if data[0] != commandSetComputeUnitLimit {
		return 0, solana.ErrIncorrectInstruction
	}

	v, _, err := binary.ReadUint32(data, 1)
	return v, err
}

// ParseSetComputeUnitPriceIxnData decodes the data of a SetComputeUnitPrice
// instruction.
func ParseSetComputeUnitPriceIxnData(data []byte) (uint64, error) {
	if len(data) != 9 {
		return 0, errors.Errorf("invalid length: %d", len(data))
	}

	if data[0] != commandSetComputeUnitPrice {
		return 0, solana.ErrIncorrectInstruction
	}

	v, _, err := binary.ReadUint64(data, 1)
	return v, err
}

// IsComputeBudgetInstruction reports whether the instruction at the given
// index is addressed to the compute budget program.
func IsComputeBudgetInstruction(m solana.Message, index int) bool {
	if index < 0 || index >= len(m.Instructions) {
		return false
	}

	return bytes.Equal(m.Accounts[m.Instructions[index].ProgramIndex], ProgramKey)
}
