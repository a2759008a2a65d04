package system

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/artbay/nft-server/pkg/solana"
	"github.com/artbay/nft-server/pkg/solana/binary"
)

// ProgramKey is the system program id: 11111111111111111111111111111111
var ProgramKey [32]byte

// RentSysVar is the rent sysvar: SysvarRent111111111111111111111111111111111
var RentSysVar = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")

const commandCreateAccount uint32 = 0

// CreateAccount returns an instruction that creates a new account owned by
// the provided program, funded with enough lamports for the requested size.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   lamports: u64,
	//   space: u64,
	//   owner: Pubkey,
	// }
	data := make([]byte, 0, 4+2*8+32)
	data = binary.AppendUint32(data, commandCreateAccount)
	data = binary.AppendUint64(data, lamports)
	data = binary.AppendUint64(data, size)
	data = binary.AppendKey32(data, owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

// DecompileCreateAccount decodes the instruction at the given index as a
// system CreateAccount, validating the program, discriminator, account count
// and data size exactly.
func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey[:]) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != 52 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	command, offset, err := binary.ReadUint32(i.Data, 0)
	if err != nil {
		return nil, err
	}
	if command != commandCreateAccount {
		return nil, solana.ErrIncorrectInstruction
	}

	v := &DecompiledCreateAccount{
		Funder:  m.Accounts[i.Accounts[0]],
		Address: m.Accounts[i.Accounts[1]],
	}
	if v.Lamports, offset, err = binary.ReadUint64(i.Data, offset); err != nil {
		return nil, err
	}
	if v.Size, offset, err = binary.ReadUint64(i.Data, offset); err != nil {
		return nil, err
	}
	if v.Owner, _, err = binary.ReadKey32(i.Data, offset); err != nil {
		return nil, err
	}

	return v, nil
}
