package system_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbay/nft-server/pkg/solana"
	"github.com/artbay/nft-server/pkg/solana/system"
	"github.com/artbay/nft-server/pkg/solana/token"
)

func TestCreateAccount(t *testing.T) {
	funder, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	address, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	instruction := system.CreateAccount(funder, address, token.ProgramKey, 12345, token.MintSize)
	assert.Len(t, instruction.Data, 52)
	require.Len(t, instruction.Accounts, 2)

	assert.EqualValues(t, funder, instruction.Accounts[0].PublicKey)
	assert.True(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.EqualValues(t, address, instruction.Accounts[1].PublicKey)
	assert.True(t, instruction.Accounts[1].IsSigner)
	assert.True(t, instruction.Accounts[1].IsWritable)

	txn := solana.NewTransaction(funder, instruction)

	decompiled, err := system.DecompileCreateAccount(txn.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, funder, decompiled.Funder)
	assert.EqualValues(t, address, decompiled.Address)
	assert.EqualValues(t, token.ProgramKey, decompiled.Owner)
	assert.EqualValues(t, 12345, decompiled.Lamports)
	assert.EqualValues(t, token.MintSize, decompiled.Size)
}

func TestDecompileCreateAccount_Invalid(t *testing.T) {
	funder, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	address, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	txn := solana.NewTransaction(funder, system.CreateAccount(funder, address, token.ProgramKey, 10, 20))

	_, err = system.DecompileCreateAccount(txn.Message, 1)
	assert.Error(t, err)
	_, err = system.DecompileCreateAccount(txn.Message, -1)
	assert.Error(t, err)

	// Truncated data.
	short := txn
	short.Message.Instructions[0].Data = short.Message.Instructions[0].Data[:51]
	_, err = system.DecompileCreateAccount(short.Message, 0)
	assert.Error(t, err)

	// Wrong discriminator.
	wrongCmd := solana.NewTransaction(funder, system.CreateAccount(funder, address, token.ProgramKey, 10, 20))
	wrongCmd.Message.Instructions[0].Data[0] = 1
	_, err = system.DecompileCreateAccount(wrongCmd.Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	// Wrong program.
	other := solana.NewInstruction(
		token.ProgramKey,
		make([]byte, 52),
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
	wrongProgram := solana.NewTransaction(funder, other)
	_, err = system.DecompileCreateAccount(wrongProgram.Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}
