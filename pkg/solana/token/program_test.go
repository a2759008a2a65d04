package token

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbay/nft-server/pkg/solana"
	"github.com/artbay/nft-server/pkg/solana/system"
)

func TestInitializeMint(t *testing.T) {
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	instruction := InitializeMint(mint, payer, payer, 0)
	assert.Len(t, instruction.Data, 1+1+32+1+32)
	require.Len(t, instruction.Accounts, 2)
	assert.EqualValues(t, mint, instruction.Accounts[0].PublicKey)
	assert.EqualValues(t, system.RentSysVar, instruction.Accounts[1].PublicKey)

	txn := solana.NewTransaction(payer, instruction)

	cmd, err := GetCommand(txn.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, CommandInitializeMint, cmd)

	decompiled, err := DecompileInitializeMint(txn.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, mint, decompiled.Mint)
	assert.EqualValues(t, 0, decompiled.Decimals)
	assert.EqualValues(t, payer, decompiled.MintAuthority)
	assert.EqualValues(t, payer, decompiled.FreezeAuthority)
}

func TestInitializeMint_NoFreezeAuthority(t *testing.T) {
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	instruction := InitializeMint(mint, payer, nil, 5)
	assert.Len(t, instruction.Data, 1+1+32+1)

	txn := solana.NewTransaction(payer, instruction)

	decompiled, err := DecompileInitializeMint(txn.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, decompiled.Decimals)
	assert.Empty(t, decompiled.FreezeAuthority)
}

func TestDecompileInitializeMint_Invalid(t *testing.T) {
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	// Trailing garbage after the freeze authority is rejected.
	instruction := InitializeMint(mint, payer, payer, 0)
	instruction.Data = append(instruction.Data, 0xff)
	txn := solana.NewTransaction(payer, instruction)
	_, err = DecompileInitializeMint(txn.Message, 0)
	assert.Error(t, err)

	// Wrong command.
	txn = solana.NewTransaction(payer, MintTo(mint, mint, payer, 1))
	_, err = DecompileInitializeMint(txn.Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	// Wrong rent sysvar.
	bad := InitializeMint(mint, payer, payer, 0)
	bad.Accounts[1] = solana.NewReadonlyAccountMeta(payer, false)
	txn = solana.NewTransaction(payer, bad)
	_, err = DecompileInitializeMint(txn.Message, 0)
	assert.Error(t, err)
}

func TestMintTo(t *testing.T) {
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dest, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	instruction := MintTo(mint, dest, payer, 1)
	assert.Len(t, instruction.Data, 9)
	require.Len(t, instruction.Accounts, 3)
	assert.True(t, instruction.Accounts[2].IsSigner)

	txn := solana.NewTransaction(payer, instruction)

	decompiled, err := DecompileMintTo(txn.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, mint, decompiled.Mint)
	assert.EqualValues(t, dest, decompiled.Destination)
	assert.EqualValues(t, payer, decompiled.Authority)
	assert.EqualValues(t, 1, decompiled.Amount)
}

func TestDecompileMintTo_Invalid(t *testing.T) {
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	txn := solana.NewTransaction(payer, MintTo(mint, mint, payer, 1))

	_, err = DecompileMintTo(txn.Message, 3)
	assert.Error(t, err)

	txn.Message.Instructions[0].Data = txn.Message.Instructions[0].Data[:5]
	_, err = DecompileMintTo(txn.Message, 0)
	assert.Error(t, err)

	txn = solana.NewTransaction(payer, InitializeMint(mint, payer, payer, 0))
	_, err = DecompileMintTo(txn.Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}
