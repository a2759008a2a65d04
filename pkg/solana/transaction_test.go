package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Taken from: https://github.com/solana-labs/solana/blob/14339dec0a960e8161d1165b6a8e5cfb73e78f23/sdk/src/transaction.rs#L523
const rustGenerated = "AUc7Cbu+gZalFSGeSFdukHhP7oSGaSdmdNEd5ZokaSysdoMWfIOzjrAbdaBZZuDMAfyNAogAJdrhgVya+jthsgoBAAEDnON0wdcmjhYIDuXvd10F2qEjAyEAJGSe/CGhYbk+WWMBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

func TestTransaction_CrossImpl(t *testing.T) {
	keypair := ed25519.PrivateKey{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75, 156, 227, 116, 193, 215, 38, 142, 22, 8,
		14, 229, 239, 119, 93, 5, 218, 161, 35, 3, 33, 0, 36, 100, 158, 252, 33, 161, 97, 185,
		62, 89, 99}
	programID := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4,
		2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	tx := NewTransaction(
		keypair.Public().(ed25519.PublicKey),
		NewInstruction(
			programID,
			[]byte{1, 2, 3},
			NewAccountMeta(keypair.Public().(ed25519.PublicKey), true),
			NewAccountMeta(to, false),
		),
	)
	require.NoError(t, tx.Sign(keypair))

	generated, err := base64.StdEncoding.DecodeString(rustGenerated)
	require.NoError(t, err)
	assert.Equal(t, generated, tx.Marshal())
}

func TestTransaction_RoundTrip(t *testing.T) {
	payer := ed25519.NewKeyFromSeed(make([]byte, 32))
	program := make(ed25519.PublicKey, ed25519.PublicKeySize)
	program[0] = 7

	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tx := NewTransaction(
		payer.Public().(ed25519.PublicKey),
		NewInstruction(
			program,
			[]byte{1, 2, 3},
			NewAccountMeta(payer.Public().(ed25519.PublicKey), true),
			NewReadonlyAccountMeta(other, false),
		),
	)
	tx.SetBlockhash(Blockhash{1, 2, 3})
	require.NoError(t, tx.Sign(payer))

	var decoded Transaction
	require.NoError(t, decoded.Unmarshal(tx.Marshal()))
	assert.Equal(t, tx.Signatures, decoded.Signatures)
	assert.Equal(t, tx.Message.Header, decoded.Message.Header)
	assert.Equal(t, tx.Message.RecentBlockhash, decoded.Message.RecentBlockhash)
	assert.Equal(t, tx.Message.Instructions, decoded.Message.Instructions)
	require.Equal(t, len(tx.Message.Accounts), len(decoded.Message.Accounts))
	for i := range tx.Message.Accounts {
		assert.EqualValues(t, tx.Message.Accounts[i], decoded.Message.Accounts[i])
	}
}

func TestTransaction_PartialSign(t *testing.T) {
	payer, payerPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, mintPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	program := make(ed25519.PublicKey, ed25519.PublicKeySize)
	program[0] = 9

	tx := NewTransaction(
		payer,
		NewInstruction(
			program,
			[]byte{0},
			NewAccountMeta(payer, true),
			NewAccountMeta(mint, true),
		),
	)
	require.EqualValues(t, 2, tx.Message.Header.NumSignatures)

	// Signing with only the ephemeral account leaves the payer slot zeroed.
	require.NoError(t, tx.Sign(mintPriv))

	var zero Signature
	assert.Equal(t, zero, tx.Signatures[0])
	assert.NotEqual(t, zero, tx.Signatures[1])
	assert.True(t, ed25519.Verify(mint, tx.Message.Marshal(), tx.Signatures[1][:]))

	// The payer can fill in its slot afterwards.
	require.NoError(t, tx.Sign(payerPriv))
	assert.True(t, ed25519.Verify(payer, tx.Message.Marshal(), tx.Signatures[0][:]))
}

func TestTransaction_InvalidSigners(t *testing.T) {
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, strangerPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	readonly, readonlyPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	program := make(ed25519.PublicKey, ed25519.PublicKeySize)
	program[0] = 9

	tx := NewTransaction(
		payer,
		NewInstruction(
			program,
			nil,
			NewAccountMeta(payer, true),
			NewReadonlyAccountMeta(readonly, false),
		),
	)

	// Not referenced by the transaction at all.
	assert.Error(t, tx.Sign(strangerPriv))

	// Referenced, but not as a signer.
	assert.Error(t, tx.Sign(readonlyPriv))
}

func TestMessage_Accessors(t *testing.T) {
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	absent, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	program := make(ed25519.PublicKey, ed25519.PublicKeySize)
	program[0] = 3

	tx := NewTransaction(
		payer,
		NewInstruction(
			program,
			nil,
			NewAccountMeta(payer, true),
			NewReadonlyAccountMeta(other, false),
		),
	)

	assert.True(t, tx.Message.ContainsAccount(payer))
	assert.True(t, tx.Message.ContainsAccount(other))
	assert.True(t, tx.Message.ContainsAccount(program))
	assert.False(t, tx.Message.ContainsAccount(absent))

	key, err := tx.Message.ProgramKeyAt(0)
	require.NoError(t, err)
	assert.EqualValues(t, program, key)

	_, err = tx.Message.ProgramKeyAt(1)
	assert.Error(t, err)
}

func TestTransaction_UnmarshalInvalid(t *testing.T) {
	var tx Transaction
	assert.Error(t, tx.Unmarshal(nil))

	// Versioned message prefix is rejected; only legacy is supported.
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	program := make(ed25519.PublicKey, ed25519.PublicKeySize)
	program[0] = 1

	valid := NewTransaction(
		payer,
		NewInstruction(program, nil, NewAccountMeta(payer, true)),
	)
	raw := valid.Marshal()

	// First message byte carries the version bit.
	msgOffset := 1 + ed25519.SignatureSize
	raw[msgOffset] |= 0x80
	assert.Error(t, tx.Unmarshal(raw))

	// Truncations at every boundary fail rather than panic.
	raw = valid.Marshal()
	for i := 0; i < len(raw); i++ {
		assert.Error(t, tx.Unmarshal(raw[:i]))
	}
}
