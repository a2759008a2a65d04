// Package marketplace builds and decodes the marketplace program's buy-now
// sell instruction, which lists a mint for a fixed price.
package marketplace

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/artbay/nft-server/pkg/solana"
	"github.com/artbay/nft-server/pkg/solana/binary"
	"github.com/artbay/nft-server/pkg/solana/system"
	"github.com/artbay/nft-server/pkg/solana/token"
)

// ProgramKey is the address of the marketplace program.
var ProgramKey = solana.MustPublicKeyFromBase58("M2mx93ekt1fmXSVkTrUL9xVFHkmME8HTUi5Cyc5aF7K")

var depositAuthoritySeed = []byte("deposit_authority")

// sellDiscriminator is the 8-byte anchor-style instruction tag, derived from
// the instruction name the same way on the builder and verifier sides.
var sellDiscriminator = anchorDiscriminator("sell")

// sellDataSize is the exact serialized size of the sell payload:
// discriminator + bump + price + quantity + start time + settlement flag +
// settlement mint.
const sellDataSize = 8 + 1 + 8 + 2 + 8 + 1 + 32

func anchorDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:8]
}

// GetDepositAuthority derives the program-owned deposit authority PDA for a
// mint: derive(["deposit_authority", mint]).
func GetDepositAuthority(mint ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(ProgramKey, depositAuthoritySeed, mint)
}

// Sell returns an instruction that lists the mint for a fixed native-currency
// price. Quantity is always 1 and settlement is in the native currency; the
// settlement mint field carries the system program id as a placeholder.
//
// The sale state account must be a freshly generated keypair that co-signs
// the transaction.
func Sell(seller, sellerTokenAccount, mint, saleState ed25519.PublicKey, price, startTime uint64) (solana.Instruction, error) {
	depositAuthority, bump, err := GetDepositAuthority(mint)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "failed to derive deposit authority")
	}

	depositTokenAccount, err := token.GetAssociatedAccount(depositAuthority, mint)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "failed to derive deposit token account")
	}

	// Sell {
	//   deposit_authority_bump: u8,
	//   price: u64,
	//   quantity: u16,
	//   start_time: u64,      // 0 = immediate
	//   settle_in_token: bool // false = native currency
	//   settlement_mint: Pubkey,
	// }
	data := make([]byte, 0, sellDataSize)
	data = append(data, sellDiscriminator...)
	data = binary.AppendUint8(data, bump)
	data = binary.AppendUint64(data, price)
	data = binary.AppendUint16(data, 1)
	data = binary.AppendUint64(data, startTime)
	data = binary.AppendUint8(data, 0)
	data = binary.AppendKey32(data, system.ProgramKey[:])

	// # Account references
	//   0. [WRITE, SIGNER] Seller
	//   1. [WRITE] Seller's source token account
	//   2. [] Mint
	//   3. [] Deposit authority PDA
	//   4. [WRITE, SIGNER] Sale state account
	//   5. [WRITE] Deposit token account
	//   6. [] Associated token program
	//   7. [] System program
	//   8. [] Token program
	//   9. [] Rent sysvar
	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(seller, true),
		solana.NewAccountMeta(sellerTokenAccount, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(depositAuthority, false),
		solana.NewAccountMeta(saleState, true),
		solana.NewAccountMeta(depositTokenAccount, false),
		solana.NewReadonlyAccountMeta(token.AssociatedTokenAccountProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	), nil
}

type DecompiledSell struct {
	Seller              ed25519.PublicKey
	SellerTokenAccount  ed25519.PublicKey
	Mint                ed25519.PublicKey
	DepositAuthority    ed25519.PublicKey
	SaleState           ed25519.PublicKey
	DepositTokenAccount ed25519.PublicKey

	DepositAuthorityBump uint8
	Price                uint64
	Quantity             uint16
	StartTime            uint64
	SettleInToken        bool
	SettlementMint       ed25519.PublicKey
}

// DecompileSell decodes the instruction at the given index as a marketplace
// sell, validating the program, the full 8-byte discriminator, account count
// and the exact data size.
func DecompileSell(m solana.Message, index int) (*DecompiledSell, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) < 8 || !bytes.Equal(i.Data[:8], sellDiscriminator) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 10 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != sellDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}
	if !bytes.Equal(m.Accounts[i.Accounts[6]], token.AssociatedTokenAccountProgramKey) {
		return nil, errors.New("associated token program key mismatch")
	}
	if !bytes.Equal(m.Accounts[i.Accounts[7]], system.ProgramKey[:]) {
		return nil, errors.New("system program key mismatch")
	}
	if !bytes.Equal(m.Accounts[i.Accounts[8]], token.ProgramKey) {
		return nil, errors.New("token program key mismatch")
	}
	if !bytes.Equal(m.Accounts[i.Accounts[9]], system.RentSysVar) {
		return nil, errors.New("rent sysvar mismatch")
	}

	v := &DecompiledSell{
		Seller:              m.Accounts[i.Accounts[0]],
		SellerTokenAccount:  m.Accounts[i.Accounts[1]],
		Mint:                m.Accounts[i.Accounts[2]],
		DepositAuthority:    m.Accounts[i.Accounts[3]],
		SaleState:           m.Accounts[i.Accounts[4]],
		DepositTokenAccount: m.Accounts[i.Accounts[5]],
	}

	var err error
	var offset = 8
	if v.DepositAuthorityBump, offset, err = binary.ReadUint8(i.Data, offset); err != nil {
		return nil, err
	}
	if v.Price, offset, err = binary.ReadUint64(i.Data, offset); err != nil {
		return nil, err
	}
	if v.Quantity, offset, err = binary.ReadUint16(i.Data, offset); err != nil {
		return nil, err
	}
	if v.StartTime, offset, err = binary.ReadUint64(i.Data, offset); err != nil {
		return nil, err
	}
	if v.SettleInToken, offset, err = binary.ReadOption(i.Data, offset); err != nil {
		return nil, err
	}
	if v.SettlementMint, _, err = binary.ReadKey32(i.Data, offset); err != nil {
		return nil, err
	}

	return v, nil
}
