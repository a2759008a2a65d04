// Package metadata builds and decodes token-metadata program instructions:
// metadata account and master edition creation for one-of-one NFTs.
package metadata

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/artbay/nft-server/pkg/solana"
	"github.com/artbay/nft-server/pkg/solana/binary"
	"github.com/artbay/nft-server/pkg/solana/system"
	"github.com/artbay/nft-server/pkg/solana/token"
)

// ProgramKey is the address of the token metadata program.
var ProgramKey = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

// Instruction discriminators within the token metadata program.
//
// Reference: https://github.com/metaplex-foundation/mpl-token-metadata/blob/main/programs/token-metadata/program/src/instruction/mod.rs
const (
	commandCreateMetadataAccountV3 uint8 = 33
	commandCreateMasterEditionV3   uint8 = 17
)

// On-chain size limits for metadata fields, in UTF-8 bytes.
//
// Reference: https://github.com/metaplex-foundation/mpl-token-metadata/blob/main/programs/token-metadata/program/src/state/data.rs
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

var metadataSeed = []byte("metadata")
var editionSeed = []byte("edition")

// GetMetadataAddress derives the metadata PDA for a mint:
// derive(["metadata", program, mint]).
func GetMetadataAddress(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(ProgramKey, metadataSeed, ProgramKey, mint)
}

// GetMasterEditionAddress derives the master edition PDA for a mint:
// derive(["metadata", program, mint, "edition"]).
func GetMasterEditionAddress(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(ProgramKey, metadataSeed, ProgramKey, mint, editionSeed)
}

// Creator is an entry in the metadata creator list.
type Creator struct {
	Address  ed25519.PublicKey
	Verified bool
	Share    uint8
}

// Data carries the metadata fields written on chain. Collection and uses are
// always empty for the assets this server mints.
type Data struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	IsMutable            bool
}

// CreateMetadataAccountV3 returns an instruction that creates the metadata
// account at the metadata PDA for the mint, along with the derived PDA.
func CreateMetadataAccountV3(mint, mintAuthority, payer, updateAuthority ed25519.PublicKey, data Data) (solana.Instruction, ed25519.PublicKey, error) {
	addr, err := GetMetadataAddress(mint)
	if err != nil {
		return solana.Instruction{}, nil, errors.Wrap(err, "failed to derive metadata address")
	}

	// CreateMetadataAccountV3 {
	//   data: DataV2 {
	//     name: String,
	//     symbol: String,
	//     uri: String,
	//     seller_fee_basis_points: u16,
	//     creators: Option<Vec<Creator>>,
	//     collection: Option<Collection>,
	//     uses: Option<Uses>,
	//   },
	//   is_mutable: bool,
	//   collection_details: Option<CollectionDetails>,
	// }
	raw := []byte{commandCreateMetadataAccountV3}
	raw = binary.AppendString(raw, data.Name)
	raw = binary.AppendString(raw, data.Symbol)
	raw = binary.AppendString(raw, data.URI)
	raw = binary.AppendUint16(raw, data.SellerFeeBasisPoints)
	raw = binary.AppendOption(raw, len(data.Creators) > 0)
	if len(data.Creators) > 0 {
		raw = binary.AppendVecLen(raw, len(data.Creators))
		for _, c := range data.Creators {
			raw = binary.AppendKey32(raw, c.Address)
			raw = binary.AppendOption(raw, c.Verified)
			raw = binary.AppendUint8(raw, c.Share)
		}
	}
	raw = binary.AppendOption(raw, false) // collection
	raw = binary.AppendOption(raw, false) // uses
	raw = binary.AppendOption(raw, data.IsMutable)
	raw = binary.AppendOption(raw, false) // collection details

	// # Account references
	//   0. [WRITE] Metadata PDA
	//   1. [] Mint
	//   2. [SIGNER] Mint authority
	//   3. [WRITE, SIGNER] Payer
	//   4. [SIGNER] Update authority
	//   5. [] System program
	//   6. [] Rent sysvar
	return solana.NewInstruction(
		ProgramKey,
		raw,
		solana.NewAccountMeta(addr, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(mintAuthority, true),
		solana.NewAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(updateAuthority, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	), addr, nil
}

type DecompiledCreateMetadataAccountV3 struct {
	Metadata        ed25519.PublicKey
	Mint            ed25519.PublicKey
	MintAuthority   ed25519.PublicKey
	Payer           ed25519.PublicKey
	UpdateAuthority ed25519.PublicKey

	Data Data
}

// DecompileCreateMetadataAccountV3 decodes the instruction at the given index
// as a CreateMetadataAccountV3, validating program, discriminator, account
// count and the full field layout.
func DecompileCreateMetadataAccountV3(m solana.Message, index int) (*DecompiledCreateMetadataAccountV3, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 || i.Data[0] != commandCreateMetadataAccountV3 {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 7 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(m.Accounts[i.Accounts[5]], system.ProgramKey[:]) {
		return nil, errors.New("system program key mismatch")
	}
	if !bytes.Equal(m.Accounts[i.Accounts[6]], system.RentSysVar) {
		return nil, errors.New("rent sysvar mismatch")
	}

	v := &DecompiledCreateMetadataAccountV3{
		Metadata:        m.Accounts[i.Accounts[0]],
		Mint:            m.Accounts[i.Accounts[1]],
		MintAuthority:   m.Accounts[i.Accounts[2]],
		Payer:           m.Accounts[i.Accounts[3]],
		UpdateAuthority: m.Accounts[i.Accounts[4]],
	}

	var err error
	var offset = 1
	if v.Data.Name, offset, err = binary.ReadString(i.Data, offset); err != nil {
		return nil, err
	}
	if v.Data.Symbol, offset, err = binary.ReadString(i.Data, offset); err != nil {
		return nil, err
	}
	if v.Data.URI, offset, err = binary.ReadString(i.Data, offset); err != nil {
		return nil, err
	}
	if v.Data.SellerFeeBasisPoints, offset, err = binary.ReadUint16(i.Data, offset); err != nil {
		return nil, err
	}

	hasCreators, offset, err := binary.ReadOption(i.Data, offset)
	if err != nil {
		return nil, err
	}
	if hasCreators {
		var count int
		if count, offset, err = binary.ReadVecLen(i.Data, offset); err != nil {
			return nil, err
		}
		for j := 0; j < count; j++ {
			var c Creator
			if c.Address, offset, err = binary.ReadKey32(i.Data, offset); err != nil {
				return nil, err
			}
			if c.Verified, offset, err = binary.ReadOption(i.Data, offset); err != nil {
				return nil, err
			}
			if c.Share, offset, err = binary.ReadUint8(i.Data, offset); err != nil {
				return nil, err
			}
			v.Data.Creators = append(v.Data.Creators, c)
		}
	}

	// The assets this server recognizes never carry a collection or uses.
	hasCollection, offset, err := binary.ReadOption(i.Data, offset)
	if err != nil {
		return nil, err
	}
	if hasCollection {
		return nil, errors.Wrap(binary.ErrMalformedField, "unexpected collection")
	}
	hasUses, offset, err := binary.ReadOption(i.Data, offset)
	if err != nil {
		return nil, err
	}
	if hasUses {
		return nil, errors.Wrap(binary.ErrMalformedField, "unexpected uses")
	}

	if v.Data.IsMutable, offset, err = binary.ReadOption(i.Data, offset); err != nil {
		return nil, err
	}

	hasCollectionDetails, offset, err := binary.ReadOption(i.Data, offset)
	if err != nil {
		return nil, err
	}
	if hasCollectionDetails {
		return nil, errors.Wrap(binary.ErrMalformedField, "unexpected collection details")
	}

	if offset != len(i.Data) {
		return nil, errors.Errorf("invalid instruction data size: %d (consumed %d)", len(i.Data), offset)
	}

	return v, nil
}

// CreateMasterEditionV3 returns an instruction that creates the master
// edition at the edition PDA for the mint, along with the derived PDA.
// A max supply of 0 makes the token a provable one-of-one.
func CreateMasterEditionV3(mint, updateAuthority, mintAuthority, payer ed25519.PublicKey, maxSupply *uint64) (solana.Instruction, ed25519.PublicKey, error) {
	edition, err := GetMasterEditionAddress(mint)
	if err != nil {
		return solana.Instruction{}, nil, errors.Wrap(err, "failed to derive master edition address")
	}

	meta, err := GetMetadataAddress(mint)
	if err != nil {
		return solana.Instruction{}, nil, errors.Wrap(err, "failed to derive metadata address")
	}

	// CreateMasterEditionV3 {
	//   max_supply: Option<u64>,
	// }
	raw := []byte{commandCreateMasterEditionV3}
	raw = binary.AppendOption(raw, maxSupply != nil)
	if maxSupply != nil {
		raw = binary.AppendUint64(raw, *maxSupply)
	}

	// # Account references
	//   0. [WRITE] Master edition PDA
	//   1. [WRITE] Mint
	//   2. [SIGNER] Update authority
	//   3. [SIGNER] Mint authority
	//   4. [WRITE, SIGNER] Payer
	//   5. [WRITE] Metadata PDA
	//   6. [] Token program
	//   7. [] System program
	//   8. [] Rent sysvar
	return solana.NewInstruction(
		ProgramKey,
		raw,
		solana.NewAccountMeta(edition, false),
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(updateAuthority, true),
		solana.NewReadonlyAccountMeta(mintAuthority, true),
		solana.NewAccountMeta(payer, true),
		solana.NewAccountMeta(meta, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	), edition, nil
}

type DecompiledCreateMasterEditionV3 struct {
	Edition         ed25519.PublicKey
	Mint            ed25519.PublicKey
	UpdateAuthority ed25519.PublicKey
	MintAuthority   ed25519.PublicKey
	Payer           ed25519.PublicKey
	Metadata        ed25519.PublicKey

	MaxSupply *uint64
}

// DecompileCreateMasterEditionV3 decodes the instruction at the given index
// as a CreateMasterEditionV3.
func DecompileCreateMasterEditionV3(m solana.Message, index int) (*DecompiledCreateMasterEditionV3, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 || i.Data[0] != commandCreateMasterEditionV3 {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 9 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(m.Accounts[i.Accounts[6]], token.ProgramKey) {
		return nil, errors.New("token program key mismatch")
	}
	if !bytes.Equal(m.Accounts[i.Accounts[7]], system.ProgramKey[:]) {
		return nil, errors.New("system program key mismatch")
	}
	if !bytes.Equal(m.Accounts[i.Accounts[8]], system.RentSysVar) {
		return nil, errors.New("rent sysvar mismatch")
	}

	v := &DecompiledCreateMasterEditionV3{
		Edition:         m.Accounts[i.Accounts[0]],
		Mint:            m.Accounts[i.Accounts[1]],
		UpdateAuthority: m.Accounts[i.Accounts[2]],
		MintAuthority:   m.Accounts[i.Accounts[3]],
		Payer:           m.Accounts[i.Accounts[4]],
		Metadata:        m.Accounts[i.Accounts[5]],
	}

	hasMaxSupply, offset, err := binary.ReadOption(i.Data, 1)
	if err != nil {
		return nil, err
	}
	if hasMaxSupply {
		var maxSupply uint64
		if maxSupply, offset, err = binary.ReadUint64(i.Data, offset); err != nil {
			return nil, err
		}
		v.MaxSupply = &maxSupply
	}
	if offset != len(i.Data) {
		return nil, errors.Errorf("invalid instruction data size: %d (consumed %d)", len(i.Data), offset)
	}

	return v, nil
}
