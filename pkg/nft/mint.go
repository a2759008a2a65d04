package nft

import (
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"

	"github.com/artbay/nft-server/pkg/fees"
	"github.com/artbay/nft-server/pkg/solana"
	"github.com/artbay/nft-server/pkg/solana/metadata"
	"github.com/artbay/nft-server/pkg/solana/system"
	"github.com/artbay/nft-server/pkg/solana/token"
)

// MintParams describes the NFT to mint. The payer wallet funds the
// transaction, receives the token, and becomes both update authority and the
// single verified creator.
type MintParams struct {
	Payer                ed25519.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
}

// MintTransaction is a fully constructed mint transaction, partially signed
// by the ephemeral mint account. The payer's signature slot is left empty
// for the wallet to fill.
type MintTransaction struct {
	Transaction          solana.Transaction
	Serialized           []byte
	Mint                 ed25519.PublicKey
	Blockhash            solana.Blockhash
	LastValidBlockHeight uint64
	EstimatedFee         uint64
}

// BuildMintTransaction assembles the six instruction mint sequence behind
// compute budget instructions:
//
//	CreateAccount -> InitializeMint -> CreateAssociatedTokenAccount ->
//	MintTo -> CreateMetadataAccountV3 -> CreateMasterEditionV3
//
// A fresh mint keypair is generated per call and signs the returned
// transaction. The master edition has max supply zero, making the token a
// non-fungible one of one.
func (b *Builder) BuildMintTransaction(params MintParams) (*MintTransaction, error) {
	if len(params.Payer) != ed25519.PublicKeySize {
		return nil, errors.New("invalid payer public key")
	}
	if err := validateMetadata(params.Name, params.Symbol, params.URI); err != nil {
		return nil, err
	}

	client := b.conns.GetConnection()

	start := time.Now()
	rent, err := client.GetMinimumBalanceForRentExemption(token.MintSize)
	b.observe(start, err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rent for mint account")
	}

	mintPub, mintPriv, err := b.generateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate mint keypair")
	}

	createAta, ata, err := token.CreateAssociatedTokenAccount(params.Payer, params.Payer, mintPub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build associated account instruction")
	}

	createMetadata, _, err := metadata.CreateMetadataAccountV3(
		mintPub,
		params.Payer,
		params.Payer,
		params.Payer,
		metadata.Data{
			Name:                 params.Name,
			Symbol:               params.Symbol,
			URI:                  params.URI,
			SellerFeeBasisPoints: params.SellerFeeBasisPoints,
			Creators: []metadata.Creator{{
				Address:  params.Payer,
				Verified: true,
				Share:    100,
			}},
			IsMutable: true,
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build metadata instruction")
	}

	maxSupply := uint64(0)
	createEdition, _, err := metadata.CreateMasterEditionV3(mintPub, params.Payer, params.Payer, params.Payer, &maxSupply)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build master edition instruction")
	}

	instructions := append(
		b.fees.Instructions(fees.TransactionKindMint, client),
		system.CreateAccount(params.Payer, mintPub, token.ProgramKey, rent, token.MintSize),
		token.InitializeMint(mintPub, params.Payer, params.Payer, 0),
		createAta,
		token.MintTo(mintPub, ata, params.Payer, 1),
		createMetadata,
		createEdition,
	)

	txn := solana.NewTransaction(params.Payer, instructions...)

	start = time.Now()
	blockhash, lastValidHeight, err := client.GetLatestBlockhash()
	b.observe(start, err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest blockhash")
	}
	txn.SetBlockhash(blockhash)

	if err := txn.Sign(mintPriv); err != nil {
		return nil, errors.Wrap(err, "failed to sign with mint account")
	}

	serialized := txn.Marshal()
	if len(serialized) > solana.MaxTransactionSize {
		return nil, errors.Errorf("transaction too large: %d bytes", len(serialized))
	}

	// The caller pays the network fee plus rent for the new mint account.
	estimatedFee := b.estimateFee(client, txn) + rent

	return &MintTransaction{
		Transaction:          txn,
		Serialized:           serialized,
		Mint:                 mintPub,
		Blockhash:            blockhash,
		LastValidBlockHeight: lastValidHeight,
		EstimatedFee:         estimatedFee,
	}, nil
}
