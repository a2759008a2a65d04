package nft

import (
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"

	"github.com/artbay/nft-server/pkg/fees"
	"github.com/artbay/nft-server/pkg/solana"
	"github.com/artbay/nft-server/pkg/solana/marketplace"
	"github.com/artbay/nft-server/pkg/solana/token"
)

// ListingParams describes a buy-now listing. Price is in lamports.
type ListingParams struct {
	Seller ed25519.PublicKey
	Mint   ed25519.PublicKey
	Price  uint64
}

// ListingTransaction is a fully constructed listing transaction, partially
// signed by the ephemeral sale state account. The seller's signature slot is
// left empty for the wallet to fill.
type ListingTransaction struct {
	Transaction          solana.Transaction
	Serialized           []byte
	SaleState            ed25519.PublicKey
	Blockhash            solana.Blockhash
	LastValidBlockHeight uint64
	EstimatedFee         uint64
}

// BuildListingTransaction assembles a marketplace sell instruction behind
// compute budget instructions. The token moves from the seller's associated
// token account into a program-derived deposit account, and a fresh sale
// state keypair co-signs to anchor the listing record.
func (b *Builder) BuildListingTransaction(params ListingParams) (*ListingTransaction, error) {
	if len(params.Seller) != ed25519.PublicKeySize {
		return nil, errors.New("invalid seller public key")
	}
	if len(params.Mint) != ed25519.PublicKeySize {
		return nil, errors.New("invalid mint public key")
	}
	if params.Price == 0 {
		return nil, errors.New("price must be positive")
	}

	client := b.conns.GetConnection()

	sellerTokenAccount, err := token.GetAssociatedAccount(params.Seller, params.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive seller token account")
	}

	saleStatePub, saleStatePriv, err := b.generateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate sale state keypair")
	}

	// Start time zero lists the token immediately.
	sell, err := marketplace.Sell(params.Seller, sellerTokenAccount, params.Mint, saleStatePub, params.Price, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build sell instruction")
	}

	instructions := append(
		b.fees.Instructions(fees.TransactionKindListing, client),
		sell,
	)

	txn := solana.NewTransaction(params.Seller, instructions...)

	start := time.Now()
	blockhash, lastValidHeight, err := client.GetLatestBlockhash()
	b.observe(start, err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest blockhash")
	}
	txn.SetBlockhash(blockhash)

	if err := txn.Sign(saleStatePriv); err != nil {
		return nil, errors.Wrap(err, "failed to sign with sale state account")
	}

	serialized := txn.Marshal()
	if len(serialized) > solana.MaxTransactionSize {
		return nil, errors.Errorf("transaction too large: %d bytes", len(serialized))
	}

	return &ListingTransaction{
		Transaction:          txn,
		Serialized:           serialized,
		SaleState:            saleStatePub,
		Blockhash:            blockhash,
		LastValidBlockHeight: lastValidHeight,
		EstimatedFee:         b.estimateFee(client, txn),
	}, nil
}
