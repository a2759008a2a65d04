// Package nft constructs unsigned-by-server Solana transactions for minting
// NFTs and listing them for buy-now sale. Transactions are returned partially
// signed by the ephemeral accounts the server creates; the remaining required
// signature belongs to the requesting wallet.
package nft

import (
	"crypto/ed25519"
	"crypto/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/artbay/nft-server/pkg/fees"
	"github.com/artbay/nft-server/pkg/rpcpool"
	"github.com/artbay/nft-server/pkg/solana"
)

const (
	// lamportsPerSignature is the base fee charged per signature, used as
	// a fallback when the fee RPC is unavailable.
	lamportsPerSignature = 5000
)

type Builder struct {
	log   *logrus.Entry
	conns rpcpool.ConnectionProvider
	fees  *fees.Estimator

	// Injectable for deterministic tests.
	generateKey func() (ed25519.PublicKey, ed25519.PrivateKey, error)
}

func NewBuilder(conns rpcpool.ConnectionProvider, estimator *fees.Estimator) *Builder {
	return &Builder{
		log:   logrus.StandardLogger().WithField("type", "nft/builder"),
		conns: conns,
		fees:  estimator,
		generateKey: func() (ed25519.PublicKey, ed25519.PrivateKey, error) {
			return ed25519.GenerateKey(rand.Reader)
		},
	}
}

// observe reports the outcome of an RPC call to the connection pool so
// sustained endpoint failures trigger failover.
func (b *Builder) observe(start time.Time, err error) {
	if err != nil {
		b.conns.RecordError()
		return
	}
	b.conns.RecordSuccess(time.Since(start))
}

// estimateFee queries the network fee for the compiled message, falling back
// to the base per-signature fee when the RPC cannot answer. Fee estimation
// is advisory and never fails transaction construction.
func (b *Builder) estimateFee(client solana.Client, txn solana.Transaction) uint64 {
	start := time.Now()
	fee, err := client.GetFeeForMessage(txn.Message.Marshal())
	b.observe(start, err)
	if err != nil {
		b.log.WithError(err).Warn("failed to fetch fee for message, using base fee")
		return uint64(txn.Message.Header.NumSignatures) * lamportsPerSignature
	}
	return fee
}
