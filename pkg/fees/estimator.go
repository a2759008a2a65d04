// Package fees computes compute budget instructions for outgoing
// transactions: a compute unit limit per transaction kind and a priority fee
// price derived from recent network conditions.
package fees

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/artbay/nft-server/pkg/config"
	"github.com/artbay/nft-server/pkg/solana"
	compute_budget "github.com/artbay/nft-server/pkg/solana/computebudget"
)

// TransactionKind selects the compute unit limit profile for a transaction.
type TransactionKind int

const (
	TransactionKindMint TransactionKind = iota
	TransactionKindListing
)

const (
	// Default compute unit limits, tuned per transaction shape. The mint
	// transaction runs six instructions including two metadata program
	// calls and needs substantially more headroom than a listing.
	defaultMintComputeUnitLimit    = 400_000
	defaultListingComputeUnitLimit = 200_000

	// priorityFeeCeiling caps the dynamic price so a spiking or hostile
	// RPC response can never produce an absurd fee. Micro-lamports per
	// compute unit.
	priorityFeeCeiling = 1_000_000

	// mainnetStaticPriorityFee is the fallback price when dynamic
	// estimation is disabled or fails on mainnet. Dev and test clusters
	// fall back to zero since their fee markets are idle.
	mainnetStaticPriorityFee = 10_000

	// priorityFeeBufferPct is added on top of the observed percentile to
	// absorb fee drift between estimation and submission.
	priorityFeeBufferPct = 20
)

type Estimator struct {
	log *logrus.Entry
	cfg *config.Config
}

func NewEstimator(cfg *config.Config) *Estimator {
	return &Estimator{
		log: logrus.StandardLogger().WithField("type", "fees/estimator"),
		cfg: cfg,
	}
}

// ComputeUnitLimit returns the compute unit limit for the given transaction
// kind, honoring configured overrides.
func (e *Estimator) ComputeUnitLimit(kind TransactionKind) uint32 {
	switch kind {
	case TransactionKindListing:
		if e.cfg.ListingComputeUnitLimit > 0 {
			return e.cfg.ListingComputeUnitLimit
		}
		return defaultListingComputeUnitLimit
	default:
		if e.cfg.MintComputeUnitLimit > 0 {
			return e.cfg.MintComputeUnitLimit
		}
		return defaultMintComputeUnitLimit
	}
}

// PriorityFee returns a price in micro-lamports per compute unit. When
// dynamic estimation is enabled it queries recent prioritization fees and
// takes the 75th percentile of the non-zero samples, plus a buffer, clamped
// to a hard ceiling. Estimation failures never propagate; the estimator
// degrades to the static fallback so transaction construction cannot be
// blocked by a fee query.
func (e *Estimator) PriorityFee(client solana.Client) uint64 {
	if !e.cfg.DynamicPriorityFees {
		return e.staticPriorityFee()
	}

	fees, err := client.GetRecentPrioritizationFees()
	if err != nil {
		e.log.WithError(err).Warn("failed to fetch recent prioritization fees, using static fallback")
		return e.staticPriorityFee()
	}

	var samples []uint64
	for _, f := range fees {
		if f.PrioritizationFee > 0 {
			samples = append(samples, f.PrioritizationFee)
		}
	}
	if len(samples) == 0 {
		return e.staticPriorityFee()
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	idx := (len(samples) * 75) / 100
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	p75 := samples[idx]

	price := p75 + (p75*priorityFeeBufferPct)/100
	if price > priorityFeeCeiling {
		price = priorityFeeCeiling
	}

	return price
}

// Instructions returns the compute budget instructions to prepend to a
// transaction of the given kind.
func (e *Estimator) Instructions(kind TransactionKind, client solana.Client) []solana.Instruction {
	return []solana.Instruction{
		compute_budget.SetComputeUnitLimit(e.ComputeUnitLimit(kind)),
		compute_budget.SetComputeUnitPrice(e.PriorityFee(client)),
	}
}

func (e *Estimator) staticPriorityFee() uint64 {
	if e.cfg.StaticPriorityFee > 0 {
		return e.cfg.StaticPriorityFee
	}

	if e.cfg.Network == config.NetworkMainnet {
		return mainnetStaticPriorityFee
	}

	return 0
}
