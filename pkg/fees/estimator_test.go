package fees

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbay/nft-server/pkg/config"
	"github.com/artbay/nft-server/pkg/solana"
	compute_budget "github.com/artbay/nft-server/pkg/solana/computebudget"
)

type fakeClient struct {
	solana.Client

	fees    []solana.PrioritizationFee
	feesErr error
}

func (f *fakeClient) GetRecentPrioritizationFees() ([]solana.PrioritizationFee, error) {
	return f.fees, f.feesErr
}

func samples(values ...uint64) []solana.PrioritizationFee {
	fees := make([]solana.PrioritizationFee, len(values))
	for i, v := range values {
		fees[i] = solana.PrioritizationFee{Slot: uint64(i), PrioritizationFee: v}
	}
	return fees
}

func TestComputeUnitLimit(t *testing.T) {
	e := NewEstimator(&config.Config{})
	assert.EqualValues(t, defaultMintComputeUnitLimit, e.ComputeUnitLimit(TransactionKindMint))
	assert.EqualValues(t, defaultListingComputeUnitLimit, e.ComputeUnitLimit(TransactionKindListing))

	e = NewEstimator(&config.Config{
		MintComputeUnitLimit:    123,
		ListingComputeUnitLimit: 456,
	})
	assert.EqualValues(t, 123, e.ComputeUnitLimit(TransactionKindMint))
	assert.EqualValues(t, 456, e.ComputeUnitLimit(TransactionKindListing))
}

func TestPriorityFee_Percentile(t *testing.T) {
	e := NewEstimator(&config.Config{
		Network:             config.NetworkMainnet,
		DynamicPriorityFees: true,
	})

	// Zero samples are dropped before the percentile is taken. Sorted
	// non-zero samples are [100 200 300 400]; p75 picks 400, plus the
	// 20% buffer.
	client := &fakeClient{fees: samples(0, 300, 100, 0, 400, 200)}
	assert.EqualValues(t, 480, e.PriorityFee(client))
}

func TestPriorityFee_Ceiling(t *testing.T) {
	e := NewEstimator(&config.Config{
		Network:             config.NetworkMainnet,
		DynamicPriorityFees: true,
	})

	client := &fakeClient{fees: samples(5_000_000, 5_000_000, 5_000_000)}
	assert.EqualValues(t, priorityFeeCeiling, e.PriorityFee(client))
}

func TestPriorityFee_Fallbacks(t *testing.T) {
	// RPC failure never propagates; the static network tier applies.
	e := NewEstimator(&config.Config{
		Network:             config.NetworkMainnet,
		DynamicPriorityFees: true,
	})
	client := &fakeClient{feesErr: errors.New("rpc down")}
	assert.EqualValues(t, mainnetStaticPriorityFee, e.PriorityFee(client))

	// All-zero samples fall back the same way.
	client = &fakeClient{fees: samples(0, 0, 0)}
	assert.EqualValues(t, mainnetStaticPriorityFee, e.PriorityFee(client))

	// Dev clusters have an idle fee market; fall back to zero.
	e = NewEstimator(&config.Config{
		Network:             config.NetworkDevnet,
		DynamicPriorityFees: true,
	})
	assert.EqualValues(t, 0, e.PriorityFee(&fakeClient{feesErr: errors.New("rpc down")}))

	// A configured static fee wins over the network tier.
	e = NewEstimator(&config.Config{
		Network:           config.NetworkDevnet,
		StaticPriorityFee: 777,
	})
	assert.EqualValues(t, 777, e.PriorityFee(&fakeClient{}))
}

func TestPriorityFee_DynamicDisabled(t *testing.T) {
	e := NewEstimator(&config.Config{
		Network:           config.NetworkMainnet,
		StaticPriorityFee: 42,
	})

	// The client must not be queried at all.
	client := &fakeClient{feesErr: errors.New("must not be called")}
	assert.EqualValues(t, 42, e.PriorityFee(client))
}

func TestInstructions(t *testing.T) {
	e := NewEstimator(&config.Config{
		Network:             config.NetworkMainnet,
		DynamicPriorityFees: true,
	})
	client := &fakeClient{fees: samples(100)}

	instructions := e.Instructions(TransactionKindMint, client)
	require.Len(t, instructions, 2)

	limit, err := compute_budget.ParseSetComputeUnitLimitIxnData(instructions[0].Data)
	require.NoError(t, err)
	assert.EqualValues(t, defaultMintComputeUnitLimit, limit)

	price, err := compute_budget.ParseSetComputeUnitPriceIxnData(instructions[1].Data)
	require.NoError(t, err)
	assert.EqualValues(t, 120, price)
}
