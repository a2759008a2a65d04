package solana

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/ybbus/jsonrpc"

	"github.com/artbay/nft-server/pkg/retry"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	testCases := []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: "",
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusProcessed,
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &one,
				ConfirmationStatus: "",
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusConfirmed,
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      nil,
				ConfirmationStatus: "",
			},
			confirmed: true,
			finalized: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusFinalized,
			},
			confirmed: true,
			finalized: true,
		},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed())
		assert.Equal(t, tc.finalized, tc.s.Finalized())
	}
}

// staticRPCClient answers every CallFor with a canned JSON result.
type staticRPCClient struct {
	result json.RawMessage
}

func (c *staticRPCClient) Call(method string, params ...interface{}) (*jsonrpc.RPCResponse, error) {
	return nil, errors.New("not implemented")
}

func (c *staticRPCClient) CallRaw(request *jsonrpc.RPCRequest) (*jsonrpc.RPCResponse, error) {
	return nil, errors.New("not implemented")
}

func (c *staticRPCClient) CallFor(out interface{}, method string, params ...interface{}) error {
	return json.Unmarshal(c.result, out)
}

func (c *staticRPCClient) CallBatch(requests jsonrpc.RPCRequests) (jsonrpc.RPCResponses, error) {
	return nil, errors.New("not implemented")
}

func (c *staticRPCClient) CallBatchRaw(requests jsonrpc.RPCRequests) (jsonrpc.RPCResponses, error) {
	return nil, errors.New("not implemented")
}

func TestGetTransaction_MissingTransactionData(t *testing.T) {
	c := &client{
		log: logrus.StandardLogger().WithField("type", "solana/client"),
		client: &staticRPCClient{
			result: json.RawMessage(`{"slot":5,"blockTime":1700000000,"transaction":[]}`),
		},
		retrier: retry.NewRetrier(retry.Limit(1)),
	}

	var sig Signature
	_, err := c.GetTransaction(sig, CommitmentConfirmed)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "transaction data missing")
}
