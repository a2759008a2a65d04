package solana

import (
	"encoding/base64"
	"math/rand"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/artbay/nft-server/pkg/retry"
	"github.com/artbay/nft-server/pkg/retry/backoff"
)

const (
	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

var (
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNodeUnhealthy     = errors.New("rpc node is unhealthy")
)

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations will be nil if the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	if s.Finalized() {
		return true
	}

	if s.ConfirmationStatus == confirmationStatusConfirmed {
		return true
	}

	return *s.Confirmations >= 1
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// ConfirmedTransaction is a transaction fetched from the chain by signature,
// along with its execution result and block time.
type ConfirmedTransaction struct {
	Slot        uint64
	BlockTime   *time.Time
	Transaction Transaction
	Err         *TransactionError
}

// PrioritizationFee is a per-slot sample of the fee paid by at least one
// successfully landed transaction, in micro-lamports per compute unit.
type PrioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

// Client provides an interaction with the Solana JSON RPC API.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetHealth() error
	GetLatestBlockhash() (Blockhash, uint64, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetFeeForMessage(message []byte) (uint64, error)
	GetRecentPrioritizationFees() ([]PrioritizationFee, error)
	GetSignatureStatus(Signature) (*SignatureStatus, error)
	GetSlot(Commitment) (uint64, error)
	GetTransaction(Signature, Commitment) (ConfirmedTransaction, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

type client struct {
	log     *logrus.Entry
	client  jsonrpc.RPCClient
	retrier *retry.Retrier

	blockMu         sync.RWMutex
	blockhash       Blockhash
	lastValidHeight uint64
	lastWrite       time.Time
}

// New returns a client using the specified endpoint.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil)
}

// NewWithRPCOptions returns a client configured with the specified RPC options.
func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) Client {
	return &client{
		log:    logrus.StandardLogger().WithField("type", "solana/client"),
		client: jsonrpc.NewClientWithOpts(endpoint, opts),
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
	}
}

func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		err := c.client.CallFor(out, method, params...)
		if err == nil {
			return nil
		}

		return c.handleRpcError(method, err)
	})

	return err
}

func (c *client) handleRpcError(method string, err error) error {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return err
	}
	if rpcErr.Code == 429 {
		c.log.WithField("method", method).Warn("rate limited")
		return errRateLimited
	}
	if rpcErr.Code >= 500 || rpcErr.Code == rpcNodeUnhealthyCode {
		return errServiceError
	}

	return err
}

// GetHealth issues the lightweight liveness probe used by endpoint health
// checking. The node answers "ok" when it is within the configured slot
// distance of the cluster.
func (c *client) GetHealth() error {
	var status string
	if err := c.call(&status, "getHealth"); err != nil {
		return errors.Wrap(err, "getHealth() failed to send request")
	}

	if status != "ok" {
		return ErrNodeUnhealthy
	}

	return nil
}

func (c *client) GetLatestBlockhash() (Blockhash, uint64, error) {
	// To avoid thrashing around a similar periodic interval, we randomize
	// when the cached blockhash is refreshed.
	window := time.Duration(float64(2*time.Second) * (0.8 + rand.Float64()))

	var hash Blockhash
	var height uint64

	c.blockMu.RLock()
	if time.Since(c.lastWrite) < window {
		hash = c.blockhash
		height = c.lastValidHeight
	}
	c.blockMu.RUnlock()

	if hash != (Blockhash{}) {
		return hash, height, nil
	}

	type response struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}

	var resp response
	if err := c.call(&resp, "getLatestBlockhash"); err != nil {
		return hash, 0, errors.Wrap(err, "getLatestBlockhash() failed to send request")
	}

	hashBytes, err := base58.Decode(resp.Value.Blockhash)
	if err != nil {
		return hash, 0, errors.Wrap(err, "invalid base58 encoded hash in response")
	}

	copy(hash[:], hashBytes)
	height = resp.Value.LastValidBlockHeight

	c.blockMu.Lock()
	c.blockhash = hash
	c.lastValidHeight = height
	c.lastWrite = time.Now()
	c.blockMu.Unlock()

	return hash, height, nil
}

func (c *client) GetMinimumBalanceForRentExemption(dataSize uint64) (lamports uint64, err error) {
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", dataSize); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed to send request")
	}

	return lamports, nil
}

func (c *client) GetFeeForMessage(message []byte) (uint64, error) {
	type response struct {
		Value *uint64 `json:"value"`
	}

	var resp response
	if err := c.call(&resp, "getFeeForMessage", base64.StdEncoding.EncodeToString(message), CommitmentConfirmed); err != nil {
		return 0, errors.Wrap(err, "getFeeForMessage() failed to send request")
	}

	// The node returns null when the blockhash in the message is unknown.
	if resp.Value == nil {
		return 0, errors.New("fee not available for message")
	}

	return *resp.Value, nil
}

func (c *client) GetRecentPrioritizationFees() ([]PrioritizationFee, error) {
	var fees []PrioritizationFee
	if err := c.call(&fees, "getRecentPrioritizationFees"); err != nil {
		return nil, errors.Wrap(err, "getRecentPrioritizationFees() failed to send request")
	}

	return fees, nil
}

func (c *client) GetSignatureStatus(sig Signature) (*SignatureStatus, error) {
	type rpcSignatureStatus struct {
		Slot               uint64      `json:"slot"`
		Confirmations      *int        `json:"confirmations"`
		ConfirmationStatus string      `json:"confirmationStatus"`
		Err                interface{} `json:"err"`
	}
	type response struct {
		Value []*rpcSignatureStatus `json:"value"`
	}

	config := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp response
	if err := c.call(&resp, "getSignatureStatuses", []string{base58.Encode(sig[:])}, config); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed to send request")
	}

	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return nil, ErrSignatureNotFound
	}

	raw := resp.Value[0]
	status := &SignatureStatus{
		Slot:               raw.Slot,
		Confirmations:      raw.Confirmations,
		ConfirmationStatus: raw.ConfirmationStatus,
	}

	var err error
	status.ErrorResult, err = ParseTransactionError(raw.Err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse signature status error")
	}

	return status, nil
}

func (c *client) GetSlot(commitment Commitment) (slot uint64, err error) {
	// note: we have to wrap the commitment in an []interface{} otherwise the
	//       solana RPC node complains. Technically this is a violation of the
	//       JSON RPC v2.0 spec.
	if err := c.call(&slot, "getSlot", []interface{}{commitment}); err != nil {
		return 0, errors.Wrap(err, "getSlot() failed to send request")
	}

	return slot, nil
}

func (c *client) GetTransaction(sig Signature, commitment Commitment) (ConfirmedTransaction, error) {
	type rpcResponse struct {
		Slot        uint64   `json:"slot"`
		BlockTime   *int64   `json:"blockTime"`
		Transaction []string `json:"transaction"` // [val, encoding]
		Meta        *struct {
			Err interface{} `json:"err"`
		} `json:"meta"`
	}

	config := struct {
		Commitment                     string `json:"commitment"`
		Encoding                       string `json:"encoding"`
		MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp *rpcResponse
	if err := c.call(&resp, "getTransaction", base58.Encode(sig[:]), config); err != nil {
		return ConfirmedTransaction{}, err
	}

	if resp == nil {
		return ConfirmedTransaction{}, ErrSignatureNotFound
	}

	txn := ConfirmedTransaction{
		Slot: resp.Slot,
	}

	if resp.BlockTime != nil {
		txTime := time.Unix(*resp.BlockTime, 0)
		txn.BlockTime = &txTime
	}

	if len(resp.Transaction) == 0 {
		return txn, errors.New("transaction data missing from response")
	}

	var err error
	rawTxn, err := base64.StdEncoding.DecodeString(resp.Transaction[0])
	if err != nil {
		return txn, errors.Wrap(err, "failed to decode transaction")
	}
	if err := txn.Transaction.Unmarshal(rawTxn); err != nil {
		return txn, errors.Wrap(err, "failed to unmarshal transaction")
	}

	if resp.Meta != nil {
		txn.Err, err = ParseTransactionError(resp.Meta.Err)
		if err != nil {
			return txn, errors.Wrap(err, "failed to parse transaction result")
		}
	}

	return txn, nil
}

func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	var sig Signature

	config := struct {
		Encoding            string `json:"encoding"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		Encoding:            "base64",
		PreflightCommitment: commitment.Commitment,
	}

	var sigStr string
	err := c.call(&sigStr, "sendTransaction", base64.StdEncoding.EncodeToString(txn.Marshal()), config)
	if err != nil {
		return sig, errors.Wrap(err, "sendTransaction() failed to send request")
	}

	sigBytes, err := base58.Decode(sigStr)
	if err != nil {
		return sig, errors.Wrap(err, "invalid base58 encoded signature in response")
	}

	copy(sig[:], sigBytes)
	return sig, nil
}
