package verify

import (
	"bytes"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/artbay/nft-server/pkg/rpcpool"
	"github.com/artbay/nft-server/pkg/solana"
)

// DefaultMaxTransactionAge bounds how old a submitted transaction may be
// before it is rejected as stale.
const DefaultMaxTransactionAge = 600 * time.Second

type Verifier struct {
	log   *logrus.Entry
	conns rpcpool.ConnectionProvider

	now func() time.Time
}

func NewVerifier(conns rpcpool.ConnectionProvider) *Verifier {
	return &Verifier{
		log:   logrus.StandardLogger().WithField("type", "verify/verifier"),
		conns: conns,
		now:   time.Now,
	}
}

// TransactionParams are the expectations checked by VerifyTransaction.
// ExpectedMint, RequiredAccounts and RequiredPrograms are optional.
type TransactionParams struct {
	Signature      solana.Signature
	ExpectedWallet ed25519.PublicKey

	ExpectedMint     ed25519.PublicKey
	RequiredAccounts []ed25519.PublicKey

	// RequiredPrograms are checked for invocation only: each program must
	// be the program id of at least one instruction. Shape verifiers do
	// the per-field checking.
	RequiredPrograms []ed25519.PublicKey

	// MaxAge defaults to DefaultMaxTransactionAge when zero.
	MaxAge time.Duration
}

// VerifyTransaction fetches the transaction by signature and checks
// liveness, freshness, fee payer, and required account and program
// references. Any failure along the way, including RPC errors and panics,
// yields a negative result.
func (v *Verifier) VerifyTransaction(params TransactionParams) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			v.log.WithField("panic", r).Warn("recovered panic during transaction verification")
			result = fail(CodeInternalError, "verification aborted: %v", r)
		}
	}()

	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxTransactionAge
	}

	client := v.conns.GetConnection()

	start := time.Now()
	txn, err := client.GetTransaction(params.Signature, solana.CommitmentConfirmed)
	if err == solana.ErrSignatureNotFound {
		v.conns.RecordSuccess(time.Since(start))
		return fail(CodeNotFound, "transaction not found")
	}
	if err != nil {
		v.conns.RecordError()
		return fail(CodeInternalError, "failed to fetch transaction: %v", err)
	}
	v.conns.RecordSuccess(time.Since(start))

	if txn.Err != nil {
		return fail(CodeOnChainFailure, "transaction failed on chain: %v", txn.Err)
	}

	if txn.BlockTime == nil {
		return fail(CodeRecencyUnknown, "block time unavailable")
	}
	if age := v.now().Sub(*txn.BlockTime); age > maxAge {
		return fail(CodeTooOld, "transaction is %s old (max %s)", age, maxAge)
	}

	msg := txn.Transaction.Message
	if len(msg.Accounts) == 0 {
		return fail(CodeSignerMismatch, "transaction has no accounts")
	}
	if !bytes.Equal(msg.Accounts[0], params.ExpectedWallet) {
		return fail(CodeSignerMismatch, "fee payer is %s", base58.Encode(msg.Accounts[0]))
	}

	if len(params.ExpectedMint) > 0 && !msg.ContainsAccount(params.ExpectedMint) {
		return fail(CodeMintNotReferenced, "mint %s not referenced", base58.Encode(params.ExpectedMint))
	}

	for _, account := range params.RequiredAccounts {
		if !msg.ContainsAccount(account) {
			return fail(CodeRequiredAccountMissing, "account %s not referenced", base58.Encode(account))
		}
	}

	for _, program := range params.RequiredPrograms {
		if !programInvoked(msg, program) {
			return fail(CodeRequiredProgramMissing, "program %s not invoked", base58.Encode(program))
		}
	}

	return ok()
}

func programInvoked(m solana.Message, program ed25519.PublicKey) bool {
	for i := range m.Instructions {
		key, err := m.ProgramKeyAt(i)
		if err != nil {
			continue
		}
		if bytes.Equal(key, program) {
			return true
		}
	}
	return false
}
