package verify

import (
	"bytes"
	"crypto/ed25519"

	"github.com/artbay/nft-server/pkg/solana"
	compute_budget "github.com/artbay/nft-server/pkg/solana/computebudget"
	"github.com/artbay/nft-server/pkg/solana/marketplace"
	"github.com/artbay/nft-server/pkg/solana/metadata"
	"github.com/artbay/nft-server/pkg/solana/system"
	"github.com/artbay/nft-server/pkg/solana/token"
)

// MintParams are the expected values for a mint transaction's instruction
// set. Wallet is the fee payer, token recipient, every authority and the
// single verified creator.
type MintParams struct {
	Wallet ed25519.PublicKey
	Mint   ed25519.PublicKey

	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
}

// ListingParams are the expected values for a listing transaction's sell
// instruction. SaleState is optional; when empty any sale state account is
// accepted since the account is an ephemeral keypair the client holds.
type ListingParams struct {
	Seller ed25519.PublicKey
	Mint   ed25519.PublicKey
	Price  uint64

	SaleState ed25519.PublicKey
}

// VerifyMetadataInstruction asserts the message contains a metadata account
// creation whose every account and field matches the expected values. The
// first fully matching candidate succeeds; otherwise the most specific
// mismatch among the candidates is returned.
func VerifyMetadataInstruction(m solana.Message, params MintParams) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = fail(CodeInternalError, "verification aborted: %v", r)
		}
	}()

	expectedMetadata, err := metadata.GetMetadataAddress(params.Mint)
	if err != nil {
		return fail(CodeInternalError, "failed to derive metadata address: %v", err)
	}

	var firstMismatch *Result
	invoked := false
	for i := range m.Instructions {
		if !instructionUses(m, i, metadata.ProgramKey) {
			continue
		}
		invoked = true

		decompiled, err := metadata.DecompileCreateMetadataAccountV3(m, i)
		if err != nil {
			recordMismatch(&firstMismatch, fail(CodeDiscriminatorMismatch, "instruction %d is not a metadata creation: %v", i, err))
			continue
		}

		res := matchMetadata(decompiled, expectedMetadata, params)
		if res.OK {
			return res
		}
		recordMismatch(&firstMismatch, res)
	}

	if !invoked {
		return fail(CodeRequiredProgramMissing, "metadata program not invoked")
	}
	return *firstMismatch
}

func matchMetadata(d *metadata.DecompiledCreateMetadataAccountV3, expectedMetadata ed25519.PublicKey, params MintParams) Result {
	switch {
	case !bytes.Equal(d.Metadata, expectedMetadata):
		return fail(CodeFieldMismatch, "metadata account mismatch")
	case !bytes.Equal(d.Mint, params.Mint):
		return fail(CodeFieldMismatch, "mint mismatch")
	case !bytes.Equal(d.MintAuthority, params.Wallet):
		return fail(CodeFieldMismatch, "mint authority mismatch")
	case !bytes.Equal(d.Payer, params.Wallet):
		return fail(CodeFieldMismatch, "payer mismatch")
	case !bytes.Equal(d.UpdateAuthority, params.Wallet):
		return fail(CodeFieldMismatch, "update authority mismatch")
	case d.Data.Name != params.Name:
		return fail(CodeFieldMismatch, "name mismatch")
	case d.Data.Symbol != params.Symbol:
		return fail(CodeFieldMismatch, "symbol mismatch")
	case d.Data.URI != params.URI:
		return fail(CodeFieldMismatch, "uri mismatch")
	case d.Data.SellerFeeBasisPoints != params.SellerFeeBasisPoints:
		return fail(CodeFieldMismatch, "seller fee mismatch")
	case len(d.Data.Creators) != 1:
		return fail(CodeFieldMismatch, "expected exactly one creator")
	case !bytes.Equal(d.Data.Creators[0].Address, params.Wallet):
		return fail(CodeFieldMismatch, "creator mismatch")
	case !d.Data.Creators[0].Verified:
		return fail(CodeFieldMismatch, "creator not verified")
	case d.Data.Creators[0].Share != 100:
		return fail(CodeFieldMismatch, "creator share mismatch")
	case !d.Data.IsMutable:
		return fail(CodeFieldMismatch, "metadata not mutable")
	}
	return ok()
}

// VerifyMasterEditionInstruction asserts the message contains a master
// edition creation for the expected mint with max supply zero.
func VerifyMasterEditionInstruction(m solana.Message, params MintParams) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = fail(CodeInternalError, "verification aborted: %v", r)
		}
	}()

	expectedMetadata, err := metadata.GetMetadataAddress(params.Mint)
	if err != nil {
		return fail(CodeInternalError, "failed to derive metadata address: %v", err)
	}
	expectedEdition, err := metadata.GetMasterEditionAddress(params.Mint)
	if err != nil {
		return fail(CodeInternalError, "failed to derive edition address: %v", err)
	}

	var firstMismatch *Result
	invoked := false
	for i := range m.Instructions {
		if !instructionUses(m, i, metadata.ProgramKey) {
			continue
		}
		invoked = true

		decompiled, err := metadata.DecompileCreateMasterEditionV3(m, i)
		if err != nil {
			recordMismatch(&firstMismatch, fail(CodeDiscriminatorMismatch, "instruction %d is not a master edition creation: %v", i, err))
			continue
		}

		res := matchMasterEdition(decompiled, expectedEdition, expectedMetadata, params)
		if res.OK {
			return res
		}
		recordMismatch(&firstMismatch, res)
	}

	if !invoked {
		return fail(CodeRequiredProgramMissing, "metadata program not invoked")
	}
	return *firstMismatch
}

func matchMasterEdition(d *metadata.DecompiledCreateMasterEditionV3, expectedEdition, expectedMetadata ed25519.PublicKey, params MintParams) Result {
	switch {
	case !bytes.Equal(d.Edition, expectedEdition):
		return fail(CodeFieldMismatch, "edition account mismatch")
	case !bytes.Equal(d.Mint, params.Mint):
		return fail(CodeFieldMismatch, "mint mismatch")
	case !bytes.Equal(d.UpdateAuthority, params.Wallet):
		return fail(CodeFieldMismatch, "update authority mismatch")
	case !bytes.Equal(d.MintAuthority, params.Wallet):
		return fail(CodeFieldMismatch, "mint authority mismatch")
	case !bytes.Equal(d.Payer, params.Wallet):
		return fail(CodeFieldMismatch, "payer mismatch")
	case !bytes.Equal(d.Metadata, expectedMetadata):
		return fail(CodeFieldMismatch, "metadata account mismatch")
	case d.MaxSupply == nil:
		return fail(CodeFieldMismatch, "max supply not set")
	case *d.MaxSupply != 0:
		return fail(CodeFieldMismatch, "max supply must be zero")
	}
	return ok()
}

// VerifyMintInstructions asserts the message contains exactly one of each of
// the six mint instructions with the expected fields, and that no program
// outside the mint allow list is invoked anywhere in the message.
func VerifyMintInstructions(m solana.Message, params MintParams) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = fail(CodeInternalError, "verification aborted: %v", r)
		}
	}()

	expectedAta, err := token.GetAssociatedAccount(params.Wallet, params.Mint)
	if err != nil {
		return fail(CodeInternalError, "failed to derive associated account: %v", err)
	}

	var createAccounts []*system.DecompiledCreateAccount
	var initializeMints []*token.DecompiledInitializeMint
	var createAtas []*token.DecompiledCreateAssociatedAccount
	var mintTos []*token.DecompiledMintTo
	metadataCount := 0
	editionCount := 0

	for i := range m.Instructions {
		programKey, err := m.ProgramKeyAt(i)
		if err != nil {
			return fail(CodeInternalError, "invalid instruction %d: %v", i, err)
		}

		switch {
		case bytes.Equal(programKey, system.ProgramKey[:]):
			d, err := system.DecompileCreateAccount(m, i)
			if err != nil {
				return fail(CodeDiscriminatorMismatch, "unexpected system instruction at %d: %v", i, err)
			}
			createAccounts = append(createAccounts, d)
		case bytes.Equal(programKey, token.ProgramKey):
			cmd, err := token.GetCommand(m, i)
			if err != nil {
				return fail(CodeDiscriminatorMismatch, "invalid token instruction at %d: %v", i, err)
			}
			switch cmd {
			case token.CommandInitializeMint:
				d, err := token.DecompileInitializeMint(m, i)
				if err != nil {
					return fail(CodeDiscriminatorMismatch, "invalid mint initialization at %d: %v", i, err)
				}
				initializeMints = append(initializeMints, d)
			case token.CommandMintTo:
				d, err := token.DecompileMintTo(m, i)
				if err != nil {
					return fail(CodeDiscriminatorMismatch, "invalid mint to at %d: %v", i, err)
				}
				mintTos = append(mintTos, d)
			default:
				return fail(CodeUnexpectedProgram, "unexpected token command %d at instruction %d", cmd, i)
			}
		case bytes.Equal(programKey, token.AssociatedTokenAccountProgramKey):
			d, err := token.DecompileCreateAssociatedAccount(m, i)
			if err != nil {
				return fail(CodeDiscriminatorMismatch, "invalid associated account creation at %d: %v", i, err)
			}
			createAtas = append(createAtas, d)
		case bytes.Equal(programKey, metadata.ProgramKey):
			if _, err := metadata.DecompileCreateMetadataAccountV3(m, i); err == nil {
				metadataCount++
			} else if _, err := metadata.DecompileCreateMasterEditionV3(m, i); err == nil {
				editionCount++
			} else {
				return fail(CodeDiscriminatorMismatch, "unexpected metadata instruction at %d", i)
			}
		case compute_budget.IsComputeBudgetInstruction(m, i):
			// Fee instructions are allowed in any quantity and position.
		default:
			return fail(CodeUnexpectedProgram, "unexpected program invoked at instruction %d", i)
		}
	}

	if len(createAccounts) != 1 {
		return fail(CodeRequiredProgramMissing, "expected exactly one account creation, found %d", len(createAccounts))
	}
	if len(initializeMints) != 1 {
		return fail(CodeRequiredProgramMissing, "expected exactly one mint initialization, found %d", len(initializeMints))
	}
	if len(createAtas) != 1 {
		return fail(CodeRequiredProgramMissing, "expected exactly one associated account creation, found %d", len(createAtas))
	}
	if len(mintTos) != 1 {
		return fail(CodeRequiredProgramMissing, "expected exactly one mint to, found %d", len(mintTos))
	}
	if metadataCount != 1 {
		return fail(CodeRequiredProgramMissing, "expected exactly one metadata creation, found %d", metadataCount)
	}
	if editionCount != 1 {
		return fail(CodeRequiredProgramMissing, "expected exactly one master edition creation, found %d", editionCount)
	}

	createAccount := createAccounts[0]
	switch {
	case !bytes.Equal(createAccount.Funder, params.Wallet):
		return fail(CodeFieldMismatch, "account creation funder mismatch")
	case !bytes.Equal(createAccount.Address, params.Mint):
		return fail(CodeFieldMismatch, "account creation address mismatch")
	case !bytes.Equal(createAccount.Owner, token.ProgramKey):
		return fail(CodeFieldMismatch, "account creation owner mismatch")
	case createAccount.Size != token.MintSize:
		return fail(CodeFieldMismatch, "account creation size mismatch")
	}

	initializeMint := initializeMints[0]
	switch {
	case !bytes.Equal(initializeMint.Mint, params.Mint):
		return fail(CodeFieldMismatch, "initialized mint mismatch")
	case initializeMint.Decimals != 0:
		return fail(CodeFieldMismatch, "mint decimals must be zero")
	case !bytes.Equal(initializeMint.MintAuthority, params.Wallet):
		return fail(CodeFieldMismatch, "mint authority mismatch")
	case !bytes.Equal(initializeMint.FreezeAuthority, params.Wallet):
		return fail(CodeFieldMismatch, "freeze authority mismatch")
	}

	createAta := createAtas[0]
	switch {
	case !bytes.Equal(createAta.Payer, params.Wallet):
		return fail(CodeFieldMismatch, "associated account payer mismatch")
	case !bytes.Equal(createAta.Address, expectedAta):
		return fail(CodeFieldMismatch, "associated account address mismatch")
	case !bytes.Equal(createAta.Owner, params.Wallet):
		return fail(CodeFieldMismatch, "associated account owner mismatch")
	case !bytes.Equal(createAta.Mint, params.Mint):
		return fail(CodeFieldMismatch, "associated account mint mismatch")
	}

	mintTo := mintTos[0]
	switch {
	case !bytes.Equal(mintTo.Mint, params.Mint):
		return fail(CodeFieldMismatch, "mint to mint mismatch")
	case !bytes.Equal(mintTo.Destination, expectedAta):
		return fail(CodeFieldMismatch, "mint to destination mismatch")
	case !bytes.Equal(mintTo.Authority, params.Wallet):
		return fail(CodeFieldMismatch, "mint to authority mismatch")
	case mintTo.Amount != 1:
		return fail(CodeFieldMismatch, "mint to amount must be one")
	}

	if res := VerifyMetadataInstruction(m, params); !res.OK {
		return res
	}
	if res := VerifyMasterEditionInstruction(m, params); !res.OK {
		return res
	}

	return ok()
}

// VerifyListingInstruction asserts the message contains a marketplace sell
// instruction whose accounts and fields match the expected listing.
func VerifyListingInstruction(m solana.Message, params ListingParams) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = fail(CodeInternalError, "verification aborted: %v", r)
		}
	}()

	expectedTokenAccount, err := token.GetAssociatedAccount(params.Seller, params.Mint)
	if err != nil {
		return fail(CodeInternalError, "failed to derive seller token account: %v", err)
	}
	expectedAuthority, expectedBump, err := marketplace.GetDepositAuthority(params.Mint)
	if err != nil {
		return fail(CodeInternalError, "failed to derive deposit authority: %v", err)
	}
	expectedDeposit, err := token.GetAssociatedAccount(expectedAuthority, params.Mint)
	if err != nil {
		return fail(CodeInternalError, "failed to derive deposit token account: %v", err)
	}

	var firstMismatch *Result
	invoked := false
	for i := range m.Instructions {
		if !instructionUses(m, i, marketplace.ProgramKey) {
			continue
		}
		invoked = true

		decompiled, err := marketplace.DecompileSell(m, i)
		if err != nil {
			recordMismatch(&firstMismatch, fail(CodeDiscriminatorMismatch, "instruction %d is not a sell: %v", i, err))
			continue
		}

		res := matchSell(decompiled, expectedTokenAccount, expectedAuthority, expectedDeposit, expectedBump, params)
		if res.OK {
			return res
		}
		recordMismatch(&firstMismatch, res)
	}

	if !invoked {
		return fail(CodeRequiredProgramMissing, "marketplace program not invoked")
	}
	return *firstMismatch
}

func matchSell(d *marketplace.DecompiledSell, expectedTokenAccount, expectedAuthority, expectedDeposit ed25519.PublicKey, expectedBump uint8, params ListingParams) Result {
	switch {
	case !bytes.Equal(d.Seller, params.Seller):
		return fail(CodeFieldMismatch, "seller mismatch")
	case !bytes.Equal(d.SellerTokenAccount, expectedTokenAccount):
		return fail(CodeFieldMismatch, "seller token account mismatch")
	case !bytes.Equal(d.Mint, params.Mint):
		return fail(CodeFieldMismatch, "mint mismatch")
	case !bytes.Equal(d.DepositAuthority, expectedAuthority):
		return fail(CodeFieldMismatch, "deposit authority mismatch")
	case !bytes.Equal(d.DepositTokenAccount, expectedDeposit):
		return fail(CodeFieldMismatch, "deposit token account mismatch")
	case len(params.SaleState) > 0 && !bytes.Equal(d.SaleState, params.SaleState):
		return fail(CodeFieldMismatch, "sale state mismatch")
	case d.DepositAuthorityBump != expectedBump:
		return fail(CodeFieldMismatch, "deposit authority bump mismatch")
	case d.Price != params.Price:
		return fail(CodeFieldMismatch, "price mismatch")
	case d.Quantity != 1:
		return fail(CodeFieldMismatch, "quantity must be one")
	case d.StartTime != 0:
		return fail(CodeFieldMismatch, "listing must start immediately")
	case d.SettleInToken:
		return fail(CodeFieldMismatch, "settlement must be in lamports")
	case !bytes.Equal(d.SettlementMint, system.ProgramKey[:]):
		return fail(CodeFieldMismatch, "settlement mint mismatch")
	}
	return ok()
}

func instructionUses(m solana.Message, index int, program ed25519.PublicKey) bool {
	key, err := m.ProgramKeyAt(index)
	if err != nil {
		return false
	}
	return bytes.Equal(key, program)
}

// recordMismatch keeps the most specific mismatch seen across candidates. A
// field mismatch from a decoded candidate outranks a discriminator mismatch
// from one that never decoded.
func recordMismatch(best **Result, r Result) {
	if *best == nil {
		*best = &r
		return
	}
	if (*best).Code == CodeDiscriminatorMismatch && r.Code != CodeDiscriminatorMismatch {
		*best = &r
	}
}
