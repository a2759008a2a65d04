// Package verify re-checks client-submitted transactions against what the
// server intended to construct. Every verifier in this package is fail
// closed: any uncertainty, decode failure, network error or panic resolves
// to a negative result, and the only success path is the explicit return
// after every check has passed.
package verify

import "fmt"

// Code identifies the first check a verification failed on.
type Code string

const (
	CodeNotFound               Code = "NotFound"
	CodeOnChainFailure         Code = "OnChainFailure"
	CodeRecencyUnknown         Code = "RecencyUnknown"
	CodeTooOld                 Code = "TooOld"
	CodeSignerMismatch         Code = "SignerMismatch"
	CodeMintNotReferenced      Code = "MintNotReferenced"
	CodeRequiredAccountMissing Code = "RequiredAccountMissing"
	CodeRequiredProgramMissing Code = "RequiredProgramMissing"
	CodeDiscriminatorMismatch  Code = "DiscriminatorMismatch"
	CodeFieldMismatch          Code = "FieldMismatch"
	CodeUnexpectedProgram      Code = "UnexpectedProgramInvoked"
	CodeInternalError          Code = "InternalError"
)

// Result is the outcome of a verification. OK is true only when every check
// passed; a failed result always carries a code and a reason.
type Result struct {
	OK    bool
	Code  Code
	Error string
}

func ok() Result {
	return Result{OK: true}
}

func fail(code Code, format string, args ...interface{}) Result {
	return Result{
		OK:    false,
		Code:  code,
		Error: fmt.Sprintf(format, args...),
	}
}
