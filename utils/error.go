package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Stock-integrity errors. Callers must treat these as whole-operation aborts:
// when one is returned no ledger or inventory row has been written.
var (
	ErrorInsufficientStock          = errors.New("insufficient stock")
	ErrorInsufficientAvailableStock = errors.New("insufficient available stock")
	ErrorRollbackUnsupported        = errors.New("rollback unsupported for non-latest ledger entry")
)
