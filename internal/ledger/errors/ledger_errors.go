package ledgererrors

import (
	"fmt"
	"net/http"

	"go-ems/internal/shared/apperror"
)

var (
	ErrInvalidCompanyID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid company id",
		http.StatusBadRequest,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrInvalidQuarter = apperror.New(
		apperror.CodeInvalidInput,
		"quarter must be one of Q1, Q2, Q3, Q4",
		http.StatusBadRequest,
	)
	ErrInvalidFiscalYear = apperror.New(
		apperror.CodeInvalidInput,
		"fiscal year must be a positive number",
		http.StatusBadRequest,
	)
	ErrUnknownLeaveType = apperror.New(
		apperror.CodeInvalidInput,
		"leave type must be one of Sick, Casual, Paid",
		http.StatusBadRequest,
	)
	ErrEmployeeNotFound = apperror.New(
		apperror.CodeNotFound,
		"employee not found",
		http.StatusNotFound,
	)
	ErrLedgerNotFound = apperror.New(
		apperror.CodeNotFound,
		"no ledger entry for the requested quarter",
		http.StatusNotFound,
	)
)

// InsufficientBalance reports a request that exceeds what is left in the quarter.
func InsufficientBalance(leaveType string, available, requested int) *apperror.AppError {
	return apperror.New(
		apperror.CodeInsufficientBalance,
		fmt.Sprintf("insufficient %s leave balance. Available: %d, Requested: %d", leaveType, available, requested),
		http.StatusBadRequest,
	)
}
