package rbac

import (
	"net/http"

	"go-ems/internal/shared/apperror"
)

var (
	ErrRoleNotFound = apperror.New(
		apperror.CodeNotFound,
		"Role not found",
		http.StatusNotFound,
	)
	ErrInvalidID = apperror.New(
		apperror.CodeInvalidInput,
		"Invalid company or employee ID",
		http.StatusBadRequest,
	)
)
