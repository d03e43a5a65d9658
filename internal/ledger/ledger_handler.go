package ledger

import (
	"net/http"
	"strconv"
	"time"

	ledgererrors "go-ems/internal/ledger/errors"
	"go-ems/internal/middleware"
	"go-ems/internal/shared/apperror"
	"go-ems/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	now     func() time.Time
	logger  *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("ledger.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("ledger.handler")
	}
	return &Handler{service: service, now: func() time.Time { return time.Now().UTC() }, logger: l}
}

func getActorID(c *gin.Context) string {
	actorID := c.GetString("employee_id")
	if actorID == "" {
		actorID = c.GetString("user_id_validated")
	}
	return actorID
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("ledger request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// QuarterlyBalance serves the current quarter unless both year and quarter are given.
// Callers without leave:read_all only see their own balance.
func (h *Handler) QuarterlyBalance(c *gin.Context) {
	ctx := c.Request.Context()
	companyID := c.GetString("company_id")
	employeeID := c.Param("id")

	if !c.GetBool(middleware.ContextReadAll) && employeeID != getActorID(c) {
		h.writeServiceError(c, ledgererrors.ErrEmployeeNotFound)
		return
	}

	yearParam, quarterParam := c.Query("year"), c.Query("quarter")
	h.logger.Debug("http quarterly balance",
		zap.String("employee_id", employeeID),
		zap.String("year", yearParam),
		zap.String("quarter", quarterParam),
	)

	if yearParam == "" && quarterParam == "" {
		resp, err := h.service.QuarterlyBalance(ctx, companyID, employeeID, h.now())
		if err != nil {
			h.writeServiceError(c, err)
			return
		}
		response.Success(c, http.StatusOK, resp, nil)
		return
	}

	year, err := strconv.Atoi(yearParam)
	if err != nil || year < 1 {
		h.writeServiceError(c, ledgererrors.ErrInvalidFiscalYear)
		return
	}
	quarter, err := ParseQuarter(quarterParam)
	if err != nil {
		h.writeServiceError(c, ledgererrors.ErrInvalidQuarter)
		return
	}

	resp, err := h.service.PeriodBalance(ctx, companyID, employeeID, Period{FiscalYear: year, Quarter: quarter})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) CarryForward(c *gin.Context) {
	companyID := c.GetString("company_id")
	actorID := getActorID(c)

	var req CarryForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http carry forward validation failed", zap.Error(err))
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Invalid input", err.Error())
		return
	}

	resp, err := h.service.CarryForward(c.Request.Context(), companyID, actorID, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}
