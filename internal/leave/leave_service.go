package leave

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go-ems/internal/attendance"
	"go-ems/internal/events"
	leaveerrors "go-ems/internal/leave/errors"
	"go-ems/internal/ledger"
	ledgererrors "go-ems/internal/ledger/errors"
	"go-ems/internal/messaging/kafka"
	"go-ems/internal/shared/contextutil"
	"go-ems/internal/shared/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Ledger transition labels recorded on the leave_ledger_transitions_total counter.
const (
	transitionApprove = "approve"
	transitionReject  = "reject"
	transitionRevoke  = "revoke"
)

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, companyID, actorID string, req CreateLeaveRequest) (LeaveResponse, error)
	GetAll(ctx context.Context, companyID, employeeID string) ([]LeaveResponse, error)
	GetByID(ctx context.Context, companyID string, viewer Viewer, id string) (LeaveResponse, error)
	Update(ctx context.Context, companyID, actorID, id string, req UpdateLeaveRequest) (LeaveResponse, error)
	Delete(ctx context.Context, companyID string, viewer Viewer, id string) error
}

// Viewer is the caller of a single-request read or delete. Without ReadAll only the
// request's own employee may reach it.
type Viewer struct {
	EmployeeID string
	ReadAll    bool
}

func (v Viewer) owns(l *Leave) bool {
	return v.ReadAll || (v.EmployeeID != "" && v.EmployeeID == l.EmployeeID.String())
}

type service struct {
	db         *sql.DB
	repo       Repository
	ledger     ledger.Repository
	attendance attendance.Repository
	outbox     kafka.OutboxRepository
	rdb        *redis.Client
	policy     ledger.AllocationPolicy
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *zap.Logger
}

// Dependencies groups the collaborators of the leave service. Outbox, Redis and Metrics are
// optional.
type Dependencies struct {
	DB         *sql.DB
	Repo       Repository
	Ledger     ledger.Repository
	Attendance attendance.Repository
	Outbox     kafka.OutboxRepository
	Redis      *redis.Client
	Policy     ledger.AllocationPolicy
	Metrics    *metrics.Metrics
}

func NewService(deps Dependencies, logger ...*zap.Logger) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	return &service{
		db:         deps.DB,
		repo:       deps.Repo,
		ledger:     deps.Ledger,
		attendance: deps.Attendance,
		outbox:     deps.Outbox,
		rdb:        deps.Redis,
		policy:     deps.Policy,
		metrics:    deps.Metrics,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     l,
	}
}

type leaveInput struct {
	employeeID uuid.UUID
	leaveType  ledger.LeaveType
	from       time.Time
	to         time.Time
	reason     string
}

func (s *service) Create(ctx context.Context, companyID, actorID string, req CreateLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("create leave requested",
		zap.String("request_id", rid),
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
		zap.String("employee_id", req.EmployeeID),
		zap.String("type", req.Type),
		zap.String("from", req.From),
		zap.String("to", req.To),
	)

	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidCompanyID
	}
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidActorID
	}
	in, err := parseInput(req.EmployeeID, req.Type, req.From, req.To, req.Reason)
	if err != nil {
		s.logger.Warn("create leave validation failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("create leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	ltx := s.ledger.WithTx(tx)

	if err := s.checkEmployee(ctx, ltx, qtx, companyID, in, nil); err != nil {
		return LeaveResponse{}, err
	}

	period := ledger.Resolve(in.from)
	days := ledger.DayCount(in.from, in.to)

	entry, err := ltx.Open(ctx, s.policy.NewEntry(companyUUID, in.employeeID, period))
	if err != nil {
		s.logger.Error("create leave open ledger failed", zap.Stringer("period", period), zap.Error(err))
		return LeaveResponse{}, err
	}
	if available := entry.Available(in.leaveType); available < days {
		return LeaveResponse{}, s.insufficient(in.leaveType, available, days)
	}

	l := &Leave{
		ID:         uuid.New(),
		CompanyID:  companyUUID,
		EmployeeID: in.employeeID,
		LeaveType:  in.leaveType,
		FromDate:   in.from,
		ToDate:     in.to,
		Days:       days,
		FiscalYear: period.FiscalYear,
		Quarter:    period.Quarter,
		Reason:     in.reason,
		Status:     StatusPending,
		CreatedBy:  actorUUID,
	}

	if err := qtx.Create(ctx, l); err != nil {
		s.logger.Error("create leave persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if err := s.writeEvent(ctx, tx, l, events.LeaveRequestedType, "", actorID, 0); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("create leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	s.logger.Info("create leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", l.ID.String()),
		zap.String("employee_id", req.EmployeeID),
		zap.Int("fiscal_year", period.FiscalYear),
		zap.Stringer("quarter", period.Quarter),
		zap.Int("days", days),
	)

	return mapToResponse(*l), nil
}

func (s *service) GetAll(ctx context.Context, companyID, employeeID string) ([]LeaveResponse, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return nil, leaveerrors.ErrInvalidCompanyID
	}
	if employeeID != "" {
		if _, err := uuid.Parse(employeeID); err != nil {
			return nil, leaveerrors.ErrInvalidEmployeeID
		}
	}

	leaves, err := s.repo.FindAllByCompany(ctx, companyID, employeeID)
	if err != nil {
		s.logger.Error("list leaves failed", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) GetByID(ctx context.Context, companyID string, viewer Viewer, id string) (LeaveResponse, error) {
	l, err := s.repo.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
		}
		return LeaveResponse{}, err
	}
	if !viewer.owns(l) {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}
	return mapToResponse(*l), nil
}

func (s *service) Update(ctx context.Context, companyID, actorID, id string, req UpdateLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("update leave requested",
		zap.String("request_id", rid),
		zap.String("leave_id", id),
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
	)

	if _, err := uuid.Parse(companyID); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidCompanyID
	}
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidActorID
	}
	switch {
	case req.Status != nil && req.hasEdits():
		return LeaveResponse{}, leaveerrors.ErrMixedUpdate
	case req.Status == nil && !req.hasEdits():
		return LeaveResponse{}, leaveerrors.ErrEmptyUpdate
	}

	var target string
	if req.Status != nil {
		if target, err = parseStatus(*req.Status); err != nil {
			return LeaveResponse{}, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("update leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
		}
		s.logger.Error("update leave load failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}

	var (
		eventType  string
		transition string
		fromStatus = l.Status
		ledgerDays int
		touched    []ledger.Period
	)
	if req.Status != nil {
		eventType, transition, err = s.transition(ctx, tx, l, target, actorUUID)
		if err != nil {
			return LeaveResponse{}, err
		}
		if transition != transitionReject {
			ledgerDays = l.Days
			touched = append(touched, l.Period())
		}
	} else {
		if err := s.edit(ctx, tx, l, req); err != nil {
			return LeaveResponse{}, err
		}
		eventType = events.LeaveUpdatedType
	}

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("update leave persist failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}
	if err := s.writeEvent(ctx, tx, l, eventType, fromStatus, actorID, ledgerDays); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("update leave commit failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}

	for _, p := range touched {
		s.invalidate(ctx, companyID, l.EmployeeID.String(), p)
	}
	if transition != "" {
		s.metrics.LedgerTransition(transition)
	}
	s.logger.Info("update leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", id),
		zap.String("event", eventType),
		zap.String("status", l.Status),
	)

	return mapToResponse(*l), nil
}

// transition applies an approver decision to l and the ledger. It returns the lifecycle event
// type and the ledger transition label.
func (s *service) transition(ctx context.Context, tx *sql.Tx, l *Leave, target string, actor uuid.UUID) (string, string, error) {
	ltx := s.ledger.WithTx(tx)
	employeeID := l.EmployeeID.String()
	period := l.Period()
	now := s.now()

	switch {
	case l.Status == StatusPending && target == StatusApproved:
		if _, err := ltx.Open(ctx, s.policy.NewEntry(l.CompanyID, l.EmployeeID, period)); err != nil {
			s.logger.Error("approve leave open ledger failed", zap.Stringer("period", period), zap.Error(err))
			return "", "", err
		}
		ok, err := ltx.Consume(ctx, employeeID, period, l.LeaveType, l.Days)
		if err != nil {
			s.logger.Error("approve leave consume failed", zap.String("leave_id", l.ID.String()), zap.Error(err))
			return "", "", err
		}
		if !ok {
			entry, err := ltx.Find(ctx, employeeID, period)
			if err != nil {
				return "", "", err
			}
			return "", "", s.insufficient(l.LeaveType, entry.Available(l.LeaveType), l.Days)
		}
		if err := s.attendance.WithTx(tx).MarkPresent(ctx, l.CompanyID, l.EmployeeID, l.Dates(), attendance.SourceLeave); err != nil {
			s.logger.Error("approve leave attendance backfill failed", zap.String("leave_id", l.ID.String()), zap.Error(err))
			return "", "", err
		}
		l.Status = StatusApproved
		l.ApprovedBy = &actor
		l.ApprovedAt = &now
		return events.LeaveApprovedType, transitionApprove, nil

	case l.Status == StatusPending && target == StatusRejected:
		l.Status = StatusRejected
		l.RejectedBy = &actor
		l.RejectedAt = &now
		return events.LeaveRejectedType, transitionReject, nil

	case l.Status == StatusApproved && target == StatusRejected:
		ok, err := ltx.Release(ctx, employeeID, period, l.LeaveType, l.Days)
		if err != nil {
			s.logger.Error("revoke leave release failed", zap.String("leave_id", l.ID.String()), zap.Error(err))
			return "", "", err
		}
		if !ok {
			return "", "", ledgererrors.ErrLedgerNotFound
		}
		l.Status = StatusRejected
		l.RejectedBy = &actor
		l.RejectedAt = &now
		return events.LeaveRevokedType, transitionRevoke, nil
	}

	s.logger.Warn("update leave invalid transition",
		zap.String("leave_id", l.ID.String()),
		zap.String("from_status", l.Status),
		zap.String("to_status", target),
	)
	return "", "", leaveerrors.ErrInvalidStatusTransition
}

// edit applies requester changes to a pending request. The request's own days are added back
// to the available balance when it stays on the same employee, type and period.
func (s *service) edit(ctx context.Context, tx *sql.Tx, l *Leave, req UpdateLeaveRequest) error {
	if l.Status != StatusPending {
		return leaveerrors.ErrLeaveNotEditable
	}

	employeeID := valueOr(req.EmployeeID, l.EmployeeID.String())
	leaveType := valueOr(req.Type, string(l.LeaveType))
	from := valueOr(req.From, l.FromDate.Format(dateLayout))
	to := valueOr(req.To, l.ToDate.Format(dateLayout))
	reason := valueOr(req.Reason, l.Reason)

	in, err := parseInput(employeeID, leaveType, from, to, reason)
	if err != nil {
		s.logger.Warn("update leave validation failed", zap.Error(err))
		return err
	}

	qtx := s.repo.WithTx(tx)
	ltx := s.ledger.WithTx(tx)
	id := l.ID.String()
	if err := s.checkEmployee(ctx, ltx, qtx, l.CompanyID.String(), in, &id); err != nil {
		return err
	}

	period := ledger.Resolve(in.from)
	days := ledger.DayCount(in.from, in.to)

	entry, err := ltx.Open(ctx, s.policy.NewEntry(l.CompanyID, in.employeeID, period))
	if err != nil {
		s.logger.Error("update leave open ledger failed", zap.Stringer("period", period), zap.Error(err))
		return err
	}
	available := entry.Available(in.leaveType)
	if in.employeeID == l.EmployeeID && in.leaveType == l.LeaveType && period == l.Period() {
		available += l.Days
	}
	if available < days {
		return s.insufficient(in.leaveType, available, days)
	}

	l.EmployeeID = in.employeeID
	l.LeaveType = in.leaveType
	l.FromDate = in.from
	l.ToDate = in.to
	l.Days = days
	l.FiscalYear = period.FiscalYear
	l.Quarter = period.Quarter
	l.Reason = in.reason
	return nil
}

func (s *service) Delete(ctx context.Context, companyID string, viewer Viewer, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("delete leave begin tx failed", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	l, err := qtx.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return leaveerrors.ErrLeaveNotFound
		}
		return err
	}
	if !viewer.owns(l) {
		s.logger.Warn("delete leave denied",
			zap.String("leave_id", id),
			zap.String("actor_id", viewer.EmployeeID),
		)
		return leaveerrors.ErrLeaveNotFound
	}
	if l.Status != StatusPending {
		return leaveerrors.ErrLeaveNotDeletable
	}

	if err := qtx.Delete(ctx, companyID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return leaveerrors.ErrLeaveNotFound
		}
		s.logger.Error("delete leave persist failed", zap.String("leave_id", id), zap.Error(err))
		return err
	}
	if err := s.writeEvent(ctx, tx, l, events.LeaveDeletedType, l.Status, viewer.EmployeeID, 0); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("delete leave commit failed", zap.String("leave_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("delete leave success", zap.String("leave_id", id))
	return nil
}

func (s *service) checkEmployee(ctx context.Context, ltx ledger.Repository, qtx Repository, companyID string, in leaveInput, excludeID *string) error {
	employeeID := in.employeeID.String()
	belongs, err := ltx.EmployeeBelongsToCompany(ctx, companyID, employeeID)
	if err != nil {
		s.logger.Error("leave employee lookup failed", zap.String("employee_id", employeeID), zap.Error(err))
		return err
	}
	if !belongs {
		return leaveerrors.ErrEmployeeNotFound
	}

	overlap, err := qtx.HasOverlappingPeriod(ctx, companyID, employeeID, in.from, in.to, excludeID)
	if err != nil {
		s.logger.Error("leave overlap check failed", zap.Error(err))
		return err
	}
	if overlap {
		s.logger.Warn("leave overlap detected",
			zap.String("employee_id", employeeID),
			zap.Time("from", in.from),
			zap.Time("to", in.to),
		)
		return leaveerrors.ErrLeaveOverlap
	}
	return nil
}

func (s *service) insufficient(t ledger.LeaveType, available, requested int) error {
	s.metrics.InsufficientBalance(string(t))
	s.logger.Warn("insufficient leave balance",
		zap.String("type", string(t)),
		zap.Int("available", available),
		zap.Int("requested", requested),
	)
	return ledgererrors.InsufficientBalance(string(t), available, requested)
}

func (s *service) writeEvent(ctx context.Context, tx *sql.Tx, l *Leave, eventType, fromStatus, actorID string, days int) error {
	if s.outbox == nil {
		return nil
	}

	rid := contextutil.GetRequestID(ctx)
	event, err := kafka.NewOutboxEvent(rid, "leave", l.ID.String(), eventType, events.LeaveLifecycleTopic,
		events.LeaveStatusChangedEvent{
			EventType:  eventType,
			RequestID:  rid,
			LeaveID:    l.ID.String(),
			EmployeeID: l.EmployeeID.String(),
			CompanyID:  l.CompanyID.String(),
			LeaveType:  string(l.LeaveType),
			FiscalYear: l.FiscalYear,
			Quarter:    l.Quarter.String(),
			Days:       days,
			FromStatus: fromStatus,
			ToStatus:   l.Status,
			ActorID:    actorID,
			OccurredAt: s.now(),
		})
	if err != nil {
		s.logger.Error("build leave event failed", zap.String("event", eventType), zap.Error(err))
		return err
	}
	if err := s.outbox.WithTx(tx).Create(ctx, event); err != nil {
		s.logger.Error("leave outbox persist failed", zap.String("event", eventType), zap.Error(err))
		return err
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, companyID, employeeID string, period ledger.Period) {
	if s.rdb == nil {
		return
	}
	key := ledger.BalanceCacheKey(companyID, employeeID, period)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.Error("failed to invalidate balance cache", zap.String("key", key), zap.Error(err))
	}
}

func parseInput(employeeID, leaveType, from, to, reason string) (leaveInput, error) {
	employeeUUID, err := uuid.Parse(employeeID)
	if err != nil {
		return leaveInput{}, leaveerrors.ErrInvalidEmployeeID
	}
	t, err := ledger.ParseLeaveType(leaveType)
	if err != nil {
		return leaveInput{}, leaveerrors.ErrInvalidLeaveType
	}
	fromDate, err := parseDate(from)
	if err != nil {
		return leaveInput{}, err
	}
	toDate, err := parseDate(to)
	if err != nil {
		return leaveInput{}, err
	}
	if fromDate.After(toDate) {
		return leaveInput{}, leaveerrors.ErrInvalidDateRange
	}
	return leaveInput{
		employeeID: employeeUUID,
		leaveType:  t,
		from:       fromDate,
		to:         toDate,
		reason:     strings.TrimSpace(reason),
	}, nil
}

func parseStatus(v string) (string, error) {
	for _, status := range []string{StatusPending, StatusApproved, StatusRejected} {
		if strings.EqualFold(v, status) {
			return status, nil
		}
	}
	return "", leaveerrors.ErrInvalidStatus
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return t, nil
}

func valueOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

func mapToResponse(l Leave) LeaveResponse {
	resp := LeaveResponse{
		ID:         l.ID.String(),
		CompanyID:  l.CompanyID.String(),
		EmployeeID: l.EmployeeID.String(),
		Type:       string(l.LeaveType),
		From:       l.FromDate.Format(dateLayout),
		To:         l.ToDate.Format(dateLayout),
		Days:       l.Days,
		FiscalYear: l.FiscalYear,
		Quarter:    l.Quarter.String(),
		Reason:     l.Reason,
		Status:     l.Status,
		CreatedBy:  l.CreatedBy.String(),
		CreatedAt:  l.CreatedAt.Format(time.RFC3339),
	}
	if l.ApprovedBy != nil {
		v := l.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	if l.ApprovedAt != nil {
		v := l.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &v
	}
	if l.RejectedBy != nil {
		v := l.RejectedBy.String()
		resp.RejectedBy = &v
	}
	if l.RejectedAt != nil {
		v := l.RejectedAt.Format(time.RFC3339)
		resp.RejectedAt = &v
	}
	return resp
}

func mapToListResponse(leaves []Leave) []LeaveResponse {
	resp := make([]LeaveResponse, len(leaves))
	for i, l := range leaves {
		resp[i] = mapToResponse(l)
	}
	return resp
}
