package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-ems/internal/events"
	ledgererrors "go-ems/internal/ledger/errors"
	"go-ems/internal/messaging/kafka"
	"go-ems/internal/shared/contextutil"
	"go-ems/internal/shared/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	BalanceCacheKeyPrefix = "leave:balance:"
	balanceCacheTTL       = 10 * time.Minute
)

// BalanceCacheKey is the Redis key holding the cached balance of one employee for one period.
func BalanceCacheKey(companyID, employeeID string, period Period) string {
	return fmt.Sprintf("%s%s:%s:%d:%s", BalanceCacheKeyPrefix, companyID, employeeID, period.FiscalYear, period.Quarter)
}

//go:generate mockgen -source=ledger_service.go -destination=mock/ledger_service_mock.go -package=mock
type Service interface {
	QuarterlyBalance(ctx context.Context, companyID, employeeID string, on time.Time) (BalanceResponse, error)
	PeriodBalance(ctx context.Context, companyID, employeeID string, period Period) (BalanceResponse, error)
	CarryForward(ctx context.Context, companyID, actorID string, req CarryForwardRequest) (CarryForwardResponse, error)
	OpenCurrent(ctx context.Context, companyID, employeeID string, on time.Time) error
}

type service struct {
	db      *sql.DB
	repo    Repository
	outbox  kafka.OutboxRepository
	rdb     *redis.Client
	policy  AllocationPolicy
	metrics *metrics.Metrics
	sf      *singleflight.Group
	logger  *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	policy AllocationPolicy,
	m *metrics.Metrics,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("ledger.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("ledger.service")
	}
	return &service{
		db:      db,
		repo:    repo,
		outbox:  outboxRepo,
		rdb:     rdb,
		policy:  policy,
		metrics: m,
		sf:      &singleflight.Group{},
		logger:  l,
	}
}

func (s *service) QuarterlyBalance(ctx context.Context, companyID, employeeID string, on time.Time) (BalanceResponse, error) {
	return s.PeriodBalance(ctx, companyID, employeeID, Resolve(on))
}

func (s *service) PeriodBalance(ctx context.Context, companyID, employeeID string, period Period) (BalanceResponse, error) {
	companyUUID, employeeUUID, err := parseIDs(companyID, employeeID)
	if err != nil {
		return BalanceResponse{}, err
	}
	if !period.Quarter.Valid() {
		return BalanceResponse{}, ledgererrors.ErrInvalidQuarter
	}
	if period.FiscalYear < 1 {
		return BalanceResponse{}, ledgererrors.ErrInvalidFiscalYear
	}

	s.logger.Debug("quarterly balance requested",
		zap.String("company_id", companyID),
		zap.String("employee_id", employeeID),
		zap.Int("fiscal_year", period.FiscalYear),
		zap.Stringer("quarter", period.Quarter),
	)

	cacheKey := BalanceCacheKey(companyID, employeeID, period)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var resp BalanceResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return resp, nil
			}
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (any, error) {
		belongs, err := s.repo.EmployeeBelongsToCompany(ctx, companyID, employeeID)
		if err != nil {
			s.logger.Error("quarterly balance employee lookup failed", zap.Error(err))
			return nil, err
		}
		if !belongs {
			return nil, ledgererrors.ErrEmployeeNotFound
		}

		entry, err := s.repo.Open(ctx, s.policy.NewEntry(companyUUID, employeeUUID, period))
		if err != nil {
			s.logger.Error("quarterly balance open ledger failed",
				zap.String("employee_id", employeeID),
				zap.Stringer("period", period),
				zap.Error(err),
			)
			return nil, err
		}

		resp := mapToBalanceResponse(*entry)
		if s.rdb != nil {
			if data, err := json.Marshal(resp); err == nil {
				s.rdb.Set(ctx, cacheKey, string(data), balanceCacheTTL)
			}
		}
		return resp, nil
	})
	if err != nil {
		return BalanceResponse{}, err
	}

	return v.(BalanceResponse), nil
}

func (s *service) CarryForward(ctx context.Context, companyID, actorID string, req CarryForwardRequest) (CarryForwardResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	companyUUID, employeeUUID, err := parseIDs(companyID, req.EmployeeID)
	if err != nil {
		return CarryForwardResponse{}, err
	}
	if req.FromYear < 1 {
		return CarryForwardResponse{}, ledgererrors.ErrInvalidFiscalYear
	}
	quarter, err := ParseQuarter(req.FromQuarter)
	if err != nil {
		return CarryForwardResponse{}, ledgererrors.ErrInvalidQuarter
	}
	from := Period{FiscalYear: req.FromYear, Quarter: quarter}
	to := from.Next()

	s.logger.Debug("carry forward requested",
		zap.String("request_id", rid),
		zap.String("company_id", companyID),
		zap.String("employee_id", req.EmployeeID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("carry forward begin tx failed", zap.String("request_id", rid), zap.Error(err))
		return CarryForwardResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	belongs, err := qtx.EmployeeBelongsToCompany(ctx, companyID, req.EmployeeID)
	if err != nil {
		s.logger.Error("carry forward employee lookup failed", zap.Error(err))
		return CarryForwardResponse{}, err
	}
	if !belongs {
		s.logger.Warn("carry forward employee not in company", zap.String("employee_id", req.EmployeeID))
		return CarryForwardResponse{}, ledgererrors.ErrEmployeeNotFound
	}

	source, err := qtx.Find(ctx, req.EmployeeID, from)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("carry forward source period not opened",
				zap.String("employee_id", req.EmployeeID),
				zap.Stringer("period", from),
			)
			return CarryForwardResponse{}, ledgererrors.ErrLedgerNotFound
		}
		s.logger.Error("carry forward load source failed", zap.Error(err))
		return CarryForwardResponse{}, err
	}

	carried := make(map[LeaveType]int, len(LeaveTypes))
	for _, t := range LeaveTypes {
		carried[t] = max(source.Available(t), 0)
	}

	if _, err := qtx.Open(ctx, s.policy.NewEntry(companyUUID, employeeUUID, to)); err != nil {
		s.logger.Error("carry forward open destination failed", zap.Stringer("period", to), zap.Error(err))
		return CarryForwardResponse{}, err
	}
	if err := qtx.SetCarriedForward(ctx, req.EmployeeID, to, carried); err != nil {
		s.logger.Error("carry forward persist failed", zap.Stringer("period", to), zap.Error(err))
		return CarryForwardResponse{}, err
	}

	if s.outbox != nil {
		payloadCarried := make(map[string]int, len(carried))
		for t, days := range carried {
			payloadCarried[string(t)] = days
		}
		event, err := kafka.NewOutboxEvent(rid, "leave_ledger", req.EmployeeID,
			events.LeaveCarriedForwardType, events.LeaveLifecycleTopic,
			events.LeaveCarriedForwardEvent{
				EventType:      events.LeaveCarriedForwardType,
				RequestID:      rid,
				EmployeeID:     req.EmployeeID,
				CompanyID:      companyID,
				FromFiscalYear: from.FiscalYear,
				FromQuarter:    from.Quarter.String(),
				ToFiscalYear:   to.FiscalYear,
				ToQuarter:      to.Quarter.String(),
				CarriedForward: payloadCarried,
				ActorID:        actorID,
				OccurredAt:     time.Now().UTC(),
			})
		if err != nil {
			s.logger.Error("carry forward build event failed", zap.Error(err))
			return CarryForwardResponse{}, err
		}
		if err := s.outbox.WithTx(tx).Create(ctx, event); err != nil {
			s.logger.Error("carry forward outbox persist failed", zap.Error(err))
			return CarryForwardResponse{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("carry forward commit failed", zap.String("request_id", rid), zap.Error(err))
		return CarryForwardResponse{}, err
	}

	s.invalidate(ctx, companyID, req.EmployeeID, to)
	s.metrics.CarryForward()
	s.logger.Info("carry forward success",
		zap.String("request_id", rid),
		zap.String("employee_id", req.EmployeeID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)

	return CarryForwardResponse{
		EmployeeID:     req.EmployeeID,
		From:           mapToPeriodResponse(from),
		To:             mapToPeriodResponse(to),
		CarriedForward: carried,
	}, nil
}

func (s *service) OpenCurrent(ctx context.Context, companyID, employeeID string, on time.Time) error {
	companyUUID, employeeUUID, err := parseIDs(companyID, employeeID)
	if err != nil {
		return err
	}

	period := Resolve(on)
	if _, err := s.repo.Open(ctx, s.policy.NewEntry(companyUUID, employeeUUID, period)); err != nil {
		s.logger.Error("open current period failed",
			zap.String("employee_id", employeeID),
			zap.Stringer("period", period),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("ledger period opened",
		zap.String("employee_id", employeeID),
		zap.Int("fiscal_year", period.FiscalYear),
		zap.Stringer("quarter", period.Quarter),
	)
	return nil
}

func (s *service) invalidate(ctx context.Context, companyID, employeeID string, period Period) {
	if s.rdb == nil {
		return
	}
	key := BalanceCacheKey(companyID, employeeID, period)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.Error("failed to invalidate balance cache", zap.String("key", key), zap.Error(err))
	}
}

func parseIDs(companyID, employeeID string) (uuid.UUID, uuid.UUID, error) {
	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ledgererrors.ErrInvalidCompanyID
	}
	employeeUUID, err := uuid.Parse(employeeID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ledgererrors.ErrInvalidEmployeeID
	}
	return companyUUID, employeeUUID, nil
}
