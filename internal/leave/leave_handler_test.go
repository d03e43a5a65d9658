package leave_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-ems/internal/leave"
	leaveerrors "go-ems/internal/leave/errors"
	ledgererrors "go-ems/internal/ledger/errors"
	"go-ems/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

type apiMeta struct {
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
}

type apiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Meta  *apiMeta        `json:"meta"`
	Error *apiError       `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	err := json.Unmarshal(body, &env)
	assert.NoError(t, err)
	return env
}

type fakeLeaveService struct {
	createFn  func(ctx context.Context, companyID, actorID string, req leave.CreateLeaveRequest) (leave.LeaveResponse, error)
	getAllFn  func(ctx context.Context, companyID, employeeID string) ([]leave.LeaveResponse, error)
	getByIDFn func(ctx context.Context, companyID string, viewer leave.Viewer, id string) (leave.LeaveResponse, error)
	updateFn  func(ctx context.Context, companyID, actorID, id string, req leave.UpdateLeaveRequest) (leave.LeaveResponse, error)
	deleteFn  func(ctx context.Context, companyID string, viewer leave.Viewer, id string) error
}

func (f *fakeLeaveService) Create(ctx context.Context, companyID, actorID string, req leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
	return f.createFn(ctx, companyID, actorID, req)
}
func (f *fakeLeaveService) GetAll(ctx context.Context, companyID, employeeID string) ([]leave.LeaveResponse, error) {
	return f.getAllFn(ctx, companyID, employeeID)
}
func (f *fakeLeaveService) GetByID(ctx context.Context, companyID string, viewer leave.Viewer, id string) (leave.LeaveResponse, error) {
	return f.getByIDFn(ctx, companyID, viewer, id)
}
func (f *fakeLeaveService) Update(ctx context.Context, companyID, actorID, id string, req leave.UpdateLeaveRequest) (leave.LeaveResponse, error) {
	return f.updateFn(ctx, companyID, actorID, id, req)
}
func (f *fakeLeaveService) Delete(ctx context.Context, companyID string, viewer leave.Viewer, id string) error {
	return f.deleteFn(ctx, companyID, viewer, id)
}

func newJSONContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestLeaveHandler_Create(t *testing.T) {
	t.Run("success uses user_id_validated fallback", func(t *testing.T) {
		companyID := uuid.New().String()
		actorID := uuid.New().String()
		employeeID := uuid.New().String()

		svc := &fakeLeaveService{
			createFn: func(ctx context.Context, cid, aid string, req leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, companyID, cid)
				assert.Equal(t, actorID, aid)
				assert.Equal(t, employeeID, req.EmployeeID)
				assert.Equal(t, "Sick", req.Type)
				assert.Equal(t, "2025-07-01", req.From)
				assert.Equal(t, "2025-07-02", req.To)
				return leave.LeaveResponse{
					ID:         uuid.New().String(),
					CompanyID:  cid,
					EmployeeID: req.EmployeeID,
					Type:       req.Type,
					From:       req.From,
					To:         req.To,
					Days:       2,
					FiscalYear: 2025,
					Quarter:    "Q2",
					Reason:     req.Reason,
					Status:     leave.StatusPending,
					CreatedBy:  aid,
				}, nil
			},
		}

		h := leave.NewHandler(svc)
		body := `{"employeeId":"` + employeeID + `","type":"Sick","from":"2025-07-01","to":"2025-07-02","reason":"Flu"}`
		c, w := newJSONContext(http.MethodPost, "/leaves", body)
		c.Set("company_id", companyID)
		c.Set("user_id_validated", actorID)

		h.Create(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
		var got leave.LeaveResponse
		assert.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, 2, got.Days)
		assert.Equal(t, "Q2", got.Quarter)
		assert.Equal(t, leave.StatusPending, got.Status)
	})

	t.Run("negative validation error", func(t *testing.T) {
		h := leave.NewHandler(&fakeLeaveService{})
		c, w := newJSONContext(http.MethodPost, "/leaves", `{"employeeId":"not-a-uuid","type":"Sick"}`)

		h.Create(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("negative insufficient balance", func(t *testing.T) {
		svc := &fakeLeaveService{
			createFn: func(context.Context, string, string, leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, ledgererrors.InsufficientBalance("Sick", 2, 3)
			},
		}
		h := leave.NewHandler(svc)
		body := `{"employeeId":"` + uuid.NewString() + `","type":"Sick","from":"2025-07-01","to":"2025-07-03"}`
		c, w := newJSONContext(http.MethodPost, "/leaves", body)

		h.Create(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "INSUFFICIENT_BALANCE", env.Error.Code)
		assert.Equal(t, "insufficient Sick leave balance. Available: 2, Requested: 3", env.Error.Message)
	})

	t.Run("negative employee not found", func(t *testing.T) {
		svc := &fakeLeaveService{
			createFn: func(context.Context, string, string, leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrEmployeeNotFound
			},
		}
		h := leave.NewHandler(svc)
		body := `{"employeeId":"` + uuid.NewString() + `","type":"Sick","from":"2025-07-01","to":"2025-07-01"}`
		c, w := newJSONContext(http.MethodPost, "/leaves", body)

		h.Create(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})

	t.Run("negative persistence error surfaces details", func(t *testing.T) {
		svc := &fakeLeaveService{
			createFn: func(context.Context, string, string, leave.CreateLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, errors.New("connection reset by peer")
			},
		}
		h := leave.NewHandler(svc)
		body := `{"employeeId":"` + uuid.NewString() + `","type":"Sick","from":"2025-07-01","to":"2025-07-01"}`
		c, w := newJSONContext(http.MethodPost, "/leaves", body)

		h.Create(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
		assert.Equal(t, "connection reset by peer", env.Error.Details)
	})
}

func TestLeaveHandler_GetAll(t *testing.T) {
	list := []leave.LeaveResponse{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	t.Run("read_all honours employee filter and paginates", func(t *testing.T) {
		filter := uuid.NewString()
		svc := &fakeLeaveService{
			getAllFn: func(_ context.Context, companyID, employeeID string) ([]leave.LeaveResponse, error) {
				assert.Equal(t, "company-1", companyID)
				assert.Equal(t, filter, employeeID)
				return list, nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodGet, "/leaves?employee_id="+filter+"&page=2&page_size=2", "")
		c.Set("company_id", "company-1")
		c.Set(middleware.ContextReadAll, true)

		h.GetAll(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		var got []leave.LeaveResponse
		assert.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, []leave.LeaveResponse{{ID: "3"}}, got)
		assert.Equal(t, int64(3), env.Meta.Total)
		assert.Equal(t, 2, env.Meta.TotalPages)
	})

	t.Run("page far past the end returns an empty page", func(t *testing.T) {
		svc := &fakeLeaveService{
			getAllFn: func(context.Context, string, string) ([]leave.LeaveResponse, error) {
				return list, nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodGet, "/leaves?page=1000000000000000000&page_size=10", "")
		c.Set(middleware.ContextReadAll, true)

		assert.NotPanics(t, func() { h.GetAll(c) })

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		var got []leave.LeaveResponse
		assert.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Empty(t, got)
		assert.Equal(t, int64(3), env.Meta.Total)
	})

	t.Run("without read_all only own requests", func(t *testing.T) {
		actorID := uuid.NewString()
		svc := &fakeLeaveService{
			getAllFn: func(_ context.Context, _ string, employeeID string) ([]leave.LeaveResponse, error) {
				assert.Equal(t, actorID, employeeID)
				return nil, nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodGet, "/leaves?employee_id="+uuid.NewString(), "")
		c.Set("employee_id", actorID)

		h.GetAll(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("negative service error", func(t *testing.T) {
		svc := &fakeLeaveService{
			getAllFn: func(context.Context, string, string) ([]leave.LeaveResponse, error) {
				return nil, leaveerrors.ErrInvalidEmployeeID
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodGet, "/leaves", "")

		h.GetAll(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLeaveHandler_GetByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		svc := &fakeLeaveService{
			getByIDFn: func(_ context.Context, companyID string, viewer leave.Viewer, gotID string) (leave.LeaveResponse, error) {
				assert.Equal(t, id, gotID)
				assert.Equal(t, leave.Viewer{EmployeeID: "actor-1", ReadAll: true}, viewer)
				return leave.LeaveResponse{ID: gotID, Status: leave.StatusApproved}, nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodGet, "/leaves/"+id, "")
		c.Params = gin.Params{{Key: "id", Value: id}}
		c.Set("employee_id", "actor-1")
		c.Set(middleware.ContextReadAll, true)

		h.GetById(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("negative not found", func(t *testing.T) {
		svc := &fakeLeaveService{
			getByIDFn: func(context.Context, string, leave.Viewer, string) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrLeaveNotFound
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodGet, "/leaves/x", "")
		c.Params = gin.Params{{Key: "id", Value: "x"}}

		h.GetById(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "leave not found", decodeEnvelope(t, w.Body.Bytes()).Error.Message)
	})
}

func TestLeaveHandler_Update(t *testing.T) {
	t.Run("status change", func(t *testing.T) {
		id := uuid.NewString()
		actorID := uuid.NewString()
		svc := &fakeLeaveService{
			updateFn: func(_ context.Context, _ string, aid, gotID string, req leave.UpdateLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, actorID, aid)
				assert.Equal(t, id, gotID)
				if assert.NotNil(t, req.Status) {
					assert.Equal(t, "Approved", *req.Status)
				}
				assert.Nil(t, req.Type)
				return leave.LeaveResponse{ID: gotID, Status: leave.StatusApproved}, nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodPut, "/leaves/"+id, `{"status":"Approved"}`)
		c.Params = gin.Params{{Key: "id", Value: id}}
		c.Set("employee_id", actorID)

		h.Update(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("edit fields", func(t *testing.T) {
		svc := &fakeLeaveService{
			updateFn: func(_ context.Context, _, _, _ string, req leave.UpdateLeaveRequest) (leave.LeaveResponse, error) {
				assert.Nil(t, req.Status)
				if assert.NotNil(t, req.To) {
					assert.Equal(t, "2025-07-04", *req.To)
				}
				return leave.LeaveResponse{Days: 4}, nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodPut, "/leaves/1", `{"to":"2025-07-04"}`)

		h.Update(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("negative validation error", func(t *testing.T) {
		h := leave.NewHandler(&fakeLeaveService{})
		c, w := newJSONContext(http.MethodPut, "/leaves/1", `{"employeeId":"bad"}`)

		h.Update(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})

	t.Run("negative invalid transition", func(t *testing.T) {
		svc := &fakeLeaveService{
			updateFn: func(context.Context, string, string, string, leave.UpdateLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrInvalidStatusTransition
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodPut, "/leaves/1", `{"status":"Approved"}`)

		h.Update(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATE", decodeEnvelope(t, w.Body.Bytes()).Error.Code)
	})
}

func TestLeaveHandler_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeLeaveService{
			deleteFn: func(_ context.Context, companyID string, viewer leave.Viewer, id string) error {
				assert.Equal(t, "company-1", companyID)
				assert.Equal(t, leave.Viewer{EmployeeID: "actor-1"}, viewer)
				assert.Equal(t, "leave-1", id)
				return nil
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodDelete, "/leaves/leave-1", "")
		c.Params = gin.Params{{Key: "id", Value: "leave-1"}}
		c.Set("company_id", "company-1")
		c.Set("employee_id", "actor-1")

		h.Delete(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deleted":true}`, string(decodeEnvelope(t, w.Body.Bytes()).Data))
	})

	t.Run("negative not pending", func(t *testing.T) {
		svc := &fakeLeaveService{
			deleteFn: func(context.Context, string, leave.Viewer, string) error {
				return leaveerrors.ErrLeaveNotDeletable
			},
		}
		h := leave.NewHandler(svc)
		c, w := newJSONContext(http.MethodDelete, "/leaves/leave-1", "")

		h.Delete(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
