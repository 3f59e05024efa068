package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
	"github.com/fairyhunter13/bulk-coupon-system/internal/service"
	appvalidator "github.com/fairyhunter13/bulk-coupon-system/internal/validator"
)

func setupBatchApp(svc *mockBatchService, exports *mockExportService) *fiber.App {
	app := fiber.New()
	h := NewBatchHandler(svc, exports, appvalidator.New())
	app.Post("/api/batches", h.Create)
	app.Get("/api/batches", h.List)
	app.Get("/api/batches/:id", h.Get)
	app.Put("/api/batches/:id", h.Update)
	app.Post("/api/batches/:id/coupons", h.TopUp)
	app.Delete("/api/batches/:id", h.Deactivate)
	app.Post("/api/batches/:id/reactivate", h.Reactivate)
	app.Get("/api/batches/:id/export", h.Export)
	app.Get("/api/coupons/export", h.ExportAll)
	app.Get("/api/campaigns/:id/batches", h.ListByCampaign)
	return app
}

func TestBatchHandler_Create_Success(t *testing.T) {
	var got *model.CreateBatchRequest
	svc := &mockBatchService{
		createFn: func(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error) {
			got = req
			return &model.BatchResponse{
				ID:             11,
				CampaignID:     req.CampaignID,
				Prefix:         "FFABCD",
				CouponCount:    *req.CouponCount,
				GeneratedCount: intPtr(*req.CouponCount),
				MaxUsages:      3,
				Active:         true,
			}, nil
		},
	}
	app := setupBatchApp(svc, &mockExportService{})

	body := `{"campaign_id": 2, "coupon_count": 500, "max_usages": 3, "expiry_date": "2026-12-31"}`
	resp := doRequest(t, app, http.MethodPost, "/api/batches", body)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out model.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(11), out.ID)
	require.NotNil(t, out.GeneratedCount)
	assert.Equal(t, 500, *out.GeneratedCount)

	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.CampaignID)
	require.NotNil(t, got.ExpiryDate)
	assert.Equal(t, "2026-12-31", *got.ExpiryDate)
	assert.Nil(t, got.StartDate)
}

func TestBatchHandler_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing campaign", `{"coupon_count": 5}`, "invalid request: campaign_id is required"},
		{"missing count", `{"campaign_id": 1}`, "invalid request: coupon_count is required"},
		{"zero count", `{"campaign_id": 1, "coupon_count": 0}`, "invalid request: coupon_count must be at least 1"},
		{"count too large", `{"campaign_id": 1, "coupon_count": 3000001}`, "invalid request: coupon_count must be at most 3000000"},
		{"bad override date", `{"campaign_id": 1, "coupon_count": 5, "start_date": "2026-13-01"}`, "invalid request: start_date must be a date in YYYY-MM-DD format"},
		{"zero override cap", `{"campaign_id": 1, "coupon_count": 5, "max_usages": 0}`, "invalid request: max_usages must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			app := setupBatchApp(&mockBatchService{
				createFn: func(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error) {
					called = true
					return nil, nil
				},
			}, &mockExportService{})

			resp := doRequest(t, app, http.MethodPost, "/api/batches", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, errorMessage(t, resp))
			assert.False(t, called, "service must not be called on invalid input")
		})
	}
}

func TestBatchHandler_Create_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"campaign missing", service.ErrCampaignNotFound, fiber.StatusNotFound},
		{"campaign inactive", service.ErrCampaignInactive, fiber.StatusConflict},
		{"date range", service.ErrInvalidDateRange, fiber.StatusBadRequest},
		{"generation running", service.ErrGenerationInProgress, fiber.StatusConflict},
		{"storage fault", fmt.Errorf("%w: insert codes: %w", service.ErrGenerationFailed, errors.New("conn reset")), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupBatchApp(&mockBatchService{
				createFn: func(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error) {
					return nil, tt.err
				},
			}, &mockExportService{})

			resp := doRequest(t, app, http.MethodPost, "/api/batches", `{"campaign_id": 1, "coupon_count": 5}`)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestBatchHandler_Create_StorageFaultHidesDetails(t *testing.T) {
	app := setupBatchApp(&mockBatchService{
		createFn: func(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error) {
			return nil, errors.New("pq: password authentication failed")
		},
	}, &mockExportService{})

	resp := doRequest(t, app, http.MethodPost, "/api/batches", `{"campaign_id": 1, "coupon_count": 5}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", errorMessage(t, resp))
}

func TestBatchHandler_Create_GenerationFailureReportsBatch(t *testing.T) {
	app := setupBatchApp(&mockBatchService{
		createFn: func(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error) {
			return nil, &service.GenerationError{
				BatchID:   31,
				Generated: 4000,
				Err:       errors.Join(service.ErrGenerationFailed, errors.New("connection lost")),
			}
		},
	}, &mockExportService{})

	resp := doRequest(t, app, http.MethodPost, "/api/batches", `{"campaign_id": 1, "coupon_count": 10000}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var out struct {
		Error     string `json:"error"`
		BatchID   int64  `json:"batch_id"`
		Generated int    `json:"generated"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "coupon generation failed", out.Error)
	assert.Equal(t, int64(31), out.BatchID)
	assert.Equal(t, 4000, out.Generated)
}

func TestBatchHandler_TopUp(t *testing.T) {
	var gotID int64
	var gotCount int
	svc := &mockBatchService{
		topUpFn: func(ctx context.Context, batchID int64, count int) (*model.TopUpResponse, error) {
			gotID, gotCount = batchID, count
			return &model.TopUpResponse{BatchID: batchID, Requested: count, Generated: count - 1}, nil
		},
	}
	app := setupBatchApp(svc, &mockExportService{})

	resp := doRequest(t, app, http.MethodPost, "/api/batches/8/coupons", `{"count": 100}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(8), gotID)
	assert.Equal(t, 100, gotCount)

	var out model.TopUpResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 99, out.Generated)
}

func TestBatchHandler_TopUp_Errors(t *testing.T) {
	svc := &mockBatchService{
		topUpFn: func(ctx context.Context, batchID int64, count int) (*model.TopUpResponse, error) {
			if batchID == 1 {
				return nil, service.ErrBatchInactive
			}
			return nil, service.ErrBatchNotFound
		},
	}
	app := setupBatchApp(svc, &mockExportService{})

	resp := doRequest(t, app, http.MethodPost, "/api/batches/1/coupons", `{"count": 10}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "batch is inactive", errorMessage(t, resp))

	resp = doRequest(t, app, http.MethodPost, "/api/batches/2/coupons", `{"count": 10}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/api/batches/2/coupons", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request: count is required", errorMessage(t, resp))

	resp = doRequest(t, app, http.MethodPost, "/api/batches/x/coupons", `{"count": 10}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid batch id", errorMessage(t, resp))
}

func TestBatchHandler_GetAndList(t *testing.T) {
	svc := &mockBatchService{
		getFn: func(ctx context.Context, id int64) (*model.BatchResponse, error) {
			if id == 99 {
				return nil, service.ErrBatchNotFound
			}
			return &model.BatchResponse{ID: id, UsedCoupons: 4}, nil
		},
		listFn: func(ctx context.Context, campaignID int64) ([]model.BatchResponse, error) {
			return []model.BatchResponse{{ID: 1, CampaignID: campaignID}, {ID: 2, CampaignID: campaignID}}, nil
		},
	}
	app := setupBatchApp(svc, &mockExportService{})

	resp := doRequest(t, app, http.MethodGet, "/api/batches/5", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var one model.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&one))
	assert.Equal(t, int64(4), one.UsedCoupons)

	resp = doRequest(t, app, http.MethodGet, "/api/batches/99", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "batch not found", errorMessage(t, resp))

	resp = doRequest(t, app, http.MethodGet, "/api/campaigns/3/batches", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list []model.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[1].CampaignID)
}

func TestBatchHandler_DeactivateReactivate(t *testing.T) {
	var calls []string
	svc := &mockBatchService{
		deactivateFn: func(ctx context.Context, id int64) error {
			calls = append(calls, fmt.Sprintf("deactivate:%d", id))
			return nil
		},
		reactivateFn: func(ctx context.Context, id int64) error {
			calls = append(calls, fmt.Sprintf("reactivate:%d", id))
			return errors.New("tx aborted")
		},
	}
	app := setupBatchApp(svc, &mockExportService{})

	resp := doRequest(t, app, http.MethodDelete, "/api/batches/6", "")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/api/batches/6/reactivate", "")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	assert.Equal(t, []string{"deactivate:6", "reactivate:6"}, calls)
}

func TestBatchHandler_Export_StreamsCSV(t *testing.T) {
	exports := &mockExportService{
		writeFn: func(ctx context.Context, batchID int64, w io.Writer) (int64, error) {
			_, _ = io.WriteString(w, "Coupon Code,Status\n")
			_, _ = io.WriteString(w, "FFABCD23456789,ACTIVE\n")
			return 1, nil
		},
	}
	app := setupBatchApp(&mockBatchService{}, exports)

	resp := doRequest(t, app, http.MethodGet, "/api/batches/12/export", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, `attachment; filename="batch-12-coupons.csv"`, resp.Header.Get(fiber.HeaderContentDisposition))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Coupon Code,Status\nFFABCD23456789,ACTIVE\n", string(body))
}

func TestBatchHandler_Export_UnknownBatch(t *testing.T) {
	started := false
	exports := &mockExportService{
		ensureFn: func(ctx context.Context, batchID int64) error {
			return service.ErrBatchNotFound
		},
		writeFn: func(ctx context.Context, batchID int64, w io.Writer) (int64, error) {
			started = true
			return 0, nil
		},
	}
	app := setupBatchApp(&mockBatchService{}, exports)

	resp := doRequest(t, app, http.MethodGet, "/api/batches/12/export", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "batch not found", errorMessage(t, resp))
	assert.False(t, started, "export must not start for an unknown batch")
}

func TestBatchHandler_Update(t *testing.T) {
	var gotID int64
	var got *model.UpdateBatchRequest
	svc := &mockBatchService{
		updateFn: func(ctx context.Context, id int64, req *model.UpdateBatchRequest) (*model.BatchResponse, error) {
			gotID, got = id, req
			return &model.BatchResponse{ID: id, MaxUsages: *req.MaxUsages}, nil
		},
	}
	app := setupBatchApp(svc, &mockExportService{})

	resp := doRequest(t, app, http.MethodPut, "/api/batches/8", `{"max_usages": 2}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out model.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.MaxUsages)
	assert.Equal(t, int64(8), gotID)
	require.NotNil(t, got)
	assert.Nil(t, got.ExpiryDate, "omitted fields stay nil")
}

func TestBatchHandler_Update_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"bad id", "/api/batches/x", `{}`, nil, fiber.StatusBadRequest, "invalid batch id"},
		{"zero cap", "/api/batches/8", `{"max_usages": 0}`, nil, fiber.StatusBadRequest, "invalid request: max_usages must be at least 1"},
		{"bad date", "/api/batches/8", `{"expiry_date": "31-12-2026"}`, nil, fiber.StatusBadRequest, "invalid request: expiry_date must be a date in YYYY-MM-DD format"},
		{"unknown", "/api/batches/8", `{}`, service.ErrBatchNotFound, fiber.StatusNotFound, "batch not found"},
		{"date range", "/api/batches/8", `{}`, service.ErrInvalidDateRange, fiber.StatusBadRequest, service.ErrInvalidDateRange.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupBatchApp(&mockBatchService{
				updateFn: func(ctx context.Context, id int64, req *model.UpdateBatchRequest) (*model.BatchResponse, error) {
					return nil, tt.err
				},
			}, &mockExportService{})

			resp := doRequest(t, app, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, errorMessage(t, resp))
		})
	}
}

func TestBatchHandler_List(t *testing.T) {
	svc := &mockBatchService{
		listAllFn: func(ctx context.Context) ([]model.BatchResponse, error) {
			return []model.BatchResponse{{ID: 1}, {ID: 2}}, nil
		},
	}
	app := setupBatchApp(svc, &mockExportService{})

	resp := doRequest(t, app, http.MethodGet, "/api/batches", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out []model.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out, 2)
}

func TestBatchHandler_ExportAll_StreamsCSV(t *testing.T) {
	exports := &mockExportService{
		writeAllFn: func(ctx context.Context, w io.Writer) (int64, error) {
			_, _ = io.WriteString(w, "Coupon Code,Status\n")
			_, _ = io.WriteString(w, "FFABCD23456789,EXPIRED\n")
			return 1, nil
		},
	}
	app := setupBatchApp(&mockBatchService{}, exports)

	resp := doRequest(t, app, http.MethodGet, "/api/coupons/export", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, `attachment; filename="all-coupons.csv"`, resp.Header.Get(fiber.HeaderContentDisposition))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Coupon Code,Status\nFFABCD23456789,EXPIRED\n", string(body))
}
