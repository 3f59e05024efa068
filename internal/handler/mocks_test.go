package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
)

type mockCampaignService struct {
	createFn     func(ctx context.Context, req *model.CreateCampaignRequest) (*model.CampaignResponse, error)
	getFn        func(ctx context.Context, id int64) (*model.CampaignResponse, error)
	listFn       func(ctx context.Context) ([]model.CampaignResponse, error)
	listActiveFn func(ctx context.Context) ([]model.CampaignResponse, error)
	updateFn     func(ctx context.Context, id int64, req *model.UpdateCampaignRequest) (*model.CampaignResponse, error)
	deactivateFn func(ctx context.Context, id int64) error
	reactivateFn func(ctx context.Context, id int64) error
}

func (m *mockCampaignService) Create(ctx context.Context, req *model.CreateCampaignRequest) (*model.CampaignResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &model.CampaignResponse{}, nil
}

func (m *mockCampaignService) Get(ctx context.Context, id int64) (*model.CampaignResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.CampaignResponse{ID: id}, nil
}

func (m *mockCampaignService) List(ctx context.Context) ([]model.CampaignResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.CampaignResponse{}, nil
}

func (m *mockCampaignService) ListActive(ctx context.Context) ([]model.CampaignResponse, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []model.CampaignResponse{}, nil
}

func (m *mockCampaignService) Update(ctx context.Context, id int64, req *model.UpdateCampaignRequest) (*model.CampaignResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, req)
	}
	return &model.CampaignResponse{ID: id}, nil
}

func (m *mockCampaignService) Deactivate(ctx context.Context, id int64) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, id)
	}
	return nil
}

func (m *mockCampaignService) Reactivate(ctx context.Context, id int64) error {
	if m.reactivateFn != nil {
		return m.reactivateFn(ctx, id)
	}
	return nil
}

type mockBatchService struct {
	createFn     func(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error)
	topUpFn      func(ctx context.Context, batchID int64, count int) (*model.TopUpResponse, error)
	getFn        func(ctx context.Context, id int64) (*model.BatchResponse, error)
	listAllFn    func(ctx context.Context) ([]model.BatchResponse, error)
	updateFn     func(ctx context.Context, id int64, req *model.UpdateBatchRequest) (*model.BatchResponse, error)
	listFn       func(ctx context.Context, campaignID int64) ([]model.BatchResponse, error)
	deactivateFn func(ctx context.Context, id int64) error
	reactivateFn func(ctx context.Context, id int64) error
}

func (m *mockBatchService) Create(ctx context.Context, req *model.CreateBatchRequest) (*model.BatchResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &model.BatchResponse{}, nil
}

func (m *mockBatchService) TopUp(ctx context.Context, batchID int64, count int) (*model.TopUpResponse, error) {
	if m.topUpFn != nil {
		return m.topUpFn(ctx, batchID, count)
	}
	return &model.TopUpResponse{BatchID: batchID, Requested: count, Generated: count}, nil
}

func (m *mockBatchService) Get(ctx context.Context, id int64) (*model.BatchResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.BatchResponse{ID: id}, nil
}

func (m *mockBatchService) List(ctx context.Context) ([]model.BatchResponse, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return []model.BatchResponse{}, nil
}

func (m *mockBatchService) Update(ctx context.Context, id int64, req *model.UpdateBatchRequest) (*model.BatchResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, req)
	}
	return &model.BatchResponse{ID: id}, nil
}

func (m *mockBatchService) ListByCampaign(ctx context.Context, campaignID int64) ([]model.BatchResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, campaignID)
	}
	return []model.BatchResponse{}, nil
}

func (m *mockBatchService) Deactivate(ctx context.Context, id int64) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, id)
	}
	return nil
}

func (m *mockBatchService) Reactivate(ctx context.Context, id int64) error {
	if m.reactivateFn != nil {
		return m.reactivateFn(ctx, id)
	}
	return nil
}

type mockExportService struct {
	ensureFn   func(ctx context.Context, batchID int64) error
	writeFn    func(ctx context.Context, batchID int64, w io.Writer) (int64, error)
	writeAllFn func(ctx context.Context, w io.Writer) (int64, error)
}

func (m *mockExportService) EnsureBatch(ctx context.Context, batchID int64) error {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, batchID)
	}
	return nil
}

func (m *mockExportService) WriteBatchCSV(ctx context.Context, batchID int64, w io.Writer) (int64, error) {
	if m.writeFn != nil {
		return m.writeFn(ctx, batchID, w)
	}
	return 0, nil
}

func (m *mockExportService) WriteAllCSV(ctx context.Context, w io.Writer) (int64, error) {
	if m.writeAllFn != nil {
		return m.writeAllFn(ctx, w)
	}
	return 0, nil
}

type mockRedemptionService struct {
	redeemFn func(ctx context.Context, code string, meta model.RedemptionMetadata) (*model.RedemptionResult, error)
}

func (m *mockRedemptionService) Redeem(ctx context.Context, code string, meta model.RedemptionMetadata) (*model.RedemptionResult, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, code, meta)
	}
	return &model.RedemptionResult{Success: true, Reason: model.ReasonRedeemed, Code: code}, nil
}

type mockLookupService struct {
	lookupFn func(ctx context.Context, code string) (*model.CouponLookupResponse, error)
}

func (m *mockLookupService) Lookup(ctx context.Context, code string) (*model.CouponLookupResponse, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, code)
	}
	return &model.CouponLookupResponse{CouponCode: code}, nil
}

// doRequest sends a request with an optional JSON body through app.
func doRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// errorMessage decodes the {"error": "..."} body.
func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result["error"]
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }
