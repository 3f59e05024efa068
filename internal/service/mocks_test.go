package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/bulk-coupon-system/internal/lock"
	"github.com/fairyhunter13/bulk-coupon-system/internal/model"
	"github.com/fairyhunter13/bulk-coupon-system/pkg/database"
)

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
	committed  bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// mockCampaignRepository is a mock implementation of CampaignRepositoryInterface.
type mockCampaignRepository struct {
	insertFn     func(ctx context.Context, c *model.Campaign) error
	getByIDFn    func(ctx context.Context, id int64) (*model.CampaignSummary, error)
	listFn       func(ctx context.Context) ([]model.CampaignSummary, error)
	listActiveFn func(ctx context.Context) ([]model.CampaignSummary, error)
	updateFn     func(ctx context.Context, c *model.Campaign) error
	setActiveFn  func(ctx context.Context, id int64, active bool) error
}

func (m *mockCampaignRepository) Insert(ctx context.Context, c *model.Campaign) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, c)
	}
	return nil
}

func (m *mockCampaignRepository) GetByID(ctx context.Context, id int64) (*model.CampaignSummary, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCampaignRepository) List(ctx context.Context) ([]model.CampaignSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.CampaignSummary{}, nil
}

func (m *mockCampaignRepository) ListActive(ctx context.Context) ([]model.CampaignSummary, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []model.CampaignSummary{}, nil
}

func (m *mockCampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, c)
	}
	return nil
}

func (m *mockCampaignRepository) SetActive(ctx context.Context, id int64, active bool) error {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, id, active)
	}
	return nil
}

// mockBatchRepository is a mock implementation of BatchRepositoryInterface.
type mockBatchRepository struct {
	insertFn         func(ctx context.Context, b *model.Batch) error
	getContextFn     func(ctx context.Context, id int64) (*model.BatchContext, error)
	listFn           func(ctx context.Context) ([]model.BatchContext, error)
	listByCampaignFn func(ctx context.Context, campaignID int64) ([]model.BatchContext, error)
	updateFn         func(ctx context.Context, b *model.Batch) error
	existsFn         func(ctx context.Context, id int64) (bool, error)
	setActiveFn      func(ctx context.Context, q database.TxQuerier, id int64, active bool) error
}

func (m *mockBatchRepository) Insert(ctx context.Context, b *model.Batch) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, b)
	}
	b.ID = 1
	b.Active = true
	return nil
}

func (m *mockBatchRepository) GetContext(ctx context.Context, id int64) (*model.BatchContext, error) {
	if m.getContextFn != nil {
		return m.getContextFn(ctx, id)
	}
	return nil, nil
}

func (m *mockBatchRepository) List(ctx context.Context) ([]model.BatchContext, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.BatchContext{}, nil
}

func (m *mockBatchRepository) Update(ctx context.Context, b *model.Batch) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, b)
	}
	return nil
}

func (m *mockBatchRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]model.BatchContext, error) {
	if m.listByCampaignFn != nil {
		return m.listByCampaignFn(ctx, campaignID)
	}
	return []model.BatchContext{}, nil
}

func (m *mockBatchRepository) Exists(ctx context.Context, id int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return true, nil
}

func (m *mockBatchRepository) SetActive(ctx context.Context, q database.TxQuerier, id int64, active bool) error {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, q, id, active)
	}
	return nil
}

// mockCouponRepository covers the coupon-side interfaces used by the services.
type mockCouponRepository struct {
	getDetailsFn       func(ctx context.Context, code string) (*model.CouponDetails, error)
	applyRedemptionFn  func(ctx context.Context, code string, meta model.RedemptionMetadata, now time.Time) (*model.RedemptionApplied, error)
	markExpiredFn      func(ctx context.Context, code string, now time.Time) (bool, error)
	setStatusByBatchFn func(ctx context.Context, q database.TxQuerier, batchID int64, from, to model.CouponStatus, now time.Time) (int64, error)
	expireBeforeFn     func(ctx context.Context, today, now time.Time) (int64, error)
	streamByBatchFn    func(ctx context.Context, batchID int64, fn func(*model.CouponExportRow) error) error
	streamAllFn        func(ctx context.Context, fn func(*model.CouponExportRow) error) error
}

func (m *mockCouponRepository) GetDetails(ctx context.Context, code string) (*model.CouponDetails, error) {
	if m.getDetailsFn != nil {
		return m.getDetailsFn(ctx, code)
	}
	return nil, nil
}

func (m *mockCouponRepository) ApplyRedemption(ctx context.Context, code string, meta model.RedemptionMetadata, now time.Time) (*model.RedemptionApplied, error) {
	if m.applyRedemptionFn != nil {
		return m.applyRedemptionFn(ctx, code, meta, now)
	}
	return nil, nil
}

func (m *mockCouponRepository) MarkExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	if m.markExpiredFn != nil {
		return m.markExpiredFn(ctx, code, now)
	}
	return true, nil
}

func (m *mockCouponRepository) SetStatusByBatch(ctx context.Context, q database.TxQuerier, batchID int64, from, to model.CouponStatus, now time.Time) (int64, error) {
	if m.setStatusByBatchFn != nil {
		return m.setStatusByBatchFn(ctx, q, batchID, from, to, now)
	}
	return 0, nil
}

func (m *mockCouponRepository) ExpireBefore(ctx context.Context, today, now time.Time) (int64, error) {
	if m.expireBeforeFn != nil {
		return m.expireBeforeFn(ctx, today, now)
	}
	return 0, nil
}

func (m *mockCouponRepository) StreamByBatch(ctx context.Context, batchID int64, fn func(*model.CouponExportRow) error) error {
	if m.streamByBatchFn != nil {
		return m.streamByBatchFn(ctx, batchID, fn)
	}
	return nil
}

func (m *mockCouponRepository) StreamAll(ctx context.Context, fn func(*model.CouponExportRow) error) error {
	if m.streamAllFn != nil {
		return m.streamAllFn(ctx, fn)
	}
	return nil
}

// memCodeStore is an in-memory code table with a unique constraint on code.
type memCodeStore struct {
	mu          sync.Mutex
	codes       map[string]int64
	inserts     [][]string
	existingErr error
	insertErr   error
	// stealFn, when set, runs before each insert and may claim codes as if
	// another writer inserted them first.
	stealFn func(codes []string) []string
}

func newMemCodeStore() *memCodeStore {
	return &memCodeStore{codes: make(map[string]int64)}
}

func (s *memCodeStore) ExistingCodes(ctx context.Context, codes []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existingErr != nil {
		return nil, s.existingErr
	}
	out := []string{}
	for _, c := range codes {
		if _, ok := s.codes[c]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memCodeStore) InsertCodes(ctx context.Context, batchID int64, codes []string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	if s.stealFn != nil {
		for _, c := range s.stealFn(codes) {
			s.codes[c] = -1
		}
	}
	s.inserts = append(s.inserts, append([]string(nil), codes...))
	var n int64
	for _, c := range codes {
		if _, ok := s.codes[c]; ok {
			continue
		}
		s.codes[c] = batchID
		n++
	}
	return n, nil
}

func (s *memCodeStore) countFor(batchID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.codes {
		if b == batchID {
			n++
		}
	}
	return n
}

// mockLocker is a mock implementation of Locker.
type mockLocker struct {
	tryLockFn func(ctx context.Context, key string, ttl time.Duration) (lock.UnlockFunc, bool, error)
	released  int
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (lock.UnlockFunc, bool, error) {
	if m.tryLockFn != nil {
		return m.tryLockFn(ctx, key, ttl)
	}
	return func(context.Context) error { m.released++; return nil }, true, nil
}

// mockGenerator is a mock implementation of BatchGenerator.
type mockGenerator struct {
	generateFn func(ctx context.Context, target GenerationTarget, count int) (int, error)
}

func (m *mockGenerator) Generate(ctx context.Context, target GenerationTarget, count int) (int, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, target, count)
	}
	return count, nil
}

// zeroReader yields zero bytes forever, so every serial is "AAAAAAAA".
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
