package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/services/catalog/internal/domain"
	"github.com/dealcart/deals-platform/services/catalog/internal/repository"
	"github.com/dealcart/deals-platform/services/catalog/internal/service"
)

// ---------- Mocks ----------

type mockDealRepo struct {
	mu       sync.Mutex
	nextID   int64
	deals    map[int64]*domain.Deal
	sold     map[int64]int
	rollback bool
}

func newMockDealRepo() *mockDealRepo {
	return &mockDealRepo{
		nextID: 1,
		deals:  make(map[int64]*domain.Deal),
		sold:   make(map[int64]int),
	}
}

func (m *mockDealRepo) Create(_ context.Context, d *domain.Deal) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := *d
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt

	if m.rollback {
		created.CreatedAt = created.StartAt.Add(time.Second)
		if errs := domain.ValidateCreated(&created); errs.Any() {
			return nil, &repository.RollbackError{Errs: errs}
		}
	}

	m.nextID++
	m.deals[created.ID] = &created
	return &created, nil
}

func (m *mockDealRepo) GetByID(_ context.Context, id int64) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (m *mockDealRepo) List(_ context.Context, limit, offset int) ([]domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Deal
	for _, d := range m.deals {
		out = append(out, *d)
	}
	return out, nil
}

func (m *mockDealRepo) Update(_ context.Context, d *domain.Deal) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deals[d.ID]; !ok {
		return nil, nil
	}
	updated := *d
	updated.UpdatedAt = time.Now()
	m.deals[d.ID] = &updated
	return &updated, nil
}

func (m *mockDealRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deals, id)
	return nil
}

func (m *mockDealRepo) TitleTaken(_ context.Context, title string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.deals {
		if id != excludeID && d.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDealRepo) SetPublishedAt(_ context.Context, id int64, ts *time.Time) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok {
		return nil, nil
	}
	d.PublishedAt = ts
	return ts, nil
}

func (m *mockDealRepo) QuantitySold(_ context.Context, dealID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sold[dealID], nil
}

type mockEventBus struct {
	mu        sync.Mutex
	published []string
	payloads  []interface{}
}

func (m *mockEventBus) Publish(_ context.Context, subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func (m *mockEventBus) Subscribe(string, func(*events.Message)) error            { return nil }
func (m *mockEventBus) QueueSubscribe(string, string, func(*events.Message)) error { return nil }
func (m *mockEventBus) Close() error                                             { return nil }

func (m *mockEventBus) has(subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.published {
		if s == subject {
			return true
		}
	}
	return false
}

// ---------- Helpers ----------

func newDeal(title string) *domain.Deal {
	return &domain.Deal{
		Title:                       title,
		Description:                 "desc",
		Price:                       49.99,
		MinimumPurchasesRequired:    2,
		MaximumPurchasesAllowed:     20,
		MaximumPurchasesPerCustomer: 2,
		StartAt:                     time.Now().Add(24 * time.Hour),
		ExpireAt:                    time.Now().Add(72 * time.Hour),
		CategoryID:                  1,
		LocationIDs:                 []int64{1},
		Images:                      []domain.DealImage{{Filename: "a.jpg", ByteSize: 1000}},
	}
}

func setup() (*mockDealRepo, *mockEventBus, service.DealService) {
	repo := newMockDealRepo()
	bus := &mockEventBus{}
	return repo, bus, service.NewDealService(repo, bus)
}

// ---------- Tests ----------

func TestCreateDealSucceeds(t *testing.T) {
	_, _, svc := setup()

	created, errs, err := svc.CreateDeal(context.Background(), newDeal("Spa day"))
	if err != nil {
		t.Fatalf("CreateDeal error: %v", err)
	}
	if errs != nil {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if created.ID == 0 {
		t.Fatal("expected created deal to get an id")
	}
}

func TestCreateDealRejectsDuplicateTitle(t *testing.T) {
	_, _, svc := setup()

	if _, errs, _ := svc.CreateDeal(context.Background(), newDeal("Spa day")); errs != nil {
		t.Fatalf("first create failed: %v", errs)
	}

	_, errs, err := svc.CreateDeal(context.Background(), newDeal("Spa day"))
	if err != nil {
		t.Fatalf("CreateDeal error: %v", err)
	}
	if errs == nil || len(errs.On("title")) == 0 {
		t.Fatalf("expected title uniqueness error, got %v", errs)
	}
}

func TestCreateDealRejectsInvalidDeal(t *testing.T) {
	repo, _, svc := setup()

	d := newDeal("Broken")
	d.Price = -20.0

	_, errs, err := svc.CreateDeal(context.Background(), d)
	if err != nil {
		t.Fatalf("CreateDeal error: %v", err)
	}
	if errs == nil || len(errs.On("price")) == 0 {
		t.Fatalf("expected price error, got %v", errs)
	}
	if len(repo.deals) != 0 {
		t.Fatal("invalid deal must not be persisted")
	}
}

func TestCreateDealRolledBackByStartAtGuard(t *testing.T) {
	repo, _, svc := setup()
	repo.rollback = true

	_, errs, err := svc.CreateDeal(context.Background(), newDeal("Race"))
	if err != nil {
		t.Fatalf("CreateDeal error: %v", err)
	}
	if errs == nil || len(errs.On("start_at")) == 0 {
		t.Fatalf("expected start_at guard error, got %v", errs)
	}
	if len(repo.deals) != 0 {
		t.Fatal("rolled back deal must not be persisted")
	}
}

func TestUpdateDealRejectsLiveDeal(t *testing.T) {
	repo, _, svc := setup()

	created, _, _ := svc.CreateDeal(context.Background(), newDeal("Spa day"))
	now := time.Now()
	repo.deals[created.ID].PublishedAt = &now

	// published_at unchanged in this save, so the live-or-expired path applies
	patch := *repo.deals[created.ID]
	patch.Description = "new copy"

	_, errs, err := svc.UpdateDeal(context.Background(), created.ID, &patch)
	if err != nil {
		t.Fatalf("UpdateDeal error: %v", err)
	}
	if errs == nil || len(errs.Base) == 0 {
		t.Fatalf("expected live-or-expired base error, got %v", errs)
	}
}

func TestUpdateDealPublishesImagePurgeEvents(t *testing.T) {
	repo, bus, svc := setup()

	created, _, _ := svc.CreateDeal(context.Background(), newDeal("Spa day"))
	// a second image so the publishable image count stays positive
	repo.deals[created.ID].Images = append(repo.deals[created.ID].Images,
		domain.DealImage{ID: 99, Filename: "old.jpg", ByteSize: 500})

	patch := *repo.deals[created.ID]
	patch.Images = []domain.DealImage{
		created.Images[0],
		{ID: 99, Filename: "old.jpg", ByteSize: 500, Remove: true},
	}

	_, errs, err := svc.UpdateDeal(context.Background(), created.ID, &patch)
	if err != nil {
		t.Fatalf("UpdateDeal error: %v", err)
	}
	if errs != nil {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if !bus.has(events.DealImagePurge) {
		t.Fatal("expected an image purge event after removing an attachment")
	}
}

func TestUpdateDealNotFound(t *testing.T) {
	_, _, svc := setup()

	updated, errs, err := svc.UpdateDeal(context.Background(), 404, newDeal("Ghost"))
	if err != nil {
		t.Fatalf("UpdateDeal error: %v", err)
	}
	if errs != nil || updated != nil {
		t.Fatalf("expected nil result for missing deal, got %v / %v", updated, errs)
	}
}

func TestPublishAndUnpublish(t *testing.T) {
	_, bus, svc := setup()

	created, _, _ := svc.CreateDeal(context.Background(), newDeal("Spa day"))

	deal, errs, err := svc.Publish(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if errs != nil {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if deal == nil || deal.PublishedAt == nil {
		t.Fatal("expected a publish timestamp")
	}
	if !bus.has(events.DealPublished) {
		t.Fatal("expected a deal published event")
	}

	deal, errs, err = svc.Unpublish(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Unpublish error: %v", err)
	}
	if errs != nil {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if deal == nil || deal.PublishedAt != nil {
		t.Fatal("expected the publish timestamp to be cleared")
	}
	if !bus.has(events.DealUnpublished) {
		t.Fatal("expected a deal unpublished event")
	}
}

func TestPublishRejectsDealWithoutLocationsOrImages(t *testing.T) {
	repo, bus, svc := setup()

	created, _, _ := svc.CreateDeal(context.Background(), newDeal("Bare draft"))
	repo.deals[created.ID].LocationIDs = nil
	repo.deals[created.ID].Images = nil

	deal, errs, err := svc.Publish(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if deal != nil {
		t.Fatal("deal without locations or images must not publish")
	}
	if errs == nil || len(errs.Base) != 2 {
		t.Fatalf("expected location and image base errors, got %v", errs)
	}
	if repo.deals[created.ID].PublishedAt != nil {
		t.Fatal("publish timestamp must not be persisted on a failed publish")
	}
	if bus.has(events.DealPublished) {
		t.Fatal("no published event on a failed publish")
	}
}

func TestPublishRejectsCollectionOwnedDeal(t *testing.T) {
	repo, _, svc := setup()

	created, _, _ := svc.CreateDeal(context.Background(), newDeal("Bundled"))
	collectionID := int64(7)
	repo.deals[created.ID].CollectionID = &collectionID

	deal, errs, err := svc.Publish(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if deal != nil {
		t.Fatal("collection-owned deal must not publish directly")
	}
	if errs == nil || len(errs.Base) == 0 {
		t.Fatalf("expected a collection base error, got %v", errs)
	}
	if repo.deals[created.ID].PublishedAt != nil {
		t.Fatal("publish timestamp must not be persisted on a failed publish")
	}
}

func TestPublishNotFound(t *testing.T) {
	_, _, svc := setup()

	deal, errs, err := svc.Publish(context.Background(), 404)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if deal != nil || errs != nil {
		t.Fatalf("expected nil result for missing deal, got %v / %v", deal, errs)
	}
}

func TestProgressWithNoOrders(t *testing.T) {
	_, _, svc := setup()

	created, _, _ := svc.CreateDeal(context.Background(), newDeal("Spa day"))

	progress, err := svc.Progress(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	if progress.QuantitySold != 0 {
		t.Errorf("quantity sold: got %d, want 0", progress.QuantitySold)
	}
	if progress.QuantityLeft != created.MaximumPurchasesAllowed {
		t.Errorf("quantity left: got %d, want %d", progress.QuantityLeft, created.MaximumPurchasesAllowed)
	}
	if progress.PercentageSold != 0 {
		t.Errorf("percentage sold: got %d, want 0", progress.PercentageSold)
	}
	if progress.MinimumCriteriaMet {
		t.Error("criteria should not be met with zero sold")
	}
}

func TestProgressCriteriaMet(t *testing.T) {
	repo, _, svc := setup()

	created, _, _ := svc.CreateDeal(context.Background(), newDeal("Spa day"))
	repo.sold[created.ID] = created.MinimumPurchasesRequired

	progress, err := svc.Progress(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	if !progress.MinimumCriteriaMet {
		t.Error("criteria should be met at the minimum")
	}
}
