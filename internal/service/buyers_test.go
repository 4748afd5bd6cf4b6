package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/turmeric-buyers/internal/database"
	"github.com/octobees/turmeric-buyers/internal/dto"
	"github.com/octobees/turmeric-buyers/internal/entity"
	"github.com/octobees/turmeric-buyers/internal/repository"
	"github.com/octobees/turmeric-buyers/internal/source"
)

type memoryBuyersRepo struct {
	stored     []entity.Buyer
	upserted   []entity.ValidatedRecord
	superseded []uuid.UUID
	runID      uuid.UUID
	loadErr    error
}

func (m *memoryBuyersRepo) Migrate(context.Context) error { return nil }

func (m *memoryBuyersRepo) UpsertBuyers(_ context.Context, runID uuid.UUID, records []entity.ValidatedRecord, superseded []uuid.UUID) (repository.UpsertResult, error) {
	m.runID = runID
	m.upserted = append(m.upserted, records...)
	m.superseded = append(m.superseded, superseded...)
	return repository.UpsertResult{Inserted: len(records), Replaced: len(superseded), Total: len(records)}, nil
}

func (m *memoryBuyersRepo) List(_ context.Context, filter dto.BuyerFilter) ([]entity.Buyer, error) {
	if filter.Limit > 0 && filter.Limit < len(m.stored) {
		return m.stored[:filter.Limit], nil
	}
	return m.stored, nil
}

func (m *memoryBuyersRepo) LoadAll(context.Context) ([]entity.Buyer, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.stored, nil
}

func storedBuyer(name, email string) entity.Buyer {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return entity.Buyer{
		ID:          uuid.New(),
		CompanyName: name,
		Email:       &email,
		Source:      "csv",
		Score:       90,
		Verdicts:    []byte(`{}`),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestBuyersServiceValidateThresholdOverride(t *testing.T) {
	noSite := everest()
	noSite.Website = ""
	svc := NewBuyersService(nil, newTestPipeline(t, DefaultPipelineConfig(), activeSites()), nil, nil)

	result, err := svc.Validate(context.Background(), []entity.CandidateRecord{noSite}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Accepted) != 0 || result.Reasons["low validation score"] != 1 {
		t.Fatalf("expected moderate tier to reject a 75 point record, got %+v", result)
	}

	result, err = svc.Validate(context.Background(), []entity.CandidateRecord{noSite}, "lenient")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Accepted) != 1 || result.Accepted[0].Score != 75 {
		t.Fatalf("expected lenient tier to accept, got %+v", result)
	}

	if _, err := svc.Validate(context.Background(), nil, "sometimes"); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected error for unknown threshold")
	}
}

func TestBuyersServiceValidateRejectsOversizedBatch(t *testing.T) {
	svc := NewBuyersService(nil, newTestPipeline(t, DefaultPipelineConfig(), activeSites()), nil, nil)
	records := make([]entity.CandidateRecord, MaxBatchSize+1)
	if _, err := svc.Validate(context.Background(), records, ""); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	if err := CheckBatchSize(MaxBatchSize); err != nil {
		t.Fatalf("expected a full batch to be allowed, got %v", err)
	}
}

func TestBuyersServiceCollectPersistsFreshBuyers(t *testing.T) {
	golden := entity.CandidateRecord{
		CompanyName: "Golden Spice Traders",
		Email:       "buy@goldenspice.in",
		Phone:       "+91 9123456780",
		Website:     "https://goldenspice.in",
		City:        "Erode",
	}
	repo := &memoryBuyersRepo{stored: []entity.Buyer{storedBuyer("Everest Spices Pvt Ltd", "sales@everestspices.com")}}
	collector := &source.MultiCollector{Collectors: []source.Collector{
		source.StaticCollector{Label: "directory", Records: []entity.CandidateRecord{everest(), golden}},
	}}
	svc := NewBuyersService(repo, newTestPipeline(t, DefaultPipelineConfig(), activeSites()), collector, nil)

	outcome, err := svc.Collect(context.Background(), CollectOptions{Terms: []string{"turmeric buyer"}, Persist: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Batch.Accepted) != 2 {
		t.Fatalf("expected both candidates accepted, got %+v", outcome.Batch)
	}
	if outcome.Upsert.Inserted != 2 || outcome.Merged != 0 {
		t.Fatalf("expected the more complete fresh copies to be stored, got %+v / merged %d", outcome.Upsert, outcome.Merged)
	}
	if len(repo.superseded) != 1 || repo.superseded[0] != repo.stored[0].ID {
		t.Fatalf("expected the sparse stored copy to be superseded, got %v", repo.superseded)
	}
	if repo.runID != outcome.Batch.RunID {
		t.Fatalf("expected run id to be forwarded to the store")
	}
	if repo.upserted[1].Source != "directory" || repo.upserted[1].SearchTerm != "turmeric buyer" {
		t.Fatalf("expected records tagged by collector, got %+v", repo.upserted[1].CandidateRecord)
	}

	summary := Summarize(outcome)
	if summary.AcceptedCount != 2 || summary.Inserted != 2 || summary.Hint != "" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestMergeWithStoredKeepsMoreCompleteStoredCopy(t *testing.T) {
	stored := storedBuyer("Golden Spice Traders", "buy@goldenspice.in")
	phone := "+919123456780"
	city := "Erode"
	stored.Phone = &phone
	stored.City = &city

	sparse := entity.ValidatedRecord{
		CandidateRecord: entity.CandidateRecord{CompanyName: "Golden Spice Traders Pvt Ltd", Email: "buy@goldenspice.in"},
		Accepted:        true,
	}
	fresh := entity.ValidatedRecord{
		CandidateRecord: entity.CandidateRecord{CompanyName: "Haldi House", Email: "info@haldihouse.in"},
		Accepted:        true,
	}

	survivors, superseded, merged := mergeWithStored([]entity.Buyer{stored}, []entity.ValidatedRecord{sparse, fresh}, 0.85)
	if merged != 1 || len(superseded) != 0 {
		t.Fatalf("expected one merged record and nothing superseded, got %d, %v", merged, superseded)
	}
	if len(survivors) != 1 || survivors[0].CompanyName != "Haldi House" {
		t.Fatalf("unexpected survivors %+v", survivors)
	}
}

func TestMergeWithStoredSupersedesLessCompleteStoredCopy(t *testing.T) {
	sparse := storedBuyer("Everest Spices", "sales@everestspices.com")
	other := storedBuyer("Haldi House", "info@haldihouse.in")
	richer := entity.ValidatedRecord{
		CandidateRecord: entity.CandidateRecord{
			CompanyName: "Everest Spice Traders India",
			Email:       "sales@everestspices.com",
			Phone:       "+91 9876543210",
			City:        "Mumbai",
		},
		Accepted: true,
	}

	survivors, superseded, merged := mergeWithStored([]entity.Buyer{sparse, other}, []entity.ValidatedRecord{richer}, 0.85)
	if merged != 0 || len(survivors) != 1 {
		t.Fatalf("expected the richer record to survive, got %+v, merged %d", survivors, merged)
	}
	if len(superseded) != 1 || superseded[0] != sparse.ID {
		t.Fatalf("expected only the sparse copy to be superseded, got %v", superseded)
	}
}

func TestBuyersServicePersistReplacesStoredCopyWithDifferentNameKey(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "buyers.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	repo := repository.NewSQLiteBuyersRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	first := entity.ValidatedRecord{
		CandidateRecord: entity.CandidateRecord{CompanyName: "Everest Spices", Email: "sales@everestspices.com"},
		Score:           85,
		Accepted:        true,
	}
	if _, err := repo.UpsertBuyers(ctx, uuid.New(), []entity.ValidatedRecord{first}, nil); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	svc := NewBuyersService(repo, newTestPipeline(t, DefaultPipelineConfig(), activeSites()), nil, nil)
	richer := entity.ValidatedRecord{
		CandidateRecord: entity.CandidateRecord{
			CompanyName: "Everest Spice Traders India",
			Email:       "sales@everestspices.com",
			Phone:       "+91 9876543210",
			Website:     "https://everestspices.com",
			City:        "Mumbai",
		},
		Score:    100,
		Accepted: true,
	}
	result, merged, err := svc.Persist(ctx, entity.BatchResult{RunID: uuid.New(), Accepted: []entity.ValidatedRecord{richer}})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if result.Inserted != 1 || result.Replaced != 1 || merged != 0 {
		t.Fatalf("expected the stored copy to be replaced, got %+v merged %d", result, merged)
	}

	buyers, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(buyers) != 1 || buyers[0].CompanyName != "Everest Spice Traders India" {
		t.Fatalf("expected a single merged buyer, got %+v", buyers)
	}
}

func TestBuyersServiceWithoutStoreOrCollector(t *testing.T) {
	svc := NewBuyersService(nil, newTestPipeline(t, DefaultPipelineConfig(), activeSites()), nil, nil)
	ctx := context.Background()

	if _, err := svc.Collect(ctx, CollectOptions{}); !errors.Is(err, ErrNoCollector) {
		t.Fatalf("expected ErrNoCollector, got %v", err)
	}
	if _, err := svc.List(ctx, dto.BuyerFilter{}); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, _, err := svc.Persist(ctx, entity.BatchResult{}); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestBuyersServicePersistSurfacesLoadErrors(t *testing.T) {
	repo := &memoryBuyersRepo{loadErr: errors.New("db down")}
	svc := NewBuyersService(repo, newTestPipeline(t, DefaultPipelineConfig(), activeSites()), nil, nil)
	if _, _, err := svc.Persist(context.Background(), entity.BatchResult{}); err == nil {
		t.Fatalf("expected load error to surface")
	}
}

func TestBuyersServiceExportRecords(t *testing.T) {
	repo := &memoryBuyersRepo{stored: []entity.Buyer{
		storedBuyer("Golden Spice Traders", "buy@goldenspice.in"),
		storedBuyer("Haldi House", "info@haldihouse.in"),
	}}
	svc := NewBuyersService(repo, newTestPipeline(t, DefaultPipelineConfig(), activeSites()), nil, nil)

	records, err := svc.ExportRecords(context.Background(), dto.BuyerFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || !records[0].Accepted || records[0].Score != 90 {
		t.Fatalf("unexpected export records %+v", records)
	}

	records, err = svc.ExportRecords(context.Background(), dto.BuyerFilter{Limit: 1})
	if err != nil || len(records) != 1 {
		t.Fatalf("expected filtered export, got %d records, %v", len(records), err)
	}
}

func TestSummarizeAddsHintWhenNothingAccepted(t *testing.T) {
	summary := Summarize(RunOutcome{Batch: entity.BatchResult{RunID: uuid.New(), TotalInput: 3, RejectedCount: 3}})
	if summary.Hint != NoAcceptedHint {
		t.Fatalf("expected hint, got %+v", summary)
	}
}
