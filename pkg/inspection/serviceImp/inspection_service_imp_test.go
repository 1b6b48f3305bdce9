package serviceImp

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cropcheck/database/dbtest"
	"cropcheck/entities"
	"cropcheck/pkg/apperr"
	"cropcheck/pkg/blob"
	"cropcheck/pkg/classifier"
	"cropcheck/pkg/inspection/repository"
	"cropcheck/pkg/inspection/repositoryImp"
	"cropcheck/pkg/inspection/service"
	"cropcheck/pkg/inspection/types"
)

type stubClassifier struct {
	mu    sync.Mutex
	out   []classifier.ImagePrediction
	err   error
	calls int
	paths []string
}

func (s *stubClassifier) Predict(ctx context.Context, paths []string, _ float64) ([]classifier.ImagePrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.paths = paths
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

var fixedNow = time.Date(2025, 9, 14, 20, 30, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	svc   service.InspectionService
	cls   *stubClassifier
	root  string
	field entities.Field
	zone  entities.Zone
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	root := t.TempDir()
	store, err := blob.NewLocal(root)
	require.NoError(t, err)

	bkk, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)

	cls := &stubClassifier{}
	svc := NewInspectionService(repositoryImp.New(db), store, cls, nil, zap.NewNop(), Options{
		MaxImages:    5,
		MaxFileBytes: 1024,
		Location:     bkk,
	}, WithClock(func() time.Time { return fixedNow }))

	f, z := dbtest.FieldWithZone(t, db, "alice")
	return &fixture{db: db, svc: svc, cls: cls, root: root, field: f, zone: z}
}

func upload(name, body string) types.Upload {
	return types.Upload{
		Filename: name,
		Size:     int64(len(body)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func uploads(n int) []types.Upload {
	out := make([]types.Upload, n)
	for i := range out {
		out[i] = upload("leaf.jpg", "img")
	}
	return out
}

func (fx *fixture) start(t *testing.T) types.RoundHandle {
	t.Helper()
	h, err := fx.svc.StartRound(context.Background(), "alice", fx.field.FieldID, fx.zone.ZoneID, nil, false)
	require.NoError(t, err)
	return h
}

func (fx *fixture) countOpen(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, fx.db.Model(&entities.InspectionRound{}).
		Where("field_id = ? AND zone_id = ? AND status = ?", fx.field.FieldID, fx.zone.ZoneID, entities.RoundOpen).
		Count(&n).Error)
	return n
}

func TestStartRound_Idempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	notes := "  after rain "

	first, err := fx.svc.StartRound(ctx, "alice", fx.field.FieldID, fx.zone.ZoneID, &notes, false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RoundNo)
	assert.False(t, first.Idempotent)

	second, err := fx.svc.StartRound(ctx, "alice", fx.field.FieldID, fx.zone.ZoneID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, first.InspectionID, second.InspectionID)
	assert.Equal(t, first.RoundNo, second.RoundNo)
	assert.True(t, second.Idempotent)

	var rd entities.InspectionRound
	require.NoError(t, fx.db.First(&rd, first.InspectionID).Error)
	require.NotNil(t, rd.Notes)
	assert.Equal(t, "after rain", *rd.Notes)
}

func TestStartRound_ForceNewClosesPrevious(t *testing.T) {
	fx := newFixture(t)
	r1 := fx.start(t)

	r2, err := fx.svc.StartRound(context.Background(), "alice", fx.field.FieldID, fx.zone.ZoneID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, r1.RoundNo+1, r2.RoundNo)
	assert.False(t, r2.Idempotent)
	assert.NotEqual(t, r1.InspectionID, r2.InspectionID)

	var prev entities.InspectionRound
	require.NoError(t, fx.db.First(&prev, r1.InspectionID).Error)
	assert.Equal(t, entities.RoundClosed, prev.Status)
	assert.Equal(t, int64(1), fx.countOpen(t))
}

func TestStartRound_NumbersAfterCompletedRound(t *testing.T) {
	fx := newFixture(t)
	r1 := fx.start(t)
	_, err := fx.svc.Complete(context.Background(), "alice", r1.InspectionID)
	require.NoError(t, err)

	r2 := fx.start(t)
	assert.Equal(t, 2, r2.RoundNo)
	assert.False(t, r2.Idempotent)
}

func TestStartRound_Errors(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.StartRound(ctx, "bob", fx.field.FieldID, fx.zone.ZoneID, nil, false)
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = fx.svc.StartRound(ctx, "alice", 9999, fx.zone.ZoneID, nil, false)
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = fx.svc.StartRound(ctx, "alice", fx.field.FieldID, 9999, nil, false)
	assert.ErrorIs(t, err, apperr.NotFound)

	other, otherZone := dbtest.FieldWithZone(t, fx.db, "alice")
	_, err = fx.svc.StartRound(ctx, "alice", fx.field.FieldID, otherZone.ZoneID, nil, false)
	assert.ErrorIs(t, err, apperr.NotFound, "zone of field %d", other.FieldID)

	assert.Equal(t, int64(0), fx.countOpen(t))
}

func TestStartRound_ConcurrentCallsShareOneRound(t *testing.T) {
	fx := newFixture(t)

	const n = 8
	ids := make([]uint, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := fx.svc.StartRound(context.Background(), "alice", fx.field.FieldID, fx.zone.ZoneID, nil, false)
			ids[i], errs[i] = h.InspectionID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), fx.countOpen(t))
}

func TestUploadImages_QuotaAcrossBatches(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)

	res, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(3))
	require.NoError(t, err)
	assert.Len(t, res.Saved, 3)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2, res.QuotaRemaining)

	res, err = fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(4))
	require.NoError(t, err)
	assert.Len(t, res.Saved, 2)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.QuotaRemaining)

	_, err = fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(1))
	require.ErrorIs(t, err, apperr.QuotaFull)
	assert.Equal(t, map[string]any{"exist": 5, "max": 5}, apperr.DetailsOf(err))

	var n int64
	require.NoError(t, fx.db.Model(&entities.ImageRecord{}).Where("inspection_id = ?", r.InspectionID).Count(&n).Error)
	assert.Equal(t, int64(5), n)

	files, err := os.ReadDir(filepath.Join(fx.root, "inspections", "1"))
	require.NoError(t, err)
	assert.Len(t, files, 5)
}

func TestUploadImages_ConcurrentBatchesRespectQuota(t *testing.T) {
	fx := newFixture(t)
	r := fx.start(t)

	const n = 6
	results := make([]types.UploadResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.svc.UploadImages(context.Background(), "alice", r.InspectionID, uploads(2))
		}(i)
	}
	wg.Wait()

	saved := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			require.ErrorIs(t, errs[i], apperr.QuotaFull)
			continue
		}
		saved += len(results[i].Saved)
	}
	assert.Equal(t, 5, saved)

	var count int64
	require.NoError(t, fx.db.Model(&entities.ImageRecord{}).Where("inspection_id = ?", r.InspectionID).Count(&count).Error)
	assert.Equal(t, int64(5), count)

	files, err := os.ReadDir(filepath.Join(fx.root, "inspections", "1"))
	require.NoError(t, err)
	assert.Len(t, files, 5)
}

func TestUploadImages_ValidationStoresNothing(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)

	_, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, []types.Upload{upload("a.jpg", "x"), upload("notes.txt", "x")})
	assert.ErrorIs(t, err, apperr.UnsupportedMedia)

	_, err = fx.svc.UploadImages(ctx, "alice", r.InspectionID, []types.Upload{upload("a.PNG", "x"), upload("big.jpg", strings.Repeat("x", 2048))})
	assert.ErrorIs(t, err, apperr.PayloadTooLarge)

	_, err = fx.svc.UploadImages(ctx, "alice", r.InspectionID, nil)
	assert.ErrorIs(t, err, apperr.NoImages)

	// Files past the quota are dropped before validation.
	batch := append(uploads(5), upload("skipped.exe", "x"))
	res, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
}

func TestUploadImages_FailureRollsBackBatch(t *testing.T) {
	fx := newFixture(t)
	r := fx.start(t)

	broken := types.Upload{
		Filename: "b.jpg",
		Size:     1,
		Open:     func() (io.ReadCloser, error) { return nil, errors.New("read error") },
	}
	_, err := fx.svc.UploadImages(context.Background(), "alice", r.InspectionID, []types.Upload{upload("a.jpg", "x"), broken})
	assert.Equal(t, apperr.KindStoreFailure, apperr.KindOf(err))

	var n int64
	require.NoError(t, fx.db.Model(&entities.ImageRecord{}).Count(&n).Error)
	assert.Zero(t, n)

	files, _ := os.ReadDir(filepath.Join(fx.root, "inspections", "1"))
	assert.Empty(t, files, "saved blobs are removed")
}

func TestUploadImages_RoundChecks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)

	_, err := fx.svc.UploadImages(ctx, "bob", r.InspectionID, uploads(1))
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = fx.svc.UploadImages(ctx, "alice", 999, uploads(1))
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = fx.svc.Complete(ctx, "alice", r.InspectionID)
	require.NoError(t, err)
	_, err = fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(1))
	assert.ErrorIs(t, err, apperr.RoundClosed)
}

func TestGetDetail(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)
	_, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(2))
	require.NoError(t, err)

	d, err := fx.svc.GetDetail(ctx, "alice", r.InspectionID)
	require.NoError(t, err)
	assert.Equal(t, r.InspectionID, d.Round.InspectionID)
	assert.Len(t, d.Images, 2)
	assert.Equal(t, "leaf.jpg", d.Images[0].Meta.OriginalName)
	assert.Equal(t, types.Quota{Max: 5, Used: 2, Remain: 3}, d.Quota)

	_, err = fx.svc.GetDetail(ctx, "bob", r.InspectionID)
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestAnalyze_NoImages(t *testing.T) {
	fx := newFixture(t)
	r := fx.start(t)

	_, err := fx.svc.Analyze(context.Background(), "alice", r.InspectionID)
	assert.ErrorIs(t, err, apperr.NoImages)
	assert.Zero(t, fx.cls.calls)

	var n int64
	require.NoError(t, fx.db.Model(&entities.Finding{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAnalyze_AggregatesAndIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)
	_, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(1))
	require.NoError(t, err)

	fx.cls.out = []classifier.ImagePrediction{{
		Image: "leaf.jpg",
		Preds: []classifier.Prediction{{Label: "Potassium", Confidence: 0.92}, {Label: "nomal", Confidence: 0.6}},
	}}

	res, err := fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "K", res.Findings[0].NutrientCode)
	assert.Equal(t, "severe", res.Findings[0].Severity)
	assert.InDelta(t, 92.0, res.Findings[0].Confidence, 1e-9)
	assert.Equal(t, 1, res.SkippedNormalCount)
	assert.Empty(t, res.UnknownLabels)
	assert.Equal(t, []string{"K"}, res.UpdatedCodes)

	require.Len(t, fx.cls.paths, 1)
	assert.True(t, filepath.IsAbs(fx.cls.paths[0]))

	_, err = fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)

	var findings []entities.Finding
	require.NoError(t, fx.db.Where("inspection_id = ?", r.InspectionID).Find(&findings).Error)
	require.Len(t, findings, 1)
	assert.Equal(t, "K", findings[0].NutrientCode)

	var recs []entities.Recommendation
	require.NoError(t, fx.db.Where("inspection_id = ?", r.InspectionID).Find(&recs).Error)
	require.Len(t, recs, 1)
	assert.Equal(t, entities.RecSuggested, recs[0].Status)
	assert.Nil(t, recs[0].AppliedDate)
	require.NotNil(t, recs[0].FertilizerID)
}

func TestAnalyze_KeepsOperatorStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)
	_, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(1))
	require.NoError(t, err)
	fx.cls.out = []classifier.ImagePrediction{{Preds: []classifier.Prediction{{Label: "K", Confidence: 0.7}}}}

	_, err = fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)

	var rec entities.Recommendation
	require.NoError(t, fx.db.Where("inspection_id = ? AND nutrient_code = ?", r.InspectionID, "K").First(&rec).Error)
	date := "2025-09-01"
	_, err = fx.svc.SetRecommendationStatus(ctx, "alice", rec.RecommendationID, "applied", &date)
	require.NoError(t, err)

	require.NoError(t, fx.db.Model(&entities.Fertilizer{}).
		Where("formulation = ?", "0-0-60").
		Update("description", "Split potash into three doses.").Error)

	_, err = fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)

	var after entities.Recommendation
	require.NoError(t, fx.db.First(&after, rec.RecommendationID).Error)
	assert.Equal(t, entities.RecApplied, after.Status)
	require.NotNil(t, after.AppliedDate)
	assert.Equal(t, "2025-09-01", *after.AppliedDate)
	assert.Equal(t, "Split potash into three doses.", after.RecommendationText)
}

func TestAnalyze_ClassifierFailureKeepsPriorState(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)
	_, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(1))
	require.NoError(t, err)

	fx.cls.out = []classifier.ImagePrediction{{Preds: []classifier.Prediction{
		{Label: "Nitrogen", Confidence: 0.5},
		{Label: "mystery", Confidence: 0.9},
		{Label: "mystery", Confidence: 0.8},
	}}}
	res, err := fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mystery"}, res.UnknownLabels)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "mild", res.Findings[0].Severity)

	fx.cls.err = context.DeadlineExceeded
	_, err = fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.ErrorIs(t, err, apperr.AnalysisFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var findings []entities.Finding
	require.NoError(t, fx.db.Where("inspection_id = ?", r.InspectionID).Find(&findings).Error)
	require.Len(t, findings, 1)
	assert.Equal(t, "N", findings[0].NutrientCode)
}

// failingUpdates fails UpdateRecommendation inside transactions once armed.
type failingUpdates struct {
	repository.InspectionRepository
	armed *bool
}

var errUpdateFailed = errors.New("update failed")

func (f failingUpdates) Transaction(ctx context.Context, fn func(repository.InspectionRepository) error) error {
	return f.InspectionRepository.Transaction(ctx, func(tx repository.InspectionRepository) error {
		return fn(failingUpdates{InspectionRepository: tx, armed: f.armed})
	})
}

func (f failingUpdates) UpdateRecommendation(ctx context.Context, rec *entities.Recommendation) error {
	if *f.armed {
		return errUpdateFailed
	}
	return f.InspectionRepository.UpdateRecommendation(ctx, rec)
}

func TestAnalyze_StoreFailureKeepsPriorState(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)
	_, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(1))
	require.NoError(t, err)

	armed := false
	store, err := blob.NewLocal(fx.root)
	require.NoError(t, err)
	svc := NewInspectionService(failingUpdates{InspectionRepository: repositoryImp.New(fx.db), armed: &armed},
		store, fx.cls, nil, zap.NewNop(), Options{MaxImages: 5, MaxFileBytes: 1024},
		WithClock(func() time.Time { return fixedNow }))

	fx.cls.out = []classifier.ImagePrediction{{Preds: []classifier.Prediction{
		{Label: "K", Confidence: 0.7},
		{Label: "N", Confidence: 0.5},
	}}}
	_, err = svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)

	var before []entities.Recommendation
	require.NoError(t, fx.db.Where("inspection_id = ?", r.InspectionID).Order("nutrient_code").Find(&before).Error)
	require.Len(t, before, 2)

	// P is created and findings are replaced before the K update fails.
	armed = true
	fx.cls.out = []classifier.ImagePrediction{{Preds: []classifier.Prediction{
		{Label: "P", Confidence: 0.9},
		{Label: "K", Confidence: 0.95},
	}}}
	_, err = svc.Analyze(ctx, "alice", r.InspectionID)
	require.ErrorIs(t, err, apperr.StoreFailure)
	assert.ErrorIs(t, err, errUpdateFailed)

	var findings []entities.Finding
	require.NoError(t, fx.db.Where("inspection_id = ?", r.InspectionID).Order("nutrient_code").Find(&findings).Error)
	require.Len(t, findings, 2)
	assert.Equal(t, "K", findings[0].NutrientCode)
	assert.InDelta(t, 70.0, findings[0].Confidence, 1e-9)
	assert.Equal(t, "moderate", findings[0].Severity)
	assert.Equal(t, "N", findings[1].NutrientCode)

	var after []entities.Recommendation
	require.NoError(t, fx.db.Where("inspection_id = ?", r.InspectionID).Order("nutrient_code").Find(&after).Error)
	require.Len(t, after, 2)
	for i := range before {
		assert.Equal(t, before[i].RecommendationID, after[i].RecommendationID)
		assert.Equal(t, before[i].NutrientCode, after[i].NutrientCode)
		assert.Equal(t, before[i].RecommendationText, after[i].RecommendationText)
		assert.Equal(t, before[i].Status, after[i].Status)
	}
}

func TestAnalyze_AllNormalClearsFindings(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)
	_, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(1))
	require.NoError(t, err)

	fx.cls.out = []classifier.ImagePrediction{{Preds: []classifier.Prediction{{Label: "Zinc", Confidence: 0.66}}}}
	_, err = fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)

	fx.cls.out = []classifier.ImagePrediction{{Preds: []classifier.Prediction{{Label: "healthy", Confidence: 0.99}}}}
	res, err := fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)
	assert.Empty(t, res.Findings)

	var n int64
	require.NoError(t, fx.db.Model(&entities.Finding{}).Where("inspection_id = ?", r.InspectionID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, fx.db.Model(&entities.Recommendation{}).Where("inspection_id = ?", r.InspectionID).Count(&n).Error)
	assert.Equal(t, int64(1), n, "earlier recommendations stay")
}

func TestSetRecommendationStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)
	rec := entities.Recommendation{InspectionID: r.InspectionID, NutrientCode: "K", Status: entities.RecSuggested}
	require.NoError(t, fx.db.Create(&rec).Error)

	got, err := fx.svc.SetRecommendationStatus(ctx, "alice", rec.RecommendationID, "applied", nil)
	require.NoError(t, err)
	require.NotNil(t, got.AppliedDate)
	// 20:30 UTC is already the next day in Bangkok.
	assert.Equal(t, "2025-09-15", *got.AppliedDate)

	date := "2025-01-01"
	got, err = fx.svc.SetRecommendationStatus(ctx, "alice", rec.RecommendationID, "Skipped", &date)
	require.NoError(t, err)
	assert.Equal(t, entities.RecSkipped, got.Status)
	assert.Nil(t, got.AppliedDate)

	var stored entities.Recommendation
	require.NoError(t, fx.db.First(&stored, rec.RecommendationID).Error)
	assert.Equal(t, entities.RecSkipped, stored.Status)
	assert.Nil(t, stored.AppliedDate)

	_, err = fx.svc.SetRecommendationStatus(ctx, "alice", rec.RecommendationID, "done", nil)
	assert.ErrorIs(t, err, apperr.BadStatus)

	bad := "2025-02-30"
	_, err = fx.svc.SetRecommendationStatus(ctx, "alice", rec.RecommendationID, "applied", &bad)
	assert.ErrorIs(t, err, apperr.BadDateFormat)

	_, err = fx.svc.SetRecommendationStatus(ctx, "bob", rec.RecommendationID, "applied", nil)
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = fx.svc.SetRecommendationStatus(ctx, "alice", 4242, "applied", nil)
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestListRecommendations_JoinsReferenceNames(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)
	_, err := fx.svc.UploadImages(ctx, "alice", r.InspectionID, uploads(1))
	require.NoError(t, err)
	fx.cls.out = []classifier.ImagePrediction{{Preds: []classifier.Prediction{{Label: "nitrogen deficiency", Confidence: 0.9}}}}
	_, err = fx.svc.Analyze(ctx, "alice", r.InspectionID)
	require.NoError(t, err)

	views, err := fx.svc.ListRecommendations(ctx, "alice", r.InspectionID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "N", views[0].NutrientCode)
	require.NotNil(t, views[0].FertName)
	assert.Equal(t, "Urea", *views[0].FertName)
	require.NotNil(t, views[0].NutrientName)
	assert.Equal(t, "Nitrogen", *views[0].NutrientName)

	_, err = fx.svc.ListRecommendations(ctx, "bob", r.InspectionID)
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestComplete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.start(t)

	h, err := fx.svc.Complete(ctx, "alice", r.InspectionID)
	require.NoError(t, err)
	assert.Equal(t, entities.RoundClosed, h.Status)
	assert.False(t, h.Idempotent)

	h, err = fx.svc.Complete(ctx, "alice", r.InspectionID)
	require.NoError(t, err)
	assert.True(t, h.Idempotent)

	_, err = fx.svc.Complete(ctx, "bob", r.InspectionID)
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestListRoundsAndHistory(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	r1 := fx.start(t)
	_, err := fx.svc.UploadImages(ctx, "alice", r1.InspectionID, uploads(2))
	require.NoError(t, err)
	fx.cls.out = []classifier.ImagePrediction{{Preds: []classifier.Prediction{
		{Label: "K", Confidence: 0.9}, {Label: "Mg", Confidence: 0.7},
	}}}
	_, err = fx.svc.Analyze(ctx, "alice", r1.InspectionID)
	require.NoError(t, err)
	r2, err := fx.svc.StartRound(ctx, "alice", fx.field.FieldID, fx.zone.ZoneID, nil, true)
	require.NoError(t, err)

	require.NoError(t, fx.db.Model(&entities.InspectionRound{}).
		Where("inspection_id = ?", r1.InspectionID).
		Update("inspected_at", time.Date(2025, 8, 10, 3, 0, 0, 0, time.UTC)).Error)

	page, err := fx.svc.ListRounds(ctx, "alice", types.RoundFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 100, page.PageSize)
	require.Len(t, page.Items, 2)
	assert.Equal(t, r2.InspectionID, page.Items[0].InspectionID)
	assert.Equal(t, 2, page.Items[1].ImageCount)
	assert.Equal(t, 2, page.Items[1].FindingCount)
	assert.Equal(t, 2, page.Items[1].RecommendationCount)
	assert.Equal(t, "A", page.Items[1].ZoneName)

	page, err = fx.svc.ListRounds(ctx, "alice", types.RoundFilter{Year: 2025, Month: 8})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, r1.InspectionID, page.Items[0].InspectionID)

	page, err = fx.svc.ListRounds(ctx, "bob", types.RoundFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = fx.svc.ListRounds(ctx, "alice", types.RoundFilter{Year: 2025, Month: 13})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	buckets, err := fx.svc.History(ctx, "alice", types.HistoryFilter{Group: "month"})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2025-08", buckets[0].Period)
	assert.Equal(t, 1, buckets[0].Rounds)
	assert.Equal(t, 2, buckets[0].Findings)
	assert.Equal(t, []types.NutrientCount{{Code: "K", Count: 1}, {Code: "Mg", Count: 1}}, buckets[0].TopNutrients)
	assert.Equal(t, "2025-09", buckets[1].Period)
	assert.Equal(t, 0, buckets[1].Findings)

	buckets, err = fx.svc.History(ctx, "alice", types.HistoryFilter{Group: "year"})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].Rounds)

	_, err = fx.svc.History(ctx, "alice", types.HistoryFilter{Group: "week"})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}
