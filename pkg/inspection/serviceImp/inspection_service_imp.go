package serviceImp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cropcheck/entities"
	"cropcheck/pkg/apperr"
	"cropcheck/pkg/blob"
	"cropcheck/pkg/classifier"
	"cropcheck/pkg/diagnosis"
	repo "cropcheck/pkg/inspection/repository"
	"cropcheck/pkg/inspection/service"
	"cropcheck/pkg/inspection/types"
	"cropcheck/pkg/metrics"
	"cropcheck/pkg/recommend"
)

var DefaultAllowedExt = []string{"jpg", "jpeg", "png", "bmp", "webp"}

type Options struct {
	MaxImages         int
	MaxFileBytes      int64
	AllowedExt        []string
	ClassifierConf    float64
	ClassifierTimeout time.Duration
	Location          *time.Location
}

func (o *Options) defaults() {
	if o.MaxImages <= 0 {
		o.MaxImages = 5
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = 20 << 20
	}
	if len(o.AllowedExt) == 0 {
		o.AllowedExt = DefaultAllowedExt
	}
	if o.ClassifierConf <= 0 {
		o.ClassifierConf = 0.25
	}
	if o.ClassifierTimeout <= 0 {
		o.ClassifierTimeout = 60 * time.Second
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
}

type inspectionSvc struct {
	r       repo.InspectionRepository
	blobs   blob.Store
	cls     classifier.Client
	engine  *recommend.Engine
	metrics *metrics.Metrics
	log     *zap.Logger
	opts    Options
	allowed map[string]bool
	now     func() time.Time
}

// Option customizes the service beyond Options.
type Option func(*inspectionSvc)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *inspectionSvc) { s.now = now } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *inspectionSvc) { s.metrics = m } }

func NewInspectionService(
	r repo.InspectionRepository,
	blobs blob.Store,
	cls classifier.Client,
	engine *recommend.Engine,
	log *zap.Logger,
	opts Options,
	more ...Option,
) service.InspectionService {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	if engine == nil {
		engine = recommend.NewEngine(nil, nil, log)
	}
	s := &inspectionSvc{
		r: r, blobs: blobs, cls: cls, engine: engine, log: log, opts: opts,
		allowed: map[string]bool{},
		now:     time.Now,
	}
	for _, e := range opts.AllowedExt {
		s.allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	for _, o := range more {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// storeErr maps a missing row to not_found and anything else to store_failure.
func storeErr(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, "%s %d not found", what, id)
	}
	return apperr.Store(err)
}

// ownedRound loads a round and checks the caller owns its field.
func ownedRound(ctx context.Context, r repo.InspectionRepository, uid string, roundID uint, forUpdate bool) (*entities.InspectionRound, error) {
	rd, err := r.FindRound(ctx, roundID, forUpdate)
	if err != nil {
		return nil, storeErr(err, "inspection", roundID)
	}
	f, err := r.FindField(ctx, rd.FieldID, false)
	if err != nil {
		return nil, storeErr(err, "field", rd.FieldID)
	}
	if f.UserID != uid {
		return nil, apperr.New(apperr.KindForbidden, "inspection %d belongs to another user", roundID)
	}
	return rd, nil
}

func handleOf(rd *entities.InspectionRound, idempotent bool) types.RoundHandle {
	return types.RoundHandle{
		InspectionID: rd.InspectionID,
		FieldID:      rd.FieldID,
		ZoneID:       rd.ZoneID,
		RoundNo:      rd.RoundNo,
		Status:       rd.Status,
		Idempotent:   idempotent,
	}
}

func (s *inspectionSvc) StartRound(ctx context.Context, uid string, fieldID, zoneID uint, notes *string, forceNew bool) (types.RoundHandle, error) {
	var out types.RoundHandle
	err := s.r.Transaction(ctx, func(tx repo.InspectionRepository) error {
		f, err := tx.FindField(ctx, fieldID, true)
		if err != nil {
			return storeErr(err, "field", fieldID)
		}
		if f.UserID != uid {
			return apperr.New(apperr.KindForbidden, "field %d belongs to another user", fieldID)
		}
		z, err := tx.FindZone(ctx, zoneID)
		if err != nil {
			return storeErr(err, "zone", zoneID)
		}
		if z.FieldID != fieldID {
			return apperr.New(apperr.KindNotFound, "zone %d not found in field %d", zoneID, fieldID)
		}

		open, err := tx.FindOpenRound(ctx, fieldID, zoneID)
		if err != nil {
			return apperr.Store(err)
		}
		if open != nil && !forceNew {
			out = handleOf(open, true)
			return nil
		}
		if open != nil {
			if err := tx.SetRoundStatus(ctx, open.InspectionID, entities.RoundClosed); err != nil {
				return apperr.Store(err)
			}
		}

		last, err := tx.MaxRoundNo(ctx, fieldID, zoneID)
		if err != nil {
			return apperr.Store(err)
		}
		rd := &entities.InspectionRound{
			FieldID:     fieldID,
			ZoneID:      zoneID,
			RoundNo:     last + 1,
			Status:      entities.RoundOpen,
			Notes:       trimNotes(notes),
			InspectedAt: s.now().UTC(),
		}
		if err := tx.CreateRound(ctx, rd); err != nil {
			return apperr.Store(err)
		}
		out = handleOf(rd, false)
		return nil
	})
	if err != nil {
		return types.RoundHandle{}, err
	}

	s.metrics.RoundsStarted.WithLabelValues(fmt.Sprint(out.Idempotent)).Inc()
	s.log.Info("round started",
		zap.Uint("inspection_id", out.InspectionID),
		zap.Int("round_no", out.RoundNo),
		zap.Bool("idempotent", out.Idempotent),
		zap.Bool("force_new", forceNew))
	return out, nil
}

func trimNotes(n *string) *string {
	if n == nil {
		return nil
	}
	v := strings.TrimSpace(*n)
	if v == "" {
		return nil
	}
	return &v
}

func (s *inspectionSvc) extOf(name string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return ext, ext != "" && s.allowed[ext]
}

func (s *inspectionSvc) UploadImages(ctx context.Context, uid string, roundID uint, files []types.Upload) (types.UploadResult, error) {
	if len(files) == 0 {
		return types.UploadResult{}, apperr.New(apperr.KindNoImages, "no files uploaded")
	}

	var (
		out   types.UploadResult
		saved []string
	)
	err := s.r.Transaction(ctx, func(tx repo.InspectionRepository) error {
		rd, err := ownedRound(ctx, tx, uid, roundID, true)
		if err != nil {
			return err
		}
		if rd.Status != entities.RoundOpen {
			return apperr.New(apperr.KindRoundClosed, "inspection %d is closed", roundID)
		}

		used, err := tx.CountImages(ctx, roundID)
		if err != nil {
			return apperr.Store(err)
		}
		remain := s.opts.MaxImages - used
		if remain <= 0 {
			return apperr.New(apperr.KindQuotaFull, "inspection %d already has %d images", roundID, used).
				With("exist", used).With("max", s.opts.MaxImages)
		}

		accepted := files
		if len(accepted) > remain {
			accepted = files[:remain]
		}
		for _, f := range accepted {
			if ext, ok := s.extOf(f.Filename); !ok {
				return apperr.New(apperr.KindUnsupportedMedia, "file %q has unsupported type %q", f.Filename, ext).
					With("allowed", s.opts.AllowedExt)
			}
			if f.Size > s.opts.MaxFileBytes {
				return apperr.New(apperr.KindPayloadTooLarge, "file %q is %d bytes, limit is %d", f.Filename, f.Size, s.opts.MaxFileBytes).
					With("max_bytes", s.opts.MaxFileBytes)
			}
		}

		for _, f := range accepted {
			img, err := s.store(ctx, tx, roundID, f, &saved)
			if err != nil {
				return err
			}
			out.Saved = append(out.Saved, types.SavedImage{
				ImageID:      img.ImageID,
				ImagePath:    img.ImagePath,
				OriginalName: img.Meta.OriginalName,
			})
		}
		out.Skipped = len(files) - len(accepted)
		out.QuotaRemaining = remain - len(accepted)
		return nil
	})
	if err != nil {
		for _, p := range saved {
			if rmErr := s.blobs.Remove(p); rmErr != nil {
				s.log.Warn("remove orphaned upload", zap.String("path", p), zap.Error(rmErr))
			}
		}
		return types.UploadResult{}, err
	}

	s.metrics.ImagesStored.Add(float64(len(out.Saved)))
	s.metrics.ImagesSkipped.Add(float64(out.Skipped))
	s.log.Info("images uploaded",
		zap.Uint("inspection_id", roundID),
		zap.Int("saved", len(out.Saved)),
		zap.Int("skipped", out.Skipped),
		zap.Int("quota_remaining", out.QuotaRemaining))
	return out, nil
}

// store writes one file to blob storage and records it; saved collects paths
// to clean up if the transaction fails.
func (s *inspectionSvc) store(ctx context.Context, tx repo.InspectionRepository, roundID uint, f types.Upload, saved *[]string) (*entities.ImageRecord, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFailure, err, fmt.Sprintf("open %q: %v", f.Filename, err))
	}
	defer rc.Close()

	path, name, err := s.blobs.Save(roundID, f.Filename, rc)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFailure, err, fmt.Sprintf("save %q: %v", f.Filename, err))
	}
	*saved = append(*saved, path)

	now := s.now().UTC()
	img := &entities.ImageRecord{
		InspectionID: roundID,
		ImagePath:    path,
		CapturedAt:   now,
		Meta: entities.ImageMeta{
			OriginalName: filepath.Base(f.Filename),
			SavedName:    name,
			SavedAtUTC:   now.Format(time.RFC3339),
		},
	}
	if err := tx.CreateImage(ctx, img); err != nil {
		return nil, apperr.Store(err)
	}
	return img, nil
}

func (s *inspectionSvc) GetDetail(ctx context.Context, uid string, roundID uint) (types.RoundDetail, error) {
	rd, err := ownedRound(ctx, s.r, uid, roundID, false)
	if err != nil {
		return types.RoundDetail{}, err
	}
	imgs, err := s.r.ListImages(ctx, roundID)
	if err != nil {
		return types.RoundDetail{}, apperr.Store(err)
	}
	fs, err := s.r.ListFindings(ctx, roundID)
	if err != nil {
		return types.RoundDetail{}, apperr.Store(err)
	}
	used := len(imgs)
	return types.RoundDetail{
		Round:    *rd,
		Images:   imgs,
		Findings: fs,
		Quota:    types.Quota{Max: s.opts.MaxImages, Used: used, Remain: max(s.opts.MaxImages-used, 0)},
	}, nil
}

// Analyze classifies every image of the round and replaces its findings. The
// classifier runs outside the transaction; a classifier failure leaves the
// stored findings and recommendations untouched.
func (s *inspectionSvc) Analyze(ctx context.Context, uid string, roundID uint) (types.AnalysisResult, error) {
	if _, err := ownedRound(ctx, s.r, uid, roundID, false); err != nil {
		return types.AnalysisResult{}, err
	}
	imgs, err := s.r.ListImages(ctx, roundID)
	if err != nil {
		return types.AnalysisResult{}, apperr.Store(err)
	}
	if len(imgs) == 0 {
		return types.AnalysisResult{}, apperr.New(apperr.KindNoImages, "inspection %d has no images", roundID)
	}

	paths := make([]string, 0, len(imgs))
	for _, img := range imgs {
		p, err := s.blobs.Resolve(img.ImagePath)
		if err != nil {
			return types.AnalysisResult{}, apperr.Store(err)
		}
		paths = append(paths, p)
	}
	codes, err := s.r.ValidNutrientCodes(ctx)
	if err != nil {
		return types.AnalysisResult{}, apperr.Store(err)
	}

	preds, err := s.predict(ctx, paths)
	if err != nil {
		s.metrics.AnalysisRuns.WithLabelValues("classifier_error").Inc()
		s.log.Warn("classifier failed", zap.Uint("inspection_id", roundID), zap.Error(err))
		return types.AnalysisResult{}, apperr.Wrap(apperr.KindAnalysisFailed, err, "classifier failed: "+err.Error())
	}

	agg := diagnosis.Aggregate(preds, diagnosis.NewResolver(codes, nil, nil))
	findings := make([]entities.Finding, 0, len(agg.Findings))
	for _, o := range agg.Findings {
		findings = append(findings, entities.Finding{
			InspectionID: roundID,
			NutrientCode: o.Code,
			Severity:     string(o.Severity),
			Confidence:   o.Confidence,
		})
	}

	var touched []string
	err = s.r.Transaction(ctx, func(tx repo.InspectionRepository) error {
		if err := tx.ReplaceFindings(ctx, roundID, findings); err != nil {
			return apperr.Store(err)
		}
		if len(findings) == 0 {
			return nil
		}
		var err error
		touched, err = s.engine.Upsert(ctx, tx, roundID, agg.Codes())
		return apperr.Store(err)
	})
	if err != nil {
		s.metrics.AnalysisRuns.WithLabelValues("store_error").Inc()
		return types.AnalysisResult{}, err
	}

	s.metrics.AnalysisRuns.WithLabelValues("ok").Inc()
	for _, f := range findings {
		s.metrics.Findings.WithLabelValues(f.NutrientCode, f.Severity).Inc()
	}
	s.metrics.UnknownLabels.Add(float64(len(agg.UnknownLabels)))
	s.log.Info("round analyzed",
		zap.Uint("inspection_id", roundID),
		zap.Int("images", len(paths)),
		zap.Int("findings", len(findings)),
		zap.Int("skipped_normal", agg.SkippedNormal),
		zap.Strings("unknown_labels", agg.UnknownLabels))

	unknown := agg.UnknownLabels
	if unknown == nil {
		unknown = []string{}
	}
	if touched == nil {
		touched = []string{}
	}
	return types.AnalysisResult{
		Findings:           findings,
		SkippedNormalCount: agg.SkippedNormal,
		UnknownLabels:      unknown,
		UpdatedCodes:       touched,
	}, nil
}

func (s *inspectionSvc) predict(ctx context.Context, paths []string) ([]classifier.ImagePrediction, error) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.ClassifierTimeout)
	defer cancel()

	start := time.Now()
	preds, err := s.cls.Predict(cctx, paths, s.opts.ClassifierConf)
	s.metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	if err == nil && cctx.Err() != nil {
		err = cctx.Err()
	}
	return preds, err
}

// Complete closes the round. Closing a closed round is a no-op.
func (s *inspectionSvc) Complete(ctx context.Context, uid string, roundID uint) (types.RoundHandle, error) {
	var out types.RoundHandle
	err := s.r.Transaction(ctx, func(tx repo.InspectionRepository) error {
		rd, err := ownedRound(ctx, tx, uid, roundID, true)
		if err != nil {
			return err
		}
		if rd.Status == entities.RoundClosed {
			out = handleOf(rd, true)
			return nil
		}
		if err := tx.SetRoundStatus(ctx, roundID, entities.RoundClosed); err != nil {
			return apperr.Store(err)
		}
		rd.Status = entities.RoundClosed
		out = handleOf(rd, false)
		return nil
	})
	if err != nil {
		return types.RoundHandle{}, err
	}
	s.log.Info("round completed", zap.Uint("inspection_id", roundID), zap.Bool("already_closed", out.Idempotent))
	return out, nil
}

func (s *inspectionSvc) ListRecommendations(ctx context.Context, uid string, roundID uint) ([]types.RecommendationView, error) {
	if _, err := ownedRound(ctx, s.r, uid, roundID, false); err != nil {
		return nil, err
	}
	out, err := s.r.ListRecommendationViews(ctx, roundID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	if out == nil {
		out = []types.RecommendationView{}
	}
	return out, nil
}

const dateLayout = "2006-01-02"

func (s *inspectionSvc) SetRecommendationStatus(ctx context.Context, uid string, recID uint, status string, appliedDate *string) (*entities.Recommendation, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case entities.RecSuggested, entities.RecApplied, entities.RecSkipped:
	default:
		return nil, apperr.New(apperr.KindBadStatus, "status must be one of suggested, applied, skipped").With("status", status)
	}

	var date *string
	if status == entities.RecApplied {
		d := s.now().In(s.opts.Location).Format(dateLayout)
		if appliedDate != nil && strings.TrimSpace(*appliedDate) != "" {
			t, err := time.Parse(dateLayout, strings.TrimSpace(*appliedDate))
			if err != nil {
				return nil, apperr.New(apperr.KindBadDateFormat, "applied_date must be YYYY-MM-DD")
			}
			d = t.Format(dateLayout)
		}
		date = &d
	}

	rec, err := s.r.FindRecommendationByID(ctx, recID)
	if err != nil {
		return nil, storeErr(err, "recommendation", recID)
	}
	if _, err := ownedRound(ctx, s.r, uid, rec.InspectionID, false); err != nil {
		if apperr.KindOf(err) == apperr.KindForbidden {
			return nil, apperr.New(apperr.KindForbidden, "recommendation %d belongs to another user", recID)
		}
		return nil, err
	}

	if err := s.r.SetRecommendationStatus(ctx, recID, status, date); err != nil {
		return nil, apperr.Store(err)
	}
	rec.Status = status
	rec.AppliedDate = date

	s.metrics.StatusChanges.WithLabelValues(status).Inc()
	s.log.Info("recommendation status set",
		zap.Uint("recommendation_id", recID),
		zap.String("status", status),
		zap.Stringp("applied_date", date))
	return rec, nil
}
