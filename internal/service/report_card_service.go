package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gradeflow-api/internal/dto"
	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
	"github.com/noah-isme/gradeflow-api/pkg/export"
	"github.com/noah-isme/gradeflow-api/pkg/jobs"
	"github.com/noah-isme/gradeflow-api/pkg/photo"
	"github.com/noah-isme/gradeflow-api/pkg/storage"
)

const (
	rendererNative = "native"
	rendererHTML   = "html"

	reportCardResource = "report_card"
)

type reportCardStore interface {
	FindByID(ctx context.Context, id string) (*models.ReportCard, error)
	FindByKey(ctx context.Context, studentID, schoolYear, semester string) (*models.ReportCard, error)
	Upsert(ctx context.Context, card *models.ReportCard) error
	List(ctx context.Context, filter models.ReportCardFilter) ([]models.ReportCard, int, error)
	UpdateEdits(ctx context.Context, id string, edited models.ReportCardData) error
	UpdatePDF(ctx context.Context, id, url, path string) error
	ClearPDF(ctx context.Context, id string) error
	TransitionStatus(ctx context.Context, id string, from, to models.ReportCardStatus) error
	Delete(ctx context.Context, id string) error
}

type reportStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type programNameResolver interface {
	ProgramNameByClassID(ctx context.Context, classID string) (string, error)
	ProgramNameByClassName(ctx context.Context, className string) (string, error)
}

type studentGradeReader interface {
	ListForStudentPeriod(ctx context.Context, studentID, schoolYear, semester string) ([]models.Grade, error)
}

type classStatsReader interface {
	SubjectWeights(ctx context.Context, className, schoolYear, semester string) ([]models.SubjectWeight, error)
	ClassSubjectStats(ctx context.Context, className, schoolYear, semester string) ([]models.ClassSubjectStats, error)
}

type activeTemplateReader interface {
	FindActive(ctx context.Context) (*models.ReportCardTemplate, error)
}

// PhotoReader loads raw student pictures by their stored path.
type PhotoReader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// ReportCardServiceConfig tunes report card generation.
type ReportCardServiceConfig struct {
	BatchSize     int
	SignedURLTTL  time.Duration
	StatsCacheTTL time.Duration
	PhotoMaxSize  int
}

// ReportCardDeps groups the collaborators of ReportCardService.
type ReportCardDeps struct {
	Cards     reportCardStore
	Students  reportStudentReader
	Programs  programNameResolver
	Grades    studentGradeReader
	Stats     classStatsReader
	Templates activeTemplateReader
	Store     storage.ObjectStore
	Photos    PhotoReader
	Cache     *CacheService
	Metrics   *MetricsService
	Audit     *AuditService
}

// ReportCardService assembles report card documents and renders them to PDF.
type ReportCardService struct {
	cards     reportCardStore
	students  reportStudentReader
	programs  programNameResolver
	grades    studentGradeReader
	stats     classStatsReader
	templates activeTemplateReader
	store     storage.ObjectStore
	photos    PhotoReader
	cache     *CacheService
	metrics   *MetricsService
	audit     *AuditService
	batcher   *jobs.Batcher
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportCardServiceConfig

	now         func() time.Time
	rendererFor func(models.ReportCardTemplate) export.Renderer
}

// NewReportCardService constructs the report card service.
func NewReportCardService(deps ReportCardDeps, validate *validator.Validate, logger *zap.Logger, cfg ReportCardServiceConfig) *ReportCardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = jobs.DefaultBatchSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	if cfg.PhotoMaxSize <= 0 {
		cfg.PhotoMaxSize = photo.DefaultMaxSize
	}
	return &ReportCardService{
		cards:       deps.Cards,
		students:    deps.Students,
		programs:    deps.Programs,
		grades:      deps.Grades,
		stats:       deps.Stats,
		templates:   deps.Templates,
		store:       deps.Store,
		photos:      deps.Photos,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		audit:       deps.Audit,
		batcher:     jobs.NewBatcher("report-card-pdf", jobs.BatchConfig{Size: cfg.BatchSize, Logger: logger}),
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		rendererFor: export.SelectRenderer,
	}
}

// Generate assembles the report card document of a student for one period and
// upserts it. A previously rendered PDF is removed from storage before the row
// is reset to draft.
func (s *ReportCardService) Generate(ctx context.Context, actor models.ActorContext, req dto.GenerateReportCardRequest) (*models.ReportCard, error) {
	if err := requireReportCardManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report card payload")
	}

	doc, templateID, err := s.Assemble(ctx, req)
	if err != nil {
		s.metrics.RecordReportCardGenerated(false)
		return nil, err
	}

	existing, err := s.cards.FindByKey(ctx, req.StudentID, req.SchoolYear, req.Semester)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}

	card := &models.ReportCard{
		StudentID:     req.StudentID,
		SchoolYear:    req.SchoolYear,
		Semester:      req.Semester,
		ClassName:     doc.ClassName,
		TemplateID:    templateID,
		GeneratedData: *doc,
	}
	if existing != nil {
		if existing.Status == models.ReportCardFinalized {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "report card is finalized")
		}
		card.ID = existing.ID
		if existing.HasPDF() {
			if err := s.store.Remove(ctx, []string{*existing.PDFPath}); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to remove previous report card pdf")
			}
		}
	}

	if err := s.cards.Upsert(ctx, card); err != nil {
		s.metrics.RecordReportCardGenerated(false)
		if existing != nil && existing.HasPDF() {
			s.clearRemovedPDF(ctx, existing.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save report card")
	}
	s.metrics.RecordReportCardGenerated(true)

	s.audit.Record(ctx, actor, models.AuditActionReportCardGenerate, reportCardResource, card.ID, map[string]interface{}{
		"student_id":      card.StudentID,
		"school_year":     card.SchoolYear,
		"semester":        card.Semester,
		"subjects":        len(doc.SubjectAverages),
		"student_average": doc.StudentAverage,
	})
	s.logger.Sugar().Infow("report card generated", "report_card_id", card.ID, "student_id", card.StudentID, "subjects", len(doc.SubjectAverages))
	return card, nil
}

// Assemble builds the report card document without persisting it. It also
// returns the ID of the template in use, nil for the built-in default.
func (s *ReportCardService) Assemble(ctx context.Context, req dto.GenerateReportCardRequest) (*models.ReportCardData, *string, error) {
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	className := strings.TrimSpace(req.ClassName)
	if className == "" && student.ClassName != nil {
		className = *student.ClassName
	}
	if className == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "class_name is required when the student has no class")
	}

	programName, err := s.programName(ctx, student, className)
	if err != nil {
		return nil, nil, err
	}

	grades, err := s.grades.ListForStudentPeriod(ctx, student.ID, req.SchoolYear, req.Semester)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	averages, err := s.subjectAverages(ctx, grades, className, req.SchoolYear, req.Semester)
	if err != nil {
		return nil, nil, err
	}

	tpl, err := s.activeTemplate(ctx)
	if err != nil {
		return nil, nil, err
	}
	var templateID *string
	if tpl.ID != "" {
		id := tpl.ID
		templateID = &id
	}

	doc := &models.ReportCardData{
		Student: models.ReportCardStudent{
			ID:        student.ID,
			FirstName: student.FirstName,
			LastName:  student.LastName,
			BirthDate: student.BirthDate,
			ClassName: className,
			PhotoPath: student.PhotoPath,
		},
		ProgramName:     programName,
		SchoolYear:      req.SchoolYear,
		Semester:        req.Semester,
		ClassName:       className,
		SubjectAverages: averages,
		StudentAverage:  OverallAverage(averages),
		ClassAverage:    ClassOverallAverage(averages),
		Template:        tpl,
		GeneratedAt:     s.now(),
	}
	return doc, templateID, nil
}

// subjectAverages aggregates the grades then applies class weights and statistics.
func (s *ReportCardService) subjectAverages(ctx context.Context, grades []models.Grade, className, schoolYear, semester string) ([]models.SubjectAverage, error) {
	averages := ComputeSubjectAverages(grades)

	weights, err := s.subjectWeights(ctx, className, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject weights")
	}
	ApplyWeights(averages, weights)

	stats, err := s.classStats(ctx, className, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class statistics")
	}
	MergeClassStats(averages, stats)
	return averages, nil
}

func (s *ReportCardService) subjectWeights(ctx context.Context, className, schoolYear, semester string) (map[string]float64, error) {
	key := classStatsKey("weights", className, schoolYear, semester)
	var cached map[string]float64
	if hit, _ := s.cache.Get(ctx, key, &cached); hit && cached != nil {
		return cached, nil
	}
	start := time.Now()
	rows, err := s.stats.SubjectWeights(ctx, className, schoolYear, semester)
	s.metrics.ObserveDBQuery("get_subject_weights", time.Since(start))
	if err != nil {
		return nil, err
	}
	weights := weightMap(rows)
	_ = s.cache.Set(ctx, key, weights, s.cfg.StatsCacheTTL)
	return weights, nil
}

func (s *ReportCardService) classStats(ctx context.Context, className, schoolYear, semester string) ([]models.ClassSubjectStats, error) {
	key := classStatsKey("subjects", className, schoolYear, semester)
	var cached []models.ClassSubjectStats
	if hit, _ := s.cache.Get(ctx, key, &cached); hit && cached != nil {
		return cached, nil
	}
	start := time.Now()
	stats, err := s.stats.ClassSubjectStats(ctx, className, schoolYear, semester)
	s.metrics.ObserveDBQuery("get_class_subject_stats", time.Since(start))
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []models.ClassSubjectStats{}
	}
	_ = s.cache.Set(ctx, key, stats, s.cfg.StatsCacheTTL)
	return stats, nil
}

// programName resolves through the student's class, then by class name.
// A missing program is not an error.
func (s *ReportCardService) programName(ctx context.Context, student *models.Student, className string) (*string, error) {
	if student.ClassID != nil && *student.ClassID != "" {
		name, err := s.programs.ProgramNameByClassID(ctx, *student.ClassID)
		switch {
		case err == nil && name != "":
			return &name, nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve program")
		}
	}
	name, err := s.programs.ProgramNameByClassName(ctx, className)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve program")
	}
	if name == "" {
		return nil, nil
	}
	return &name, nil
}

// activeTemplate returns the default active template, the first active one, or the built-in default.
func (s *ReportCardService) activeTemplate(ctx context.Context) (models.ReportCardTemplate, error) {
	tpl, err := s.templates.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultReportCardTemplate(), nil
		}
		return models.ReportCardTemplate{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card template")
	}
	return *tpl, nil
}

// Get returns a report card. For private storage the PDF link is re-signed.
func (s *ReportCardService) Get(ctx context.Context, id string) (*models.ReportCard, error) {
	card, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refreshLink(ctx, card)
	return card, nil
}

// List returns report cards matching the filter.
func (s *ReportCardService) List(ctx context.Context, filter models.ReportCardFilter) ([]models.ReportCard, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	cards, total, err := s.cards.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report cards")
	}
	for i := range cards {
		s.refreshLink(ctx, &cards[i])
	}
	return cards, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateEdits stores an edited document. The card goes back to draft and keeps
// its stored PDF until the next render overwrites it.
func (s *ReportCardService) UpdateEdits(ctx context.Context, actor models.ActorContext, id string, req dto.UpdateReportCardEditsRequest) (*models.ReportCard, error) {
	if err := requireReportCardManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report card edits")
	}
	card, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if card.Status == models.ReportCardFinalized {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "report card is finalized")
	}

	edited := *req.EditedData
	if edited.SubjectAverages == nil {
		edited.SubjectAverages = []models.SubjectAverage{}
	}
	if edited.Template.Name == "" {
		edited.Template = card.GeneratedData.Template
	}
	if err := s.cards.UpdateEdits(ctx, id, edited); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "report card is finalized")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save report card edits")
	}
	card.EditedData = &edited
	card.Status = models.ReportCardDraft

	s.audit.Record(ctx, actor, models.AuditActionReportCardEdit, reportCardResource, id, nil)
	return card, nil
}

// Finalize locks a generated report card.
func (s *ReportCardService) Finalize(ctx context.Context, actor models.ActorContext, id string) (*models.ReportCard, error) {
	if err := requireReportCardManager(actor); err != nil {
		return nil, err
	}
	card, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch card.Status {
	case models.ReportCardFinalized:
		return nil, appErrors.Clone(appErrors.ErrFinalized, "report card is already finalized")
	case models.ReportCardGenerated:
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report card pdf must be generated before finalizing")
	}

	if err := s.cards.TransitionStatus(ctx, id, models.ReportCardGenerated, models.ReportCardFinalized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report card changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize report card")
	}
	card.Status = models.ReportCardFinalized

	s.audit.Record(ctx, actor, models.AuditActionReportCardFinalize, reportCardResource, id, nil)
	return card, nil
}

// Delete removes the stored PDF, then the report card. Finalized cards can
// only be deleted by administrators.
func (s *ReportCardService) Delete(ctx context.Context, actor models.ActorContext, id string) error {
	if err := requireReportCardManager(actor); err != nil {
		return err
	}
	card, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if card.Status == models.ReportCardFinalized && !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrFinalized, "only administrators can delete a finalized report card")
	}
	if card.HasPDF() {
		if err := s.store.Remove(ctx, []string{*card.PDFPath}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to remove report card pdf")
		}
	}
	if err := s.cards.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report card")
	}

	s.audit.Record(ctx, actor, models.AuditActionReportCardDelete, reportCardResource, id, map[string]string{"status": string(card.Status)})
	return nil
}

// GeneratePDF renders the effective document, stores it and marks the card
// generated. A render or upload failure leaves the card untouched.
func (s *ReportCardService) GeneratePDF(ctx context.Context, actor models.ActorContext, id string) (*dto.ReportCardPDFResponse, error) {
	if err := requireReportCardManager(actor); err != nil {
		return nil, err
	}
	card, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if card.Status == models.ReportCardFinalized {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "report card is finalized")
	}

	doc := card.EffectiveData()
	tpl := doc.Template
	if tpl.Name == "" {
		tpl = card.GeneratedData.Template
	}
	if tpl.Name == "" {
		tpl = models.DefaultReportCardTemplate()
	}

	data, err := s.render(ctx, doc, tpl)
	if err != nil {
		return nil, err
	}

	path := ReportCardPDFPath(card)
	if err := s.store.Upload(ctx, path, data, storage.ContentTypePDF); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to upload report card pdf")
	}
	replacesStored := card.HasPDF() && *card.PDFPath == path

	url, expiresAt, err := s.objectURL(ctx, path)
	if err != nil {
		if !replacesStored {
			s.discard(ctx, path)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create report card url")
	}

	if err := s.cards.UpdatePDF(ctx, id, url, path); err != nil {
		if !replacesStored {
			s.discard(ctx, path)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "report card is finalized")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record report card pdf")
	}
	if card.HasPDF() && *card.PDFPath != path {
		s.discard(ctx, *card.PDFPath)
	}

	s.audit.Record(ctx, actor, models.AuditActionReportCardPDF, reportCardResource, id, map[string]string{"pdf_path": path})
	return &dto.ReportCardPDFResponse{
		ID:        id,
		Status:    models.ReportCardGenerated,
		PDFURL:    url,
		ExpiresAt: expiresAt,
	}, nil
}

// BulkGeneratePDF renders several report cards in fixed size concurrent
// batches. Every id yields one result and failures do not stop the run.
func (s *ReportCardService) BulkGeneratePDF(ctx context.Context, actor models.ActorContext, req dto.BulkReportCardPDFRequest) (*dto.BulkReportCardPDFResponse, error) {
	if err := requireReportCardManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk pdf payload")
	}

	results := make([]dto.BulkReportCardPDFResult, len(req.IDs))
	errs := s.batcher.Run(ctx, len(req.IDs), func(ctx context.Context, i int) error {
		resp, err := s.GeneratePDF(ctx, actor, req.IDs[i])
		if err != nil {
			return err
		}
		url := resp.PDFURL
		results[i].PDFURL = &url
		return nil
	})

	out := &dto.BulkReportCardPDFResponse{Total: len(req.IDs), Results: results}
	for i, err := range errs {
		results[i].ID = req.IDs[i]
		if err != nil {
			msg := err.Error()
			results[i].Error = &msg
			out.Failed++
			continue
		}
		results[i].Success = true
		out.Succeeded++
	}
	s.metrics.RecordBatchItems(out.Succeeded, out.Failed)
	s.logger.Sugar().Infow("bulk report card pdf finished", "total", out.Total, "succeeded", out.Succeeded, "failed", out.Failed)
	return out, nil
}

// ReportCardPDFPath is the storage path of a report card PDF.
func ReportCardPDFPath(card *models.ReportCard) string {
	return fmt.Sprintf("report-cards/%s/%s/%s.pdf", pathSegment(card.SchoolYear), pathSegment(card.Semester), card.ID)
}

var pathSegmentReplacer = strings.NewReplacer("/", "-", "\\", "-", "..", "-", " ", "_")

func pathSegment(v string) string {
	v = pathSegmentReplacer.Replace(strings.TrimSpace(v))
	if v == "" {
		return "_"
	}
	return v
}

func (s *ReportCardService) render(ctx context.Context, doc models.ReportCardData, tpl models.ReportCardTemplate) ([]byte, error) {
	name := rendererNative
	if tpl.HasCustomHTML() {
		name = rendererHTML
	}
	pic := s.loadPhoto(ctx, doc.Student, tpl)

	start := time.Now()
	data, err := s.rendererFor(tpl).Render(doc, tpl, pic)
	s.metrics.ObservePDFRender(name, err == nil, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, "failed to render report card")
	}
	return data, nil
}

// loadPhoto returns nil whenever the picture is disabled, missing or unreadable.
func (s *ReportCardService) loadPhoto(ctx context.Context, student models.ReportCardStudent, tpl models.ReportCardTemplate) *export.Photo {
	if !tpl.ShowPhoto || s.photos == nil || student.PhotoPath == nil || *student.PhotoPath == "" {
		return nil
	}
	raw, err := s.photos.Read(ctx, *student.PhotoPath)
	if err != nil {
		s.logger.Warn("student photo unavailable", zap.String("student_id", student.ID), zap.Error(err))
		return nil
	}
	thumb, err := photo.Thumbnail(raw, s.cfg.PhotoMaxSize)
	if err != nil {
		s.logger.Warn("student photo unreadable", zap.String("student_id", student.ID), zap.Error(err))
		return nil
	}
	return &export.Photo{Data: thumb, ImageType: photo.ImageTypeJPEG}
}

func (s *ReportCardService) objectURL(ctx context.Context, path string) (string, *time.Time, error) {
	if s.store.Public() {
		return s.store.PublicURL(path), nil, nil
	}
	url, expiresAt, err := s.store.SignedURL(ctx, path, s.cfg.SignedURLTTL)
	if err != nil {
		return "", nil, err
	}
	return url, &expiresAt, nil
}

// refreshLink replaces a stale signed URL with a fresh one. The row is not updated.
func (s *ReportCardService) refreshLink(ctx context.Context, card *models.ReportCard) {
	if !card.HasPDF() || s.store == nil || s.store.Public() {
		return
	}
	url, _, err := s.store.SignedURL(ctx, *card.PDFPath, s.cfg.SignedURLTTL)
	if err != nil {
		s.logger.Warn("failed to refresh report card url", zap.String("report_card_id", card.ID), zap.Error(err))
		return
	}
	card.PDFURL = &url
}

// clearRemovedPDF resets a card to draft once its PDF is gone from storage.
func (s *ReportCardService) clearRemovedPDF(ctx context.Context, id string) {
	if err := s.cards.ClearPDF(ctx, id); err != nil {
		s.logger.Error("failed to reset report card after pdf removal", zap.String("report_card_id", id), zap.Error(err))
	}
}

func (s *ReportCardService) discard(ctx context.Context, path string) {
	if err := s.store.Remove(ctx, []string{path}); err != nil {
		s.logger.Warn("failed to remove report card pdf", zap.String("path", path), zap.Error(err))
	}
}

func (s *ReportCardService) load(ctx context.Context, id string) (*models.ReportCard, error) {
	card, err := s.cards.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}
	return card, nil
}

func requireReportCardManager(actor models.ActorContext) error {
	if actor.IsAdmin() || actor.HasRole(models.RoleSecretary) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient role to manage report cards")
}
