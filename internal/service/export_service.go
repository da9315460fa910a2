package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/gradeflow-api/internal/dto"
	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
	"github.com/noah-isme/gradeflow-api/pkg/export"
	"github.com/noah-isme/gradeflow-api/pkg/logger"
)

const (
	exportColumnRank    = "Rang"
	exportColumnStudent = "Élève"
	exportColumnAverage = "Moyenne générale"

	exportResource = "class_results_export"
)

type classRosterReader interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

type classGradeReader interface {
	ListForClassPeriod(ctx context.Context, className, schoolYear, semester string) (map[string][]models.Grade, error)
}

type subjectWeightReader interface {
	SubjectWeights(ctx context.Context, className, schoolYear, semester string) ([]models.SubjectWeight, error)
}

type exportStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, time.Time, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	ResultTTL   time.Duration
	CleanupCron string
}

// ExportService renders class result sheets and keeps the export directory tidy.
type ExportService struct {
	students  classRosterReader
	grades    classGradeReader
	weights   subjectWeightReader
	store     exportStore
	audit     *AuditService
	csv       csvRenderer
	xlsx      xlsxRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(students classRosterReader, grades classGradeReader, weights subjectWeightReader, store exportStore, audit *AuditService, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		students:  students,
		grades:    grades,
		weights:   weights,
		store:     store,
		audit:     audit,
		csv:       export.NewCSVExporter(export.WithSemicolon(), export.WithBOM()),
		xlsx:      export.NewXLSXExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ClassResults exports one row per student of a class with the subject
// averages, the overall average and the class rank.
func (s *ExportService) ClassResults(ctx context.Context, actor models.ActorContext, req dto.ClassResultsExportRequest) (*models.ExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	format := models.ExportFormat(strings.ToLower(req.Format))

	dataset, err := s.buildClassDataset(ctx, req)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Résultats %s %s %s", req.ClassName, req.Semester, req.SchoolYear)
	var payload []byte
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, req.ClassName)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, "failed to render export")
	}

	filename := s.buildFilename(req, format)
	if err := s.store.Upload(ctx, filename, payload, format.ContentType()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store export")
	}
	url, expiresAt, err := s.store.SignedURL(ctx, filename, s.cfg.ResultTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to sign export url")
	}

	s.audit.Record(ctx, actor, models.AuditActionExport, exportResource, "", map[string]interface{}{
		"class_name": req.ClassName, "school_year": req.SchoolYear, "semester": req.Semester, "format": format,
	})
	return &models.ExportResult{
		Filename:  filename,
		Format:    format,
		Rows:      len(dataset.Rows),
		URL:       url,
		ExpiresAt: expiresAt,
	}, nil
}

type classResultRow struct {
	name     string
	averages map[string]float64
	overall  float64
	graded   bool
}

func (s *ExportService) buildClassDataset(ctx context.Context, req dto.ClassResultsExportRequest) (export.Dataset, error) {
	students, err := s.students.List(ctx, models.StudentFilter{ClassName: req.ClassName})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	gradesByStudent, err := s.grades.ListForClassPeriod(ctx, req.ClassName, req.SchoolYear, req.Semester)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class grades")
	}
	weightRows, err := s.weights.SubjectWeights(ctx, req.ClassName, req.SchoolYear, req.Semester)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject weights")
	}
	weights := weightMap(weightRows)

	subjectSet := make(map[string]struct{})
	rows := make([]classResultRow, 0, len(students))
	for _, st := range students {
		averages := ComputeSubjectAverages(gradesByStudent[st.ID])
		ApplyWeights(averages, weights)
		row := classResultRow{
			name:     models.ReportCardStudent{FirstName: st.FirstName, LastName: st.LastName}.FullName(),
			averages: make(map[string]float64, len(averages)),
			overall:  OverallAverage(averages),
			graded:   len(averages) > 0,
		}
		for _, avg := range averages {
			row.averages[avg.Subject] = avg.Average
			subjectSet[avg.Subject] = struct{}{}
		}
		rows = append(rows, row)
	}

	subjects := make([]string, 0, len(subjectSet))
	for subject := range subjectSet {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	ranks := rankRows(rows)
	headers := append([]string{exportColumnRank, exportColumnStudent}, subjects...)
	headers = append(headers, exportColumnAverage)

	dataRows := make([]map[string]string, 0, len(rows))
	for i, row := range rows {
		record := map[string]string{
			exportColumnStudent: row.name,
		}
		if row.graded {
			record[exportColumnRank] = strconv.Itoa(ranks[i])
			record[exportColumnAverage] = strconv.FormatFloat(row.overall, 'f', 2, 64)
		}
		for _, subject := range subjects {
			if avg, ok := row.averages[subject]; ok {
				record[subject] = strconv.FormatFloat(avg, 'f', 2, 64)
			}
		}
		dataRows = append(dataRows, record)
	}
	return export.Dataset{Headers: headers, Rows: dataRows}, nil
}

// rankRows ranks graded rows by overall average, ties sharing a rank.
// Ungraded rows get rank 0.
func rankRows(rows []classResultRow) []int {
	order := make([]int, 0, len(rows))
	for i, row := range rows {
		if row.graded {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].overall > rows[order[b]].overall
	})
	ranks := make([]int, len(rows))
	for pos, idx := range order {
		if pos > 0 && rows[order[pos-1]].overall == rows[idx].overall {
			ranks[idx] = ranks[order[pos-1]]
			continue
		}
		ranks[idx] = pos + 1
	}
	return ranks
}

// Cleanup removes exports older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	deleted, err := s.store.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("expired exports removed", "count", len(deleted))
	}
	return deleted, nil
}

// StartCleanup schedules Cleanup on the configured cron spec until ctx is done.
// It returns nil without scheduling when no spec is configured.
func (s *ExportService) StartCleanup(ctx context.Context) (*cron.Cron, error) {
	if strings.TrimSpace(s.cfg.CleanupCron) == "" {
		return nil, nil
	}
	cronLog := logger.Cron(s.logger)
	c := cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog)))
	if _, err := c.AddFunc(s.cfg.CleanupCron, func() {
		if _, err := s.Cleanup(); err != nil {
			s.logger.Warn("export cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule export cleanup: %w", err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	s.logger.Sugar().Infow("export cleanup scheduled", "spec", s.cfg.CleanupCron, "ttl", s.cfg.ResultTTL.String())
	return c, nil
}

func (s *ExportService) buildFilename(req dto.ClassResultsExportRequest, format models.ExportFormat) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("resultats_%s_%s_%s_%s.%s",
		sanitizeFilename(req.ClassName), sanitizeFilename(req.SchoolYear), sanitizeFilename(req.Semester), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
