package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gradeflow-api/internal/dto"
	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
)

const gradeResource = "grade"

type gradeStore interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	FindWithDeleted(ctx context.Context, id string) (*models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	BulkCreate(ctx context.Context, grades []models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	HardDelete(ctx context.Context, id string) error
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// GradeService manages grade entries. Teachers may only touch the grades they own.
type GradeService struct {
	grades    gradeStore
	classes   classReader
	subjects  subjectReader
	cache     *CacheService
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeStore, classes classReader, subjects subjectReader, cache *CacheService, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:    grades,
		classes:   classes,
		subjects:  subjects,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns active grades. Teachers only see their own entries.
func (s *GradeService) List(ctx context.Context, actor models.ActorContext, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	if isTeacherOnly(actor) {
		filter.TeacherID = actor.UserID
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	grades, total, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Create records a single grade.
func (s *GradeService) Create(ctx context.Context, actor models.ActorContext, req dto.CreateGradeRequest) (*models.Grade, error) {
	if err := requireGradeEditor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	grade, err := gradeFromRequest(actor, req)
	if err != nil {
		return nil, err
	}
	class, err := s.class(ctx, grade.ClassID)
	if err != nil {
		return nil, err
	}
	grade.ClassName = class.Name
	subject, err := s.subject(ctx, grade.SubjectID)
	if err != nil {
		return nil, err
	}
	grade.Subject = subject.Name

	if err := s.grades.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}
	s.invalidate(ctx, class.Name)
	s.audit.Record(ctx, actor, models.AuditActionGradeCreate, gradeResource, grade.ID, grade)
	return grade, nil
}

// BulkCreate records several grades atomically.
func (s *GradeService) BulkCreate(ctx context.Context, actor models.ActorContext, req dto.BulkCreateGradesRequest) ([]models.Grade, error) {
	if err := requireGradeEditor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk grade payload")
	}

	classNames := make(map[string]string)
	subjectNames := make(map[string]string)
	grades := make([]models.Grade, 0, len(req.Grades))
	for _, item := range req.Grades {
		grade, err := gradeFromRequest(actor, item)
		if err != nil {
			return nil, err
		}
		name, ok := classNames[grade.ClassID]
		if !ok {
			class, err := s.class(ctx, grade.ClassID)
			if err != nil {
				return nil, err
			}
			name = class.Name
			classNames[grade.ClassID] = name
		}
		grade.ClassName = name
		subjectName, ok := subjectNames[grade.SubjectID]
		if !ok {
			subject, err := s.subject(ctx, grade.SubjectID)
			if err != nil {
				return nil, err
			}
			subjectName = subject.Name
			subjectNames[grade.SubjectID] = subjectName
		}
		grade.Subject = subjectName
		grades = append(grades, *grade)
	}

	if err := s.grades.BulkCreate(ctx, grades); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grades")
	}
	for _, name := range classNames {
		s.invalidate(ctx, name)
	}
	s.audit.Record(ctx, actor, models.AuditActionGradeCreate, gradeResource, "", map[string]int{"count": len(grades)})
	return grades, nil
}

// Update replaces the mutable fields of a grade.
func (s *GradeService) Update(ctx context.Context, actor models.ActorContext, id string, req dto.UpdateGradeRequest) (*models.Grade, error) {
	if err := requireGradeEditor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	assessmentType, err := models.ParseAssessmentType(req.AssessmentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment type")
	}

	grade, err := s.owned(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	previous := *grade

	grade.AssessmentName = req.AssessmentName
	grade.AssessmentType = assessmentType
	grade.Grade = req.Grade
	grade.MaxGrade = req.MaxGrade
	grade.Weighting = req.Weighting
	grade.Appreciation = req.Appreciation

	if err := s.grades.Update(ctx, grade); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	s.invalidate(ctx, grade.ClassName)
	s.audit.Record(ctx, actor, models.AuditActionGradeUpdate, gradeResource, id, map[string]models.Grade{"old": previous, "new": *grade})
	return grade, nil
}

// Delete removes a grade. Soft deletion keeps the row inactive; hard deletion is reserved to admins.
func (s *GradeService) Delete(ctx context.Context, actor models.ActorContext, id string, hard bool) error {
	if err := requireGradeEditor(actor); err != nil {
		return err
	}
	if hard && !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can permanently delete grades")
	}
	// Hard deletion also purges rows that were soft-deleted earlier.
	grade, err := s.owned(ctx, actor, id, hard)
	if err != nil {
		return err
	}

	if hard {
		err = s.grades.HardDelete(ctx, id)
	} else {
		err = s.grades.SoftDelete(ctx, id, s.now())
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	s.invalidate(ctx, grade.ClassName)
	s.audit.Record(ctx, actor, models.AuditActionGradeDelete, gradeResource, id, map[string]bool{"hard": hard})
	return nil
}

func (s *GradeService) owned(ctx context.Context, actor models.ActorContext, id string, withDeleted bool) (*models.Grade, error) {
	find := s.grades.FindByID
	if withDeleted {
		find = s.grades.FindWithDeleted
	}
	grade, err := find(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	if isTeacherOnly(actor) && (grade.TeacherID == nil || *grade.TeacherID != actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "grade belongs to another teacher")
	}
	return grade, nil
}

func (s *GradeService) class(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *GradeService) subject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

func (s *GradeService) invalidate(ctx context.Context, className string) {
	if className == "" {
		return
	}
	if err := s.cache.InvalidateClassStats(ctx, className); err != nil {
		s.logger.Warn("failed to invalidate class statistics", zap.String("class_name", className), zap.Error(err))
	}
}

func gradeFromRequest(actor models.ActorContext, req dto.CreateGradeRequest) (*models.Grade, error) {
	assessmentType, err := models.ParseAssessmentType(req.AssessmentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment type")
	}
	grade := &models.Grade{
		StudentID:      req.StudentID,
		SubjectID:      req.SubjectID,
		ClassID:        req.ClassID,
		SchoolYear:     req.SchoolYear,
		Semester:       req.Semester,
		AssessmentName: req.AssessmentName,
		AssessmentType: assessmentType,
		Grade:          req.Grade,
		MaxGrade:       req.MaxGrade,
		Weighting:      req.Weighting,
		Appreciation:   req.Appreciation,
	}
	switch {
	case isTeacherOnly(actor):
		owner := actor.UserID
		grade.TeacherID = &owner
	case req.TeacherID != nil && *req.TeacherID != "":
		grade.TeacherID = req.TeacherID
	}
	return grade, nil
}

func requireGradeEditor(actor models.ActorContext) error {
	if actor.IsAdmin() || actor.HasRole(models.RoleTeacher) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient role to edit grades")
}

func isTeacherOnly(actor models.ActorContext) bool {
	return actor.HasRole(models.RoleTeacher) && !actor.IsAdmin()
}
