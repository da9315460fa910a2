package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeflow-api/internal/dto"
	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
	"github.com/noah-isme/gradeflow-api/pkg/export"
)

// eventLog records collaborator calls across stubs so tests can assert ordering.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type cardStoreStub struct {
	mu        sync.Mutex
	log       *eventLog
	cards     map[string]*models.ReportCard
	upserts   int
	upsertErr error
	pdfErr    error
	findErr   error
	clearErr  error
}

func newCardStoreStub(log *eventLog, cards ...*models.ReportCard) *cardStoreStub {
	s := &cardStoreStub{log: log, cards: map[string]*models.ReportCard{}}
	for _, c := range cards {
		s.cards[c.ID] = c
	}
	return s
}

func (s *cardStoreStub) FindByID(_ context.Context, id string) (*models.ReportCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	card, ok := s.cards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *card
	return &clone, nil
}

func (s *cardStoreStub) FindByKey(_ context.Context, studentID, schoolYear, semester string) (*models.ReportCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, card := range s.cards {
		if card.StudentID == studentID && card.SchoolYear == schoolYear && card.Semester == semester {
			clone := *card
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *cardStoreStub) Upsert(_ context.Context, card *models.ReportCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("upsert")
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	if card.ID == "" {
		card.ID = fmt.Sprintf("rc-%d", len(s.cards)+1)
	}
	card.Status = models.ReportCardDraft
	card.EditedData = nil
	card.PDFURL = nil
	card.PDFPath = nil
	stored := *card
	s.cards[card.ID] = &stored
	return nil
}

func (s *cardStoreStub) List(_ context.Context, _ models.ReportCardFilter) ([]models.ReportCard, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReportCard, 0, len(s.cards))
	for _, card := range s.cards {
		out = append(out, *card)
	}
	return out, len(out), nil
}

func (s *cardStoreStub) UpdateEdits(_ context.Context, id string, edited models.ReportCardData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[id]
	if !ok || card.Status == models.ReportCardFinalized {
		return sql.ErrNoRows
	}
	card.EditedData = &edited
	card.Status = models.ReportCardDraft
	return nil
}

func (s *cardStoreStub) UpdatePDF(_ context.Context, id, url, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("update_pdf:" + id)
	if s.pdfErr != nil {
		return s.pdfErr
	}
	card, ok := s.cards[id]
	if !ok || card.Status == models.ReportCardFinalized {
		return sql.ErrNoRows
	}
	card.Status = models.ReportCardGenerated
	card.PDFURL = &url
	card.PDFPath = &path
	return nil
}

func (s *cardStoreStub) ClearPDF(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("clear_pdf:" + id)
	if s.clearErr != nil {
		return s.clearErr
	}
	card, ok := s.cards[id]
	if !ok || card.Status == models.ReportCardFinalized {
		return sql.ErrNoRows
	}
	card.Status = models.ReportCardDraft
	card.PDFURL = nil
	card.PDFPath = nil
	return nil
}

func (s *cardStoreStub) TransitionStatus(_ context.Context, id string, from, to models.ReportCardStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[id]
	if !ok || card.Status != from {
		return sql.ErrNoRows
	}
	card.Status = to
	return nil
}

func (s *cardStoreStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("delete:" + id)
	if _, ok := s.cards[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.cards, id)
	return nil
}

type objectStoreStub struct {
	mu        sync.Mutex
	log       *eventLog
	public    bool
	objects   map[string][]byte
	uploadErr error
	removeErr error
	calls     int
}

func newObjectStoreStub(log *eventLog) *objectStoreStub {
	return &objectStoreStub{log: log, objects: map[string][]byte{}}
}

func (s *objectStoreStub) Upload(_ context.Context, path string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.log.add("upload:" + path)
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[path] = data
	return nil
}

func (s *objectStoreStub) Remove(_ context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for _, p := range paths {
		s.log.add("remove:" + p)
	}
	if s.removeErr != nil {
		return s.removeErr
	}
	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

func (s *objectStoreStub) PublicURL(path string) string {
	return "https://cdn.example.test/" + path
}

func (s *objectStoreStub) SignedURL(_ context.Context, path string, ttl time.Duration) (string, time.Time, error) {
	return "https://files.example.test/signed/" + path, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(ttl), nil
}

func (s *objectStoreStub) Public() bool { return s.public }

func (s *objectStoreStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type studentReaderStub struct {
	students map[string]*models.Student
}

func (s *studentReaderStub) FindByID(_ context.Context, id string) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

type programStub struct {
	byClassID   map[string]string
	byClassName map[string]string
}

func (s *programStub) ProgramNameByClassID(_ context.Context, classID string) (string, error) {
	if name, ok := s.byClassID[classID]; ok {
		return name, nil
	}
	return "", sql.ErrNoRows
}

func (s *programStub) ProgramNameByClassName(_ context.Context, className string) (string, error) {
	if name, ok := s.byClassName[className]; ok {
		return name, nil
	}
	return "", sql.ErrNoRows
}

type gradeReaderStub struct {
	grades []models.Grade
}

func (s *gradeReaderStub) ListForStudentPeriod(_ context.Context, studentID, _, _ string) ([]models.Grade, error) {
	out := make([]models.Grade, 0)
	for _, g := range s.grades {
		if g.StudentID == studentID {
			out = append(out, g)
		}
	}
	return out, nil
}

type statsReaderStub struct {
	weights     []models.SubjectWeight
	stats       []models.ClassSubjectStats
	weightCalls int
	statsCalls  int
}

func (s *statsReaderStub) SubjectWeights(context.Context, string, string, string) ([]models.SubjectWeight, error) {
	s.weightCalls++
	return s.weights, nil
}

func (s *statsReaderStub) ClassSubjectStats(context.Context, string, string, string) ([]models.ClassSubjectStats, error) {
	s.statsCalls++
	return s.stats, nil
}

type templateReaderStub struct {
	tpl *models.ReportCardTemplate
	err error
}

func (s *templateReaderStub) FindActive(context.Context) (*models.ReportCardTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.tpl == nil {
		return nil, sql.ErrNoRows
	}
	return s.tpl, nil
}

type photoReaderStub struct {
	data []byte
	err  error
}

func (s *photoReaderStub) Read(context.Context, string) ([]byte, error) {
	return s.data, s.err
}

type rendererStub struct {
	mu     sync.Mutex
	err    error
	docs   []models.ReportCardData
	photos []*export.Photo
}

func (r *rendererStub) Render(doc models.ReportCardData, _ models.ReportCardTemplate, pic *export.Photo) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	r.photos = append(r.photos, pic)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 stub"), nil
}

type reportCardFixture struct {
	svc       *ReportCardService
	log       *eventLog
	cards     *cardStoreStub
	store     *objectStoreStub
	stats     *statsReaderStub
	templates *templateReaderStub
	photos    *photoReaderStub
	renderer  *rendererStub
	audit     *auditRepoStub
}

var (
	adminActor     = models.NewActor("admin-1", models.RoleAdmin)
	secretaryActor = models.NewActor("sec-1", models.RoleSecretary)
	teacherActor   = models.NewActor("teacher-1", models.RoleTeacher)
)

func newReportCardFixture(t *testing.T, cards ...*models.ReportCard) *reportCardFixture {
	t.Helper()
	log := &eventLog{}
	classID := "class-6a"
	className := "6A"
	photoPath := "photos/st-1.png"
	f := &reportCardFixture{
		log:       log,
		cards:     newCardStoreStub(log, cards...),
		store:     newObjectStoreStub(log),
		stats:     &statsReaderStub{},
		templates: &templateReaderStub{},
		photos:    &photoReaderStub{err: errors.New("no photo")},
		renderer:  &rendererStub{},
		audit:     &auditRepoStub{},
	}
	students := &studentReaderStub{students: map[string]*models.Student{
		"st-1": {ID: "st-1", FirstName: "Awa", LastName: "Diallo", ClassID: &classID, ClassName: &className, PhotoPath: &photoPath},
		"st-2": {ID: "st-2", FirstName: "Moussa", LastName: "Traoré"},
	}}
	programs := &programStub{byClassName: map[string]string{"6A": "Collège"}}
	grades := &gradeReaderStub{grades: []models.Grade{
		{StudentID: "st-1", Subject: "Maths", AssessmentType: models.AssessmentTest, Grade: 15, MaxGrade: 20, Weighting: 2},
		{StudentID: "st-1", Subject: "Maths", AssessmentType: models.AssessmentExam, Grade: 17, MaxGrade: 20, Weighting: 3},
		{StudentID: "st-1", Subject: "Histoire", AssessmentType: models.AssessmentOral, Grade: 10, MaxGrade: 20, Weighting: 1},
	}}
	f.stats.weights = []models.SubjectWeight{{SubjectName: "Maths", Weighting: 2}}
	f.stats.stats = []models.ClassSubjectStats{{SubjectName: "Maths", ClassAvg: 12, MinAvg: 5, MaxAvg: 18}}

	f.svc = NewReportCardService(ReportCardDeps{
		Cards:     f.cards,
		Students:  students,
		Programs:  programs,
		Grades:    grades,
		Stats:     f.stats,
		Templates: f.templates,
		Store:     f.store,
		Photos:    f.photos,
		Audit:     NewAuditService(f.audit, nil),
		Metrics:   NewMetricsService(),
	}, nil, nil, ReportCardServiceConfig{})
	f.svc.now = func() time.Time { return time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC) }
	f.svc.rendererFor = func(models.ReportCardTemplate) export.Renderer { return f.renderer }
	return f
}

func generateReq(studentID string) dto.GenerateReportCardRequest {
	return dto.GenerateReportCardRequest{StudentID: studentID, SchoolYear: "2024-2025", Semester: "S1"}
}

func storedCard(id, studentID string, status models.ReportCardStatus, pdfPath *string) *models.ReportCard {
	return &models.ReportCard{
		ID:         id,
		StudentID:  studentID,
		SchoolYear: "2024-2025",
		Semester:   "S1",
		ClassName:  "6A",
		Status:     status,
		PDFPath:    pdfPath,
		GeneratedData: models.ReportCardData{
			Student:         models.ReportCardStudent{ID: studentID, FirstName: "Awa", LastName: "Diallo"},
			SchoolYear:      "2024-2025",
			Semester:        "S1",
			ClassName:       "6A",
			SubjectAverages: []models.SubjectAverage{{Subject: "Maths", Average: 16.2, MaxGrade: 20, Weighting: 2}},
			StudentAverage:  16.2,
			Template:        models.DefaultReportCardTemplate(),
		},
	}
}

func TestReportCardGenerateAssemblesDocument(t *testing.T) {
	f := newReportCardFixture(t)

	card, err := f.svc.Generate(context.Background(), secretaryActor, generateReq("st-1"))
	require.NoError(t, err)

	assert.NotEmpty(t, card.ID)
	assert.Equal(t, models.ReportCardDraft, card.Status)
	assert.Nil(t, card.TemplateID)

	doc := card.GeneratedData
	assert.Equal(t, "6A", doc.ClassName)
	require.NotNil(t, doc.ProgramName)
	assert.Equal(t, "Collège", *doc.ProgramName)
	require.Len(t, doc.SubjectAverages, 2)

	maths := doc.SubjectAverages[0]
	assert.Equal(t, "Maths", maths.Subject)
	assert.Equal(t, 16.2, maths.Average)
	assert.Equal(t, 2.0, maths.Weighting)
	require.NotNil(t, maths.ClassAverage)
	assert.Equal(t, 12.0, *maths.ClassAverage)

	histoire := doc.SubjectAverages[1]
	assert.Equal(t, 1.0, histoire.Weighting)
	assert.Nil(t, histoire.ClassAverage)

	assert.Equal(t, 14.13, doc.StudentAverage)
	require.NotNil(t, doc.ClassAverage)
	assert.Equal(t, 12.0, *doc.ClassAverage)
	assert.Equal(t, "Bulletin de notes", doc.Template.HeaderText)
	assert.Equal(t, time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC), doc.GeneratedAt)

	assert.Zero(t, f.store.callCount())
	assert.Equal(t, []string{models.AuditActionReportCardGenerate}, f.audit.actions())
}

func TestReportCardGenerateUsesActiveTemplate(t *testing.T) {
	f := newReportCardFixture(t)
	f.templates.tpl = &models.ReportCardTemplate{ID: "tpl-1", Name: "Lycée", IsActive: true, SchoolName: "Lycée Blaise Diagne"}

	card, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.NoError(t, err)
	require.NotNil(t, card.TemplateID)
	assert.Equal(t, "tpl-1", *card.TemplateID)
	assert.Equal(t, "Lycée Blaise Diagne", card.GeneratedData.Template.SchoolName)
}

func TestReportCardGenerateEmptyGrades(t *testing.T) {
	f := newReportCardFixture(t)

	req := generateReq("st-2")
	req.ClassName = "6B"
	card, err := f.svc.Generate(context.Background(), adminActor, req)
	require.NoError(t, err)

	assert.NotNil(t, card.GeneratedData.SubjectAverages)
	assert.Empty(t, card.GeneratedData.SubjectAverages)
	assert.Equal(t, 0.0, card.GeneratedData.StudentAverage)
	assert.Nil(t, card.GeneratedData.ClassAverage)
	assert.Nil(t, card.GeneratedData.ProgramName)
}

func TestReportCardGenerateRequiresClass(t *testing.T) {
	f := newReportCardFixture(t)
	_, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestReportCardRegenerationUpsertsAndRemovesPriorPDF(t *testing.T) {
	pdfPath := "report-cards/2024-2025/S1/rc-existing.pdf"
	f := newReportCardFixture(t, storedCard("rc-existing", "st-1", models.ReportCardGenerated, &pdfPath))

	card, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.NoError(t, err)

	assert.Equal(t, "rc-existing", card.ID)
	assert.Len(t, f.cards.cards, 1)
	assert.Equal(t, models.ReportCardDraft, f.cards.cards["rc-existing"].Status)
	assert.Nil(t, f.cards.cards["rc-existing"].PDFPath)
	assert.Equal(t, []string{"remove:" + pdfPath, "upsert"}, f.log.list())
}

func TestReportCardRegenerationWithoutPDFSkipsStorage(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-existing", "st-1", models.ReportCardDraft, nil))

	_, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.NoError(t, err)
	_, err = f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.NoError(t, err)

	assert.Zero(t, f.store.callCount())
	assert.Len(t, f.cards.cards, 1)
	assert.Equal(t, 2, f.cards.upserts)
}

func TestReportCardRegenerationAbortsWhenRemoveFails(t *testing.T) {
	pdfPath := "report-cards/2024-2025/S1/rc-existing.pdf"
	f := newReportCardFixture(t, storedCard("rc-existing", "st-1", models.ReportCardGenerated, &pdfPath))
	f.store.removeErr = errors.New("bucket unavailable")

	_, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStorage))
	assert.Zero(t, f.cards.upserts)
}

func TestReportCardRegenerationResetsCardWhenSaveFails(t *testing.T) {
	pdfPath := "report-cards/2024-2025/S1/rc-existing.pdf"
	f := newReportCardFixture(t, storedCard("rc-existing", "st-1", models.ReportCardGenerated, &pdfPath))
	f.cards.upsertErr = errors.New("db down")

	_, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Equal(t, []string{"remove:" + pdfPath, "upsert", "clear_pdf:rc-existing"}, f.log.list())

	card := f.cards.cards["rc-existing"]
	assert.Equal(t, models.ReportCardDraft, card.Status)
	assert.Nil(t, card.PDFPath)
	assert.Nil(t, card.PDFURL)
}

func TestReportCardRegenerationSaveFailureWithoutPDFKeepsCard(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-existing", "st-1", models.ReportCardDraft, nil))
	f.cards.upsertErr = errors.New("db down")
	f.cards.clearErr = errors.New("must not be called")

	_, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.Error(t, err)
	assert.Equal(t, []string{"upsert"}, f.log.list())
}

func TestReportCardGenerateRejectsFinalized(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-final", "st-1", models.ReportCardFinalized, nil))

	_, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrFinalized))
	assert.Zero(t, f.cards.upserts)
}

func TestReportCardGenerateGuards(t *testing.T) {
	f := newReportCardFixture(t)

	_, err := f.svc.Generate(context.Background(), teacherActor, generateReq("st-1"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Generate(context.Background(), adminActor, dto.GenerateReportCardRequest{StudentID: "st-1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Generate(context.Background(), adminActor, generateReq("missing"))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportCardGenerateCachesClassStatistics(t *testing.T) {
	f := newReportCardFixture(t)
	f.svc.cache = NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)

	_, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.NoError(t, err)
	card, err := f.svc.Generate(context.Background(), adminActor, generateReq("st-1"))
	require.NoError(t, err)

	assert.Equal(t, 1, f.stats.weightCalls)
	assert.Equal(t, 1, f.stats.statsCalls)
	assert.Equal(t, 16.2, card.GeneratedData.SubjectAverages[0].Average)
	require.NotNil(t, card.GeneratedData.SubjectAverages[0].MaxAverage)
	assert.Equal(t, 18.0, *card.GeneratedData.SubjectAverages[0].MaxAverage)
}

func TestReportCardGeneratePDFPrivateStore(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))

	resp, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.NoError(t, err)

	path := "report-cards/2024-2025/S1/rc-1.pdf"
	assert.Equal(t, "https://files.example.test/signed/"+path, resp.PDFURL)
	require.NotNil(t, resp.ExpiresAt)
	assert.Equal(t, models.ReportCardGenerated, resp.Status)

	stored := f.cards.cards["rc-1"]
	assert.Equal(t, models.ReportCardGenerated, stored.Status)
	require.NotNil(t, stored.PDFPath)
	assert.Equal(t, path, *stored.PDFPath)
	assert.Contains(t, f.store.objects, path)
	assert.Equal(t, []string{"upload:" + path, "update_pdf:rc-1"}, f.log.list())
	assert.Equal(t, []string{models.AuditActionReportCardPDF}, f.audit.actions())
}

func TestReportCardGeneratePDFPublicStore(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))
	f.store.public = true

	resp, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.test/report-cards/2024-2025/S1/rc-1.pdf", resp.PDFURL)
	assert.Nil(t, resp.ExpiresAt)
}

func TestReportCardGeneratePDFRendersEditedData(t *testing.T) {
	card := storedCard("rc-1", "st-1", models.ReportCardDraft, nil)
	edited := card.GeneratedData
	edited.StudentAverage = 17.5
	edited.Template = models.ReportCardTemplate{}
	card.EditedData = &edited
	f := newReportCardFixture(t, card)

	_, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.NoError(t, err)
	require.Len(t, f.renderer.docs, 1)
	assert.Equal(t, 17.5, f.renderer.docs[0].StudentAverage)
}

func TestReportCardGeneratePDFRenderFailureLeavesDraft(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))
	f.renderer.err = errors.New("bad layout")

	_, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRenderFailed))
	assert.Zero(t, f.store.callCount())
	assert.Equal(t, models.ReportCardDraft, f.cards.cards["rc-1"].Status)
}

func TestReportCardGeneratePDFUploadFailureLeavesDraft(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))
	f.store.uploadErr = errors.New("quota exceeded")

	_, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStorage))
	assert.Equal(t, models.ReportCardDraft, f.cards.cards["rc-1"].Status)
	assert.NotContains(t, f.log.list(), "update_pdf:rc-1")
}

func TestReportCardGeneratePDFRemovesUploadWhenUpdateFails(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))
	f.cards.pdfErr = errors.New("connection reset")

	_, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	path := "report-cards/2024-2025/S1/rc-1.pdf"
	assert.Equal(t, []string{"upload:" + path, "update_pdf:rc-1", "remove:" + path}, f.log.list())
	assert.NotContains(t, f.store.objects, path)
}

func TestReportCardGeneratePDFRejectsFinalized(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardFinalized, nil))

	_, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrFinalized))
	assert.Empty(t, f.renderer.docs)
}

func TestReportCardGeneratePDFEmbedsPhoto(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))
	photoPath := "photos/st-1.png"
	f.cards.cards["rc-1"].GeneratedData.Student.PhotoPath = &photoPath

	img := image.NewRGBA(image.Rect(0, 0, 400, 500))
	for x := 0; x < 400; x++ {
		img.Set(x, x%500, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	f.photos.data = buf.Bytes()
	f.photos.err = nil

	_, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.NoError(t, err)
	require.Len(t, f.renderer.photos, 1)
	require.NotNil(t, f.renderer.photos[0])
	assert.Equal(t, "JPG", f.renderer.photos[0].ImageType)
}

func TestReportCardGeneratePDFSkipsUnreadablePhoto(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))
	photoPath := "photos/st-1.png"
	f.cards.cards["rc-1"].GeneratedData.Student.PhotoPath = &photoPath
	f.photos.data = []byte("not an image")
	f.photos.err = nil

	_, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.NoError(t, err)
	require.Len(t, f.renderer.photos, 1)
	assert.Nil(t, f.renderer.photos[0])
}

func TestReportCardGeneratePDFWithNativeRenderer(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))
	f.svc.rendererFor = export.SelectRenderer

	_, err := f.svc.GeneratePDF(context.Background(), adminActor, "rc-1")
	require.NoError(t, err)
	data := f.store.objects["report-cards/2024-2025/S1/rc-1.pdf"]
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestReportCardBulkGeneratePDFIsolatesFailures(t *testing.T) {
	var cards []*models.ReportCard
	ids := make([]string, 0, 7)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("rc-%d", i)
		cards = append(cards, storedCard(id, fmt.Sprintf("st-%d", i), models.ReportCardDraft, nil))
		ids = append(ids, id)
	}
	cards = append(cards, storedCard("rc-final", "st-9", models.ReportCardFinalized, nil))
	ids = append(ids, "rc-missing", "rc-final")
	f := newReportCardFixture(t, cards...)

	resp, err := f.svc.BulkGeneratePDF(context.Background(), adminActor, dto.BulkReportCardPDFRequest{IDs: ids})
	require.NoError(t, err)

	assert.Equal(t, 7, resp.Total)
	assert.Equal(t, 5, resp.Succeeded)
	assert.Equal(t, 2, resp.Failed)
	require.Len(t, resp.Results, 7)
	for i, result := range resp.Results {
		assert.Equal(t, ids[i], result.ID)
	}
	assert.True(t, resp.Results[0].Success)
	require.NotNil(t, resp.Results[0].PDFURL)
	assert.False(t, resp.Results[5].Success)
	require.NotNil(t, resp.Results[5].Error)
	assert.Contains(t, *resp.Results[5].Error, "not found")
	assert.False(t, resp.Results[6].Success)
	for i := 1; i <= 5; i++ {
		assert.Equal(t, models.ReportCardGenerated, f.cards.cards[fmt.Sprintf("rc-%d", i)].Status)
	}
}

func TestReportCardBulkGeneratePDFValidates(t *testing.T) {
	f := newReportCardFixture(t)
	_, err := f.svc.BulkGeneratePDF(context.Background(), adminActor, dto.BulkReportCardPDFRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestReportCardUpdateEdits(t *testing.T) {
	pdfPath := "report-cards/2024-2025/S1/rc-1.pdf"
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardGenerated, &pdfPath))

	edited := f.cards.cards["rc-1"].GeneratedData
	edited.GeneralAppreciation = strPtr("Très bon semestre")
	edited.Template = models.ReportCardTemplate{}

	card, err := f.svc.UpdateEdits(context.Background(), secretaryActor, "rc-1", dto.UpdateReportCardEditsRequest{EditedData: &edited})
	require.NoError(t, err)
	assert.Equal(t, models.ReportCardDraft, card.Status)
	require.NotNil(t, card.EditedData)
	assert.Equal(t, "Très bon semestre", *card.EffectiveData().GeneralAppreciation)
	assert.Equal(t, "Default", card.EditedData.Template.Name)
	require.NotNil(t, f.cards.cards["rc-1"].PDFPath)
	assert.Equal(t, []string{models.AuditActionReportCardEdit}, f.audit.actions())
}

func TestReportCardUpdateEditsRejectsFinalized(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardFinalized, nil))
	edited := f.cards.cards["rc-1"].GeneratedData

	_, err := f.svc.UpdateEdits(context.Background(), adminActor, "rc-1", dto.UpdateReportCardEditsRequest{EditedData: &edited})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrFinalized))

	_, err = f.svc.UpdateEdits(context.Background(), adminActor, "rc-1", dto.UpdateReportCardEditsRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestReportCardFinalize(t *testing.T) {
	f := newReportCardFixture(t,
		storedCard("rc-draft", "st-1", models.ReportCardDraft, nil),
		storedCard("rc-gen", "st-2", models.ReportCardGenerated, nil),
	)

	_, err := f.svc.Finalize(context.Background(), adminActor, "rc-draft")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	card, err := f.svc.Finalize(context.Background(), adminActor, "rc-gen")
	require.NoError(t, err)
	assert.Equal(t, models.ReportCardFinalized, card.Status)

	_, err = f.svc.Finalize(context.Background(), adminActor, "rc-gen")
	assert.True(t, errors.Is(err, appErrors.ErrFinalized))

	_, err = f.svc.Finalize(context.Background(), adminActor, "rc-missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportCardDeleteRemovesPDFFirst(t *testing.T) {
	pdfPath := "report-cards/2024-2025/S1/rc-1.pdf"
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardGenerated, &pdfPath))

	require.NoError(t, f.svc.Delete(context.Background(), secretaryActor, "rc-1"))
	assert.Equal(t, []string{"remove:" + pdfPath, "delete:rc-1"}, f.log.list())
	assert.Empty(t, f.cards.cards)
}

func TestReportCardDeleteWithoutPDFSkipsStorage(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardDraft, nil))

	require.NoError(t, f.svc.Delete(context.Background(), adminActor, "rc-1"))
	assert.Zero(t, f.store.callCount())
}

func TestReportCardDeleteFinalizedRequiresAdmin(t *testing.T) {
	f := newReportCardFixture(t, storedCard("rc-1", "st-1", models.ReportCardFinalized, nil))

	err := f.svc.Delete(context.Background(), secretaryActor, "rc-1")
	assert.True(t, errors.Is(err, appErrors.ErrFinalized))
	require.NoError(t, f.svc.Delete(context.Background(), adminActor, "rc-1"))
}

func TestReportCardGetRefreshesSignedLink(t *testing.T) {
	pdfPath := "report-cards/2024-2025/S1/rc-1.pdf"
	card := storedCard("rc-1", "st-1", models.ReportCardGenerated, &pdfPath)
	stale := "https://files.example.test/stale"
	card.PDFURL = &stale
	f := newReportCardFixture(t, card)

	got, err := f.svc.Get(context.Background(), "rc-1")
	require.NoError(t, err)
	require.NotNil(t, got.PDFURL)
	assert.Equal(t, "https://files.example.test/signed/"+pdfPath, *got.PDFURL)
	assert.Equal(t, stale, *f.cards.cards["rc-1"].PDFURL)

	cards, pagination, err := f.svc.List(context.Background(), models.ReportCardFilter{})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestReportCardPDFPathSanitisesSegments(t *testing.T) {
	card := &models.ReportCard{ID: "rc-1", SchoolYear: "2024/2025", Semester: "Semestre 1"}
	assert.Equal(t, "report-cards/2024-2025/Semestre_1/rc-1.pdf", ReportCardPDFPath(card))
}
