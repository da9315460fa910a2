package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
)

type auditRepoStub struct {
	mu        sync.Mutex
	entries   []models.AuditLog
	createErr error
	filter    models.AuditLogFilter
	total     int
}

func (s *auditRepoStub) Create(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.entries = append(s.entries, *log)
	return nil
}

func (s *auditRepoStub) List(_ context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	s.filter = filter
	return s.entries, s.total, nil
}

func (s *auditRepoStub) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

func TestAuditServiceRecordCarriesRequestMeta(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)
	ctx := WithRequestMeta(context.Background(), RequestMeta{IPAddress: "10.0.0.1", UserAgent: "curl"})

	svc.Record(ctx, models.NewActor("u-1", models.RoleAdmin), models.AuditActionReportCardGenerate, "report_card", "rc-1", map[string]string{"status": "draft"})

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, "u-1", *entry.UserID)
	assert.Equal(t, "rc-1", *entry.ResourceID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Equal(t, "curl", entry.UserAgent)
	assert.JSONEq(t, `{"status":"draft"}`, string(entry.NewValues))
}

func TestAuditServiceRecordSwallowsErrors(t *testing.T) {
	repo := &auditRepoStub{createErr: errors.New("db down")}
	svc := NewAuditService(repo, nil)
	svc.Record(context.Background(), models.ActorContext{}, models.AuditActionGradeCreate, "grade", "", nil)
	assert.Empty(t, repo.entries)

	var nilSvc *AuditService
	nilSvc.Record(context.Background(), models.ActorContext{}, models.AuditActionGradeCreate, "grade", "", nil)
}

func TestAuditServiceListRequiresAdmin(t *testing.T) {
	repo := &auditRepoStub{total: 3}
	svc := NewAuditService(repo, nil)

	_, _, err := svc.List(context.Background(), models.NewActor("t-1", models.RoleTeacher), models.AuditLogFilter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, pagination, err := svc.List(context.Background(), models.NewActor("a-1", models.RoleAdmin), models.AuditLogFilter{Action: "LOGIN"})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, "LOGIN", repo.filter.Action)
}
