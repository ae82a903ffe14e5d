package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meridianotes/chronicle/internal/config"
	"github.com/meridianotes/chronicle/internal/database"
	"github.com/meridianotes/chronicle/internal/logger"
	"github.com/meridianotes/chronicle/internal/repository"
	"github.com/meridianotes/chronicle/internal/service"
	"github.com/stretchr/testify/require"
)

var errStorage = errors.New("storage down")

func testConfig() *config.Config {
	return &config.Config{
		Audit: config.AuditConfig{
			BatchDelay:    0, // write-through unless a test overrides
			RetentionDays: 90,
			PruneInterval: time.Hour,
		},
		Undo:    config.UndoConfig{MaxStackSize: 100},
		Session: config.SessionConfig{MaxAgeHours: 24, SweepInterval: time.Hour},
	}
}

type testEnv struct {
	port       database.Port
	auditRepo  *repository.AuditRepository
	undoRepo   *repository.UndoRepository
	auditSvc   *service.AuditService
	undoSvc    *service.UndoService
	sessionSvc *service.SessionService
	historySvc *service.HistoryService
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	return newTestEnvWithPort(t, cfg, nil)
}

func newTestEnvWithPort(t *testing.T, cfg *config.Config, port database.Port) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	if port == nil {
		mem, err := database.NewMemory()
		require.NoError(t, err)
		t.Cleanup(func() { mem.Close() })
		port = mem
	}

	log := logger.Nop()
	auditRepo := repository.NewAuditRepository(port)
	undoRepo := repository.NewUndoRepository(port)
	auditSvc := service.NewAuditService(auditRepo, cfg, log)
	undoSvc := service.NewUndoService(undoRepo, cfg, log)

	return &testEnv{
		port:       port,
		auditRepo:  auditRepo,
		undoRepo:   undoRepo,
		auditSvc:   auditSvc,
		undoSvc:    undoSvc,
		sessionSvc: service.NewSessionService(auditRepo, undoSvc, log),
		historySvc: service.NewHistoryService(auditSvc, undoSvc, log),
	}
}

// faultPort fails every operation, for exercising the safe-default
// boundary.
type faultPort struct{}

func (faultPort) ExecSchema(context.Context, string) error { return errStorage }
func (faultPort) Write(context.Context, string, ...any) (int64, error) {
	return 0, errStorage
}
func (faultPort) QueryMany(context.Context, string, ...any) ([]database.Row, error) {
	return nil, errStorage
}
func (faultPort) QueryOne(context.Context, string, ...any) (database.Row, error) {
	return nil, errStorage
}

// flakyPort fails the first failures writes, then delegates.
type flakyPort struct {
	database.Port
	failures int
}

func (p *flakyPort) Write(ctx context.Context, stmt string, args ...any) (int64, error) {
	if p.failures > 0 {
		p.failures--
		return 0, errStorage
	}
	return p.Port.Write(ctx, stmt, args...)
}

// recordingPort captures mutating statements in order.
type recordingPort struct {
	database.Port
	writes []string
}

func (p *recordingPort) Write(ctx context.Context, stmt string, args ...any) (int64, error) {
	p.writes = append(p.writes, strings.Join(strings.Fields(stmt), " "))
	return p.Port.Write(ctx, stmt, args...)
}
