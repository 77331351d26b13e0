package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/service"
)

type mockScanner struct {
	mock.Mock
}

func (m *mockScanner) ScanGuild(ctx context.Context, guildID string, progress service.ProgressFunc) (service.ScanReport, error) {
	args := m.Called(ctx, guildID, progress)
	return args.Get(0).(service.ScanReport), args.Error(1)
}

func (m *mockScanner) ResolveGuild(ctx context.Context, guildID, actorID string, progress service.ProgressFunc) (service.BulkReport, error) {
	args := m.Called(ctx, guildID, actorID, progress)
	return args.Get(0).(service.BulkReport), args.Error(1)
}

func TestScanGuildOnlyScansWithoutAutoResolve(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("ScanGuild", mock.Anything, "g1", mock.Anything).
		Return(service.ScanReport{GuildID: "g1", Conflicts: []domain.RoleConflict{{UserID: "u1"}}}, nil).Once()

	scanGuild(context.Background(), scanner, "g1", false, zap.NewNop())

	scanner.AssertExpectations(t)
	scanner.AssertNotCalled(t, "ResolveGuild", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestScanGuildResolvesAsSystemActor(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("ResolveGuild", mock.Anything, "g1", SystemActorID, mock.Anything).
		Return(service.BulkReport{GuildID: "g1", Total: 1, Succeeded: 1}, nil).Once()

	scanGuild(context.Background(), scanner, "g1", true, zap.NewNop())

	scanner.AssertExpectations(t)
	scanner.AssertNotCalled(t, "ScanGuild", mock.Anything, mock.Anything, mock.Anything)
}

func TestScanGuildSurvivesErrors(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("ScanGuild", mock.Anything, "g1", mock.Anything).
		Return(service.ScanReport{}, errors.New("gateway down")).Once()

	assert.NotPanics(t, func() { scanGuild(context.Background(), scanner, "g1", false, zap.NewNop()) })
	scanner.AssertExpectations(t)
}

func TestConflictWorkerScansEveryGuildUntilCancelled(t *testing.T) {
	scanner := &mockScanner{}
	scanned := make(chan string, 8)
	scanner.On("ScanGuild", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			select {
			case scanned <- args.String(1):
			default:
			}
		}).
		Return(service.ScanReport{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartConflictWorker(ctx, scanner, []string{"g1", "g2"}, 10*time.Millisecond, false, zap.NewNop())

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case g := <-scanned:
			seen[g] = true
		case <-deadline:
			t.Fatalf("guilds scanned: %v", seen)
		}
	}
	assert.True(t, seen["g1"])
	assert.True(t, seen["g2"])
}

func TestConflictWorkerDisabled(t *testing.T) {
	scanner := &mockScanner{}
	StartConflictWorker(context.Background(), scanner, nil, time.Millisecond, false, zap.NewNop())
	StartConflictWorker(context.Background(), scanner, []string{"g1"}, 0, false, zap.NewNop())
	time.Sleep(20 * time.Millisecond)
	scanner.AssertNotCalled(t, "ScanGuild", mock.Anything, mock.Anything, mock.Anything)
}
