package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/service"
)

// ConflictScanner is the part of the conflict service the scan loop needs.
type ConflictScanner interface {
	ScanGuild(ctx context.Context, guildID string, progress service.ProgressFunc) (service.ScanReport, error)
	ResolveGuild(ctx context.Context, guildID, actorID string, progress service.ProgressFunc) (service.BulkReport, error)
}

// SystemActorID is recorded as the actor of background repairs.
const SystemActorID = "system"

// StartConflictWorker scans guildIDs every interval until ctx is cancelled. With
// autoResolve set, conflicts found are repaired in the same pass.
func StartConflictWorker(ctx context.Context, scanner ConflictScanner, guildIDs []string, interval time.Duration, autoResolve bool, logger *zap.Logger) {
	if scanner == nil || interval <= 0 || len(guildIDs) == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, guildID := range guildIDs {
					scanGuild(ctx, scanner, guildID, autoResolve, logger)
				}
			}
		}
	}()
}

func scanGuild(ctx context.Context, scanner ConflictScanner, guildID string, autoResolve bool, logger *zap.Logger) {
	if autoResolve {
		report, err := scanner.ResolveGuild(ctx, guildID, SystemActorID, nil)
		if err != nil {
			logger.Warn("background conflict resolution failed", zap.String("guild_id", guildID), zap.Error(err))
			return
		}
		if report.Total > 0 {
			logger.Info("background conflicts resolved",
				zap.String("guild_id", guildID),
				zap.Int("succeeded", report.Succeeded),
				zap.Int("failed", report.Failed))
		}
		return
	}
	report, err := scanner.ScanGuild(ctx, guildID, nil)
	if err != nil {
		logger.Warn("background conflict scan failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	if len(report.Conflicts) > 0 {
		logger.Warn("role conflicts detected",
			zap.String("guild_id", guildID),
			zap.Int("conflicts", len(report.Conflicts)))
	}
}
