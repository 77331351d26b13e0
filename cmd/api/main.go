package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/firm-ops/internal/api/http"
	"github.com/spec-kit/firm-ops/internal/api/http/handlers"
	"github.com/spec-kit/firm-ops/internal/auth"
	"github.com/spec-kit/firm-ops/internal/command"
	"github.com/spec-kit/firm-ops/internal/config"
	"github.com/spec-kit/firm-ops/internal/discord"
	"github.com/spec-kit/firm-ops/internal/events"
	"github.com/spec-kit/firm-ops/internal/observability"
	"github.com/spec-kit/firm-ops/internal/persistence"
	"github.com/spec-kit/firm-ops/internal/platform"
	"github.com/spec-kit/firm-ops/internal/repository"
	"github.com/spec-kit/firm-ops/internal/repository/memory"
	"github.com/spec-kit/firm-ops/internal/service"
	"github.com/spec-kit/firm-ops/internal/validation"
	"github.com/spec-kit/firm-ops/internal/worker"
)

type repositories struct {
	staff        repository.StaffRepository
	cases        repository.CaseRepository
	jobs         repository.JobRepository
	applications repository.ApplicationRepository
	audit        repository.AuditLogRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		pg    *persistence.Postgres
		repos repositories
	)
	if cfg.Postgres.DSN != "" {
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		repos = repositories{
			staff:        repository.NewStaffRepository(pool),
			cases:        repository.NewCaseRepository(pool),
			jobs:         repository.NewJobRepository(pool),
			applications: repository.NewApplicationRepository(pool),
			audit:        repository.NewAuditLogRepository(pool),
		}
	} else {
		logger.Warn("POSTGRES_DSN not set; using the in-memory store")
		store := memory.NewStore()
		repos = repositories{
			staff:        store.Staff,
			cases:        store.Cases,
			jobs:         store.Jobs,
			applications: store.Applications,
			audit:        store.Audit,
		}
	}

	var redis *persistence.Redis
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
	}

	var (
		session *discordgo.Session
		client  platform.Client
	)
	if cfg.Discord.BotToken != "" {
		session, err = discord.NewSession(cfg.Discord)
		if err != nil {
			logger.Fatal("failed to create discord session", zap.Error(err))
		}
		client = discord.NewClient(session, logger)
	} else {
		logger.Warn("DISCORD_BOT_TOKEN not set; role sync and notifications are disabled")
	}

	dispatcher := events.NewInMemoryDispatcher(logger)

	commandValidator := validation.NewCommandValidator()
	strategies := []validation.Strategy{
		validation.NewCommandStrategy(commandValidator),
		validation.NewBusinessStrategy(validation.NewBusinessRuleValidator(repos.staff, repos.cases, cfg.Rules, logger)),
		validation.NewCrossEntityStrategy(validation.NewCrossEntityValidator(validation.CrossEntityDependencies{
			StaffRepo:       repos.staff,
			CaseRepo:        repos.cases,
			JobRepo:         repos.jobs,
			ApplicationRepo: repos.applications,
		}, logger)),
	}
	if cfg.UsernameCheck.Enabled {
		usernameCache := persistence.NewCache[validation.UsernameResult](redis, "username", cfg.UsernameCheck.CacheTTL())
		checker := validation.NewHTTPUsernameChecker(cfg.UsernameCheck, usernameCache, logger)
		strategies = append(strategies, validation.NewUsernameStrategy(checker, logger))
	}
	validator := validation.NewService(logger, metrics, strategies...)

	var (
		registry  *service.RoleMapRegistry
		syncer    *service.RoleSyncService
		conflicts *service.RoleConflictService
	)
	if client != nil {
		roleMapCache := persistence.NewCache[service.RoleMapSnapshot](redis, "rolemap", time.Hour)
		registry = service.NewRoleMapRegistry(client, roleMapCache, logger)
		syncer = service.NewRoleSyncService(cfg.Discord, service.RoleSyncDependencies{
			Client:    client,
			StaffRepo: repos.staff,
			AuditRepo: repos.audit,
			Metrics:   metrics,
		}, logger)
		conflicts = service.NewRoleConflictService(service.RoleConflictDependencies{
			Client:     client,
			Registry:   registry,
			StaffRepo:  repos.staff,
			AuditRepo:  repos.audit,
			Dispatcher: dispatcher,
			Metrics:    metrics,
		}, cfg.Rules.ProgressInterval, logger)
	}

	staffService := service.NewStaffService(service.StaffDependencies{
		StaffRepo:  repos.staff,
		AuditRepo:  repos.audit,
		Validator:  validator,
		Registry:   registry,
		Sync:       syncer,
		Dispatcher: dispatcher,
	}, logger)
	caseService := service.NewCaseService(service.CaseDependencies{
		CaseRepo:   repos.cases,
		StaffRepo:  repos.staff,
		AuditRepo:  repos.audit,
		Validator:  validator,
		Dispatcher: dispatcher,
	}, logger)
	jobService := service.NewJobService(service.JobDependencies{
		JobRepo:         repos.jobs,
		ApplicationRepo: repos.applications,
		StaffRepo:       repos.staff,
		AuditRepo:       repos.audit,
		Hiring:          staffService,
		Validator:       validator,
		Dispatcher:      dispatcher,
	}, logger)
	maintenanceService := service.NewMaintenanceService(service.MaintenanceDependencies{
		Validator: validator,
		StaffRepo: repos.staff,
		AuditRepo: repos.audit,
		Registry:  registry,
		Sync:      syncer,
		Conflicts: conflicts,
	}, cfg.Rules.ProgressInterval, logger)
	authService := service.NewAuthService(cfg.Auth, logger)

	notifications := worker.StartNotificationWorker(ctx, dispatcher, service.NewNotificationService(client, logger, cfg.Discord), 2, 128, logger)
	if conflicts != nil {
		worker.StartConflictWorker(ctx, conflicts, cfg.Discord.GuildIDs, cfg.Discord.ConflictScanInterval(), cfg.Discord.AutoResolve, logger)
	}

	commands := command.NewRegistry(
		command.Recover(logger),
		command.Logging(logger, metrics),
		command.Validate(commandValidator),
		command.Audit(repos.audit, logger),
	)
	command.RegisterFirmCommands(commands, command.Services{
		Staff:       staffService,
		Cases:       caseService,
		Jobs:        jobService,
		Maintenance: maintenanceService,
	})

	var gatewayUp func() bool
	if session != nil {
		router := discord.NewInteractionRouter(commands, client, cfg.App.RequestTimeout(), logger)
		session.AddHandler(router.Handle)
		if err := session.Open(); err != nil {
			logger.Fatal("failed to open discord session", zap.Error(err))
		}
		defer session.Close() //nolint:errcheck

		for _, guildID := range cfg.Discord.GuildIDs {
			if err := discord.RegisterCommands(session, guildID); err != nil {
				logger.Error("failed to register slash commands", zap.String("guild_id", guildID), zap.Error(err))
			}
		}
		registry.Warm(ctx, cfg.Discord.GuildIDs)
		gatewayUp = func() bool { return session.DataReady }
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), client, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, gatewayUp),
		Auth:           handlers.NewAuthHandler(authService),
		Commands:       handlers.NewCommandHandler(commands, authMiddleware),
		Maintenance:    handlers.NewMaintenanceHandler(maintenanceService, authMiddleware),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	notifications.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
