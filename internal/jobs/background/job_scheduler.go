package background

import (
	"context"
	"time"

	"talentflow/internal/repositories"
	"talentflow/internal/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// JobScheduler runs the periodic maintenance work: the usage snapshot
// refresh that keeps quota dashboards warm without hitting live counts.
type JobScheduler struct {
	scheduler  gocron.Scheduler
	settings   services.SettingsService
	tenantRepo repositories.TenantRepository
	log        *zap.Logger
}

func NewJobScheduler(settings services.SettingsService, tenantRepo repositories.TenantRepository, log *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:  scheduler,
		settings:   settings,
		tenantRepo: tenantRepo,
		log:        log,
	}
	if err := js.registerJobs(); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	_, err := js.scheduler.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(js.refreshTenantUsage),
		gocron.WithName("tenant-usage-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (js *JobScheduler) refreshTenantUsage() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tenantIDs, err := js.tenantRepo.ListIDs(ctx)
	if err != nil {
		js.log.Error("usage refresh: could not list tenants", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		if _, err := js.settings.RefreshUsage(ctx, tenantID); err != nil {
			js.log.Warn("usage refresh failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
	js.log.Debug("usage refresh complete", zap.Int("tenants", len(tenantIDs)))
}
