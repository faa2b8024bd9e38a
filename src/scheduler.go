package portal

import (
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/application/component"
	"github.com/chcemvediet/portal/src/application/service"
	"github.com/chcemvediet/portal/src/config"
)

// RunSchedulerCmd performs a single scheduler pass and exits.
// Meant for cron setups that do not run the scheduler component.
type RunSchedulerCmd struct {
	LogDb bool `arg:"--log-db"`
}

func (cmd *RunSchedulerCmd) Run(logger *zerolog.Logger) error {
	db, err := config.DBConnection(logger, cmd.LogDb)
	if err != nil {
		return err
	}
	defer func() {
		if pool, ok := db.(interface{ Close() }); ok {
			pool.Close()
		}
	}()

	engine, err := config.NewEngine()
	if err != nil {
		return err
	}
	metrics := config.NewMetrics()

	messageService := service.NewMessageService(db, logger)
	notificationService := service.NewNotificationService(db, engine, logger)
	inforequestService := service.NewInforequestService(db, engine, metrics, logger)

	scheduler := component.Scheduler{
		Logger:              logger.With().Str("component", "Scheduler").Logger(),
		Engine:              engine,
		InforequestService:  inforequestService,
		MessageService:      messageService,
		NotificationService: notificationService,
		Metrics:             metrics,
	}
	return scheduler.RunOnce()
}
