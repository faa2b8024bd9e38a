package portal

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"cirello.io/oversight"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/application"
	"github.com/chcemvediet/portal/src/application/component"
	"github.com/chcemvediet/portal/src/application/component/web"
	"github.com/chcemvediet/portal/src/application/service"
	"github.com/chcemvediet/portal/src/config"
)

type StartCmd struct {
	Components []string `arg:"positional,env:PORTAL_COMPONENTS" help:"any of: web, mail, scheduler"`

	WebListen         string        `arg:"--web-listen,env:PORTAL_WEB_LISTEN" default:":8080"`
	MailInterval      time.Duration `arg:"--mail-interval,env:PORTAL_MAIL_INTERVAL" default:"30s"`
	MailBatchSize     int           `arg:"--mail-batch-size,env:PORTAL_MAIL_BATCH_SIZE" default:"10"`
	SchedulerInterval time.Duration `arg:"--scheduler-interval,env:PORTAL_SCHEDULER_INTERVAL" default:"1h"`

	LogDb bool `arg:"--log-db"`
}

func (cmd *StartCmd) Run(logger *zerolog.Logger) error {
	instance, err := NewInstance(cmd, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return instance.Run(ctx)
}

type instanceComponents struct {
	Web       bool
	Mail      bool
	Scheduler bool
}

// components returns which components to start. If none are named then
// all of them are.
func (cmd *StartCmd) components() (instanceComponents, error) {
	start := instanceComponents{}
	for _, name := range cmd.Components {
		switch name {
		case "web":
			start.Web = true
		case "mail":
			start.Mail = true
		case "scheduler":
			start.Scheduler = true
		default:
			return start, errors.Errorf("unknown component %q", name)
		}
	}
	if !start.Web && !start.Mail && !start.Scheduler {
		start = instanceComponents{Web: true, Mail: true, Scheduler: true}
	}
	return start, nil
}

type Instance struct {
	Web       *web.Web
	Mail      *component.MailPump
	Scheduler *component.Scheduler

	logger *zerolog.Logger
	db     config.PgxIface
}

func NewInstance(cmd *StartCmd, logger *zerolog.Logger) (Instance, error) {
	instance := Instance{logger: logger}

	start, err := cmd.components()
	if err != nil {
		return instance, err
	}

	if db, err := config.DBConnection(logger, cmd.LogDb); err != nil {
		return instance, err
	} else {
		instance.db = db
	}

	engine, err := config.NewEngine()
	if err != nil {
		return instance, err
	}
	metrics := config.NewMetrics()
	transport := application.NewMailTransport(logger)

	messageService := service.NewMessageService(instance.db, logger)
	obligeeService := service.NewObligeeService(instance.db, engine, logger)
	draftService := service.NewDraftService(instance.db, logger)
	notificationService := service.NewNotificationService(instance.db, engine, logger)
	inforequestService := service.NewInforequestService(instance.db, engine, metrics, logger)
	correlationService := service.NewCorrelationService(instance.db, engine, inforequestService, notificationService, logger)

	if start.Web {
		instance.Web = &web.Web{
			Config:             config.NewWebConfig(cmd.WebListen),
			Logger:             logger.With().Str("component", "Web").Logger(),
			Engine:             engine,
			InforequestService: inforequestService,
			CorrelationService: correlationService,
			ObligeeService:     obligeeService,
			DraftService:       draftService,
			MessageService:     messageService,
			Metrics:            metrics,
			Db:                 instance.db,
		}
	}

	if start.Mail {
		instance.Mail = &component.MailPump{
			Logger:             logger.With().Str("component", "MailPump").Logger(),
			Db:                 instance.db,
			Transport:          transport,
			MessageService:     messageService,
			CorrelationService: correlationService,
			Metrics:            metrics,
			Interval:           cmd.MailInterval,
			BatchSize:          cmd.MailBatchSize,
		}
	}

	if start.Scheduler {
		instance.Scheduler = &component.Scheduler{
			Logger:              logger.With().Str("component", "Scheduler").Logger(),
			Engine:              engine,
			InforequestService:  inforequestService,
			MessageService:      messageService,
			NotificationService: notificationService,
			Metrics:             metrics,
			Interval:            cmd.SchedulerInterval,
		}
	}

	return instance, nil
}

func (self Instance) Close() {
	if pool, ok := self.db.(*pgxpool.Pool); ok {
		pool.Close()
	}
}

func (self Instance) Run(ctx context.Context) error {
	self.logger.Info().Msg("Starting components")

	supervisor := oversight.New(
		oversight.WithLogger(&config.SupervisorLogger{Logger: self.logger}),
		oversight.WithSpecification(
			10,                    // number of restarts
			1*time.Minute,         // within this time period
			oversight.OneForOne(), // restart every task on its own
		),
	)

	if self.Web != nil {
		if err := supervisor.Add(self.Web.Start); err != nil {
			return err
		}
	}
	if self.Mail != nil {
		if err := supervisor.Add(self.Mail.Start); err != nil {
			return err
		}
	}
	if self.Scheduler != nil {
		if err := supervisor.Add(self.Scheduler.Start); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := supervisor.Start(ctx); err != nil {
		return errors.WithMessage(err, "While starting supervisor")
	}

	<-ctx.Done()
	return nil
}
