package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
	"github.com/chcemvediet/portal/src/infrastructure/persistence"
)

// ObligeeService maintains the obligee register. Every write goes through
// here so that a snapshot is appended first; branches pin snapshots, so
// edits and dissolutions never rewrite what an inforequest was sent to.
type ObligeeService interface {
	WithQuerier(config.PgxIface) ObligeeService

	GetById(int64) (*domain.Obligee, error)
	GetBySlug(string) (*domain.Obligee, error)
	GetAll(*repository.Page) ([]domain.Obligee, error)
	SnapshotAt(obligeeId int64, at time.Time) (*domain.ObligeeSnapshot, error)

	Create(*domain.Obligee) error
	Update(*domain.Obligee) error
	Dissolve(int64) error
}

type obligeeService struct {
	logger            zerolog.Logger
	db                config.PgxIface
	engine            *config.Engine
	obligeeRepository repository.ObligeeRepository
}

func NewObligeeService(db config.PgxIface, engine *config.Engine, logger *zerolog.Logger) ObligeeService {
	return &obligeeService{
		logger:            logger.With().Str("component", "ObligeeService").Logger(),
		db:                db,
		engine:            engine,
		obligeeRepository: persistence.NewObligeeRepository(db),
	}
}

func (self *obligeeService) WithQuerier(querier config.PgxIface) ObligeeService {
	return &obligeeService{
		logger:            self.logger,
		db:                querier,
		engine:            self.engine,
		obligeeRepository: self.obligeeRepository.WithQuerier(querier),
	}
}

func (self *obligeeService) GetById(id int64) (obligee *domain.Obligee, err error) {
	obligee, err = self.obligeeRepository.GetById(id)
	err = errors.WithMessagef(err, "Could not select Obligee %d", id)
	return
}

func (self *obligeeService) GetBySlug(slug string) (obligee *domain.Obligee, err error) {
	obligee, err = self.obligeeRepository.GetBySlug(slug)
	err = errors.WithMessagef(err, "Could not select Obligee %q", slug)
	return
}

func (self *obligeeService) GetAll(page *repository.Page) (obligees []domain.Obligee, err error) {
	obligees, err = self.obligeeRepository.GetAll(page)
	err = errors.WithMessage(err, "Could not select Obligees")
	return
}

func (self *obligeeService) SnapshotAt(obligeeId int64, at time.Time) (snapshot *domain.ObligeeSnapshot, err error) {
	snapshot, err = self.obligeeRepository.GetSnapshotAt(obligeeId, at)
	err = errors.WithMessagef(err, "Could not select snapshot of Obligee %d at %s", obligeeId, at.Format("2006-01-02"))
	return
}

func (self *obligeeService) Create(obligee *domain.Obligee) error {
	return pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped := self.WithQuerier(tx).(*obligeeService)

		if obligee.Status == 0 {
			obligee.Status = domain.ObligeeActive
		}
		if err := scoped.obligeeRepository.Save(obligee); err != nil {
			return errors.WithMessagef(err, "Could not insert Obligee %q", obligee.Name)
		}
		if err := scoped.obligeeRepository.SaveSnapshot(snapshotOf(obligee, scoped.engine.Calendar.Now())); err != nil {
			return errors.WithMessagef(err, "Could not snapshot Obligee %d", obligee.ID)
		}
		scoped.logger.Info().Int64("obligee", obligee.ID).Str("name", obligee.Name).Msg("Created obligee")
		return nil
	})
}

func (self *obligeeService) Update(obligee *domain.Obligee) error {
	return pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped := self.WithQuerier(tx).(*obligeeService)

		if err := scoped.obligeeRepository.Update(obligee); err != nil {
			return errors.WithMessagef(err, "Could not update Obligee %d", obligee.ID)
		}
		if err := scoped.obligeeRepository.SaveSnapshot(snapshotOf(obligee, scoped.engine.Calendar.Now())); err != nil {
			return errors.WithMessagef(err, "Could not snapshot Obligee %d", obligee.ID)
		}
		scoped.logger.Info().Int64("obligee", obligee.ID).Msg("Updated obligee")
		return nil
	})
}

// Dissolve marks the obligee dissolved. Existing branches keep running
// against their pinned snapshots; only new submissions are refused.
func (self *obligeeService) Dissolve(id int64) error {
	obligee, err := self.GetById(id)
	if err != nil {
		return err
	}
	obligee.Status = domain.ObligeeDissolved
	return self.Update(obligee)
}
