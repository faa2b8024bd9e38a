package repository

import (
	"time"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

type ObligeeRepository interface {
	WithQuerier(config.PgxIface) ObligeeRepository

	GetById(int64) (*domain.Obligee, error)
	GetBySlug(string) (*domain.Obligee, error)
	GetAll(*Page) ([]domain.Obligee, error)
	Save(*domain.Obligee) error
	Update(*domain.Obligee) error

	GetSnapshotById(int64) (*domain.ObligeeSnapshot, error)
	// GetSnapshotAt returns the newest snapshot taken at or before the given
	// time, which is how the obligee looked back then.
	GetSnapshotAt(obligeeId int64, at time.Time) (*domain.ObligeeSnapshot, error)
	SaveSnapshot(*domain.ObligeeSnapshot) error
}
