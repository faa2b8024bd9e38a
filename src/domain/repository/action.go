package repository

import (
	"time"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

type ActionRepository interface {
	WithQuerier(config.PgxIface) ActionRepository

	GetById(int64) (*domain.Action, error)
	// GetByBranchId returns the branch's actions ordered by effective date,
	// ties broken by id, which is the order the state fold replays them in.
	GetByBranchId(int64) ([]domain.Action, error)
	GetByEmailId(int64) (*domain.Action, error)
	Save(*domain.Action) error
	SetEmailId(actionId, emailId int64) error
	SetLastDeadlineReminder(int64, time.Time) error
}
