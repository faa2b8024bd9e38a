package repository

import (
	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

type BranchRepository interface {
	WithQuerier(config.PgxIface) BranchRepository

	GetById(int64) (*domain.Branch, error)
	// GetByInforequestId returns the branches in creation order, main branch
	// first.
	GetByInforequestId(int64) ([]domain.Branch, error)
	Save(*domain.Branch) error
}
