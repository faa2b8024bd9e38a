package persistence

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

type branchRepository struct {
	DB config.PgxIface
}

func NewBranchRepository(db config.PgxIface) repository.BranchRepository {
	return branchRepository{db}
}

func (self branchRepository) WithQuerier(querier config.PgxIface) repository.BranchRepository {
	return branchRepository{querier}
}

func (self branchRepository) GetById(id int64) (*domain.Branch, error) {
	branch := domain.Branch{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &branch,
		`SELECT * FROM branch WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &branch, nil
}

func (self branchRepository) GetByInforequestId(inforequestId int64) (branches []domain.Branch, err error) {
	return branches, pgxscan.Select(
		context.Background(), self.DB, &branches,
		`SELECT * FROM branch WHERE inforequest_id = $1 ORDER BY id`,
		inforequestId,
	)
}

func (self branchRepository) Save(branch *domain.Branch) error {
	return self.DB.QueryRow(
		context.Background(),
		`INSERT INTO branch (inforequest_id, obligee_id, obligee_snapshot_id, advanced_by_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		branch.InforequestID, branch.ObligeeID, branch.ObligeeSnapshotID, branch.AdvancedByID,
	).Scan(&branch.ID)
}
