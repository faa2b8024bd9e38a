package persistence

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

type obligeeRepository struct {
	DB config.PgxIface
}

func NewObligeeRepository(db config.PgxIface) repository.ObligeeRepository {
	return obligeeRepository{db}
}

func (self obligeeRepository) WithQuerier(querier config.PgxIface) repository.ObligeeRepository {
	return obligeeRepository{querier}
}

func (self obligeeRepository) GetById(id int64) (*domain.Obligee, error) {
	obligee := domain.Obligee{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &obligee,
		`SELECT * FROM obligee WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &obligee, nil
}

func (self obligeeRepository) GetBySlug(slug string) (*domain.Obligee, error) {
	obligee := domain.Obligee{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &obligee,
		`SELECT * FROM obligee WHERE slug = $1`,
		slug,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &obligee, nil
}

func (self obligeeRepository) GetAll(page *repository.Page) ([]domain.Obligee, error) {
	obligees := make([]domain.Obligee, 0, page.Limit)
	return obligees, fetchPage(
		self.DB, page, &obligees,
		`*`, `obligee`, `name, id`,
	)
}

func (self obligeeRepository) Save(obligee *domain.Obligee) error {
	return self.DB.QueryRow(
		context.Background(),
		`INSERT INTO obligee (name, street, city, zip, emails, status, slug)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		obligee.Name, obligee.Street, obligee.City, obligee.Zip,
		obligee.Emails, obligee.Status, obligee.Slug,
	).Scan(&obligee.ID)
}

func (self obligeeRepository) Update(obligee *domain.Obligee) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`UPDATE obligee SET name = $2, street = $3, city = $4, zip = $5, emails = $6, status = $7, slug = $8
		WHERE id = $1`,
		obligee.ID, obligee.Name, obligee.Street, obligee.City, obligee.Zip,
		obligee.Emails, obligee.Status, obligee.Slug,
	)
	return
}

func (self obligeeRepository) GetSnapshotById(id int64) (*domain.ObligeeSnapshot, error) {
	snapshot := domain.ObligeeSnapshot{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &snapshot,
		`SELECT * FROM obligee_snapshot WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &snapshot, nil
}

func (self obligeeRepository) GetSnapshotAt(obligeeId int64, at time.Time) (*domain.ObligeeSnapshot, error) {
	snapshot := domain.ObligeeSnapshot{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &snapshot,
		`SELECT * FROM obligee_snapshot
		WHERE obligee_id = $1 AND snapshot_time <= $2
		ORDER BY snapshot_time DESC, id DESC
		LIMIT 1`,
		obligeeId, at,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &snapshot, nil
}

func (self obligeeRepository) SaveSnapshot(snapshot *domain.ObligeeSnapshot) error {
	return self.DB.QueryRow(
		context.Background(),
		`INSERT INTO obligee_snapshot (obligee_id, name, street, city, zip, emails, status, snapshot_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		snapshot.ObligeeID, snapshot.Name, snapshot.Street, snapshot.City, snapshot.Zip,
		snapshot.Emails, snapshot.Status, snapshot.SnapshotTime,
	).Scan(&snapshot.ID)
}
