package persistence

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

type inforequestEmailRepository struct {
	DB config.PgxIface
}

func NewInforequestEmailRepository(db config.PgxIface) repository.InforequestEmailRepository {
	return inforequestEmailRepository{db}
}

func (self inforequestEmailRepository) WithQuerier(querier config.PgxIface) repository.InforequestEmailRepository {
	return inforequestEmailRepository{querier}
}

func (self inforequestEmailRepository) GetById(id int64) (*domain.InforequestEmail, error) {
	link := domain.InforequestEmail{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &link,
		`SELECT * FROM inforequest_email WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &link, nil
}

func (self inforequestEmailRepository) GetByInforequestId(inforequestId int64) (links []domain.InforequestEmail, err error) {
	return links, pgxscan.Select(
		context.Background(), self.DB, &links,
		`SELECT * FROM inforequest_email WHERE inforequest_id = $1 ORDER BY id`,
		inforequestId,
	)
}

func (self inforequestEmailRepository) GetInboundByEmailId(emailId int64) (*domain.InforequestEmail, error) {
	link := domain.InforequestEmail{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &link,
		`SELECT * FROM inforequest_email
		WHERE email_id = $1 AND type IN ($2, $3, $4, $5)`,
		emailId,
		domain.LinkInboundObligee, domain.LinkInboundUndecided,
		domain.LinkInboundUnrelated, domain.LinkInboundUnknown,
	); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (self inforequestEmailRepository) GetUndecidedByInforequestId(inforequestId int64) (links []domain.InforequestEmail, err error) {
	return links, pgxscan.Select(
		context.Background(), self.DB, &links,
		`SELECT * FROM inforequest_email
		WHERE inforequest_id = $1 AND type = $2
		ORDER BY id`,
		inforequestId, domain.LinkInboundUndecided,
	)
}

func (self inforequestEmailRepository) Save(link *domain.InforequestEmail) error {
	return self.DB.QueryRow(
		context.Background(),
		`INSERT INTO inforequest_email (inforequest_id, email_id, type)
		VALUES ($1, $2, $3)
		RETURNING id`,
		link.InforequestID, link.EmailID, link.Type,
	).Scan(&link.ID)
}

func (self inforequestEmailRepository) SetType(id int64, linkType domain.LinkType) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`UPDATE inforequest_email SET type = $2 WHERE id = $1`,
		id, linkType,
	)
	return
}
