package persistence

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

type inforequestRepository struct {
	DB config.PgxIface
}

func NewInforequestRepository(db config.PgxIface) repository.InforequestRepository {
	return inforequestRepository{db}
}

func (self inforequestRepository) WithQuerier(querier config.PgxIface) repository.InforequestRepository {
	return inforequestRepository{querier}
}

func (self inforequestRepository) GetById(id int64) (*domain.Inforequest, error) {
	inforequest := domain.Inforequest{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &inforequest,
		`SELECT * FROM inforequest WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &inforequest, nil
}

func (self inforequestRepository) LockById(id int64) (*domain.Inforequest, error) {
	inforequest := domain.Inforequest{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &inforequest,
		`SELECT * FROM inforequest WHERE id = $1 FOR UPDATE`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &inforequest, nil
}

func (self inforequestRepository) GetByUniqueEmail(email string) (*domain.Inforequest, error) {
	inforequest := domain.Inforequest{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &inforequest,
		`SELECT * FROM inforequest WHERE unique_email = $1`,
		email,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &inforequest, nil
}

func (self inforequestRepository) GetByUniqueEmails(emails []string) (inforequests []domain.Inforequest, err error) {
	return inforequests, pgxscan.Select(
		context.Background(), self.DB, &inforequests,
		`SELECT * FROM inforequest WHERE unique_email = ANY($1) ORDER BY id`,
		emails,
	)
}

func (self inforequestRepository) GetByApplicantId(applicantId int64, page *repository.Page) ([]domain.Inforequest, error) {
	inforequests := make([]domain.Inforequest, 0, page.Limit)
	return inforequests, fetchPage(
		self.DB, page, &inforequests,
		`*`, `inforequest WHERE applicant_id = $1`, `submission_date DESC, id DESC`,
		applicantId,
	)
}

func (self inforequestRepository) GetAll(page *repository.Page) ([]domain.Inforequest, error) {
	inforequests := make([]domain.Inforequest, 0, page.Limit)
	return inforequests, fetchPage(
		self.DB, page, &inforequests,
		`*`, `inforequest`, `submission_date DESC, id DESC`,
	)
}

func (self inforequestRepository) GetOpen() (inforequests []domain.Inforequest, err error) {
	return inforequests, pgxscan.Select(
		context.Background(), self.DB, &inforequests,
		`SELECT * FROM inforequest WHERE NOT closed ORDER BY id`,
	)
}

func (self inforequestRepository) GetOpenWithUndecided() (inforequests []domain.Inforequest, err error) {
	return inforequests, pgxscan.Select(
		context.Background(), self.DB, &inforequests,
		`SELECT inforequest.* FROM inforequest
		WHERE NOT closed AND EXISTS (
			SELECT NULL FROM inforequest_email
			WHERE inforequest_id = inforequest.id AND type = $1
		)
		ORDER BY id`,
		domain.LinkInboundUndecided,
	)
}

func (self inforequestRepository) Save(inforequest *domain.Inforequest) error {
	return self.DB.QueryRow(
		context.Background(),
		`INSERT INTO inforequest (
			applicant_id, applicant_name, applicant_street, applicant_city, applicant_zip,
			applicant_email, unique_email, subject, content, submission_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, closed`,
		inforequest.ApplicantID,
		inforequest.ApplicantName, inforequest.ApplicantStreet, inforequest.ApplicantCity, inforequest.ApplicantZip,
		inforequest.ApplicantEmail,
		inforequest.UniqueEmail, inforequest.Subject, inforequest.Content, inforequest.SubmissionDate,
	).Scan(&inforequest.ID, &inforequest.Closed)
}

func (self inforequestRepository) SetClosed(id int64) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`UPDATE inforequest SET closed = TRUE WHERE id = $1`,
		id,
	)
	return
}

func (self inforequestRepository) SetLastUndecidedEmailReminder(id int64, at *time.Time) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`UPDATE inforequest SET last_undecided_email_reminder = $2 WHERE id = $1`,
		id, at,
	)
	return
}
