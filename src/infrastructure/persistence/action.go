package persistence

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

type actionRepository struct {
	DB config.PgxIface
}

func NewActionRepository(db config.PgxIface) repository.ActionRepository {
	return actionRepository{db}
}

func (self actionRepository) WithQuerier(querier config.PgxIface) repository.ActionRepository {
	return actionRepository{querier}
}

func (self actionRepository) GetById(id int64) (*domain.Action, error) {
	action := domain.Action{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &action,
		`SELECT * FROM action WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &action, nil
}

func (self actionRepository) GetByBranchId(branchId int64) (actions []domain.Action, err error) {
	return actions, pgxscan.Select(
		context.Background(), self.DB, &actions,
		`SELECT * FROM action WHERE branch_id = $1 ORDER BY effective_date, id`,
		branchId,
	)
}

func (self actionRepository) GetByEmailId(emailId int64) (*domain.Action, error) {
	action := domain.Action{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &action,
		`SELECT * FROM action WHERE email_id = $1`,
		emailId,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &action, nil
}

func (self actionRepository) Save(action *domain.Action) error {
	return self.DB.QueryRow(
		context.Background(),
		`INSERT INTO action (
			branch_id, type, email_id, subject, content, content_type,
			effective_date, file_number, deadline_days, extension_days,
			refusal_reasons, disclosure_level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		action.BranchID, action.Type, action.EmailID,
		action.Subject, action.Content, action.ContentType,
		action.EffectiveDate, action.FileNumber,
		action.DeadlineDays, action.ExtensionDays,
		action.RefusalReasons, action.DisclosureLevel,
	).Scan(&action.ID, &action.CreatedAt)
}

func (self actionRepository) SetEmailId(actionId, emailId int64) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`UPDATE action SET email_id = $2 WHERE id = $1`,
		actionId, emailId,
	)
	return
}

func (self actionRepository) SetLastDeadlineReminder(id int64, at time.Time) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`UPDATE action SET last_deadline_reminder = $2 WHERE id = $1`,
		id, at,
	)
	return
}
