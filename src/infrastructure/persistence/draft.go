package persistence

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

type draftRepository struct {
	DB config.PgxIface
}

func NewDraftRepository(db config.PgxIface) repository.DraftRepository {
	return draftRepository{db}
}

func (self draftRepository) WithQuerier(querier config.PgxIface) repository.DraftRepository {
	return draftRepository{querier}
}

func (self draftRepository) GetInforequestDraftById(id int64) (*domain.InforequestDraft, error) {
	draft := domain.InforequestDraft{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &draft,
		`SELECT * FROM inforequest_draft WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &draft, nil
}

func (self draftRepository) GetInforequestDraftsByApplicantId(applicantId int64) (drafts []domain.InforequestDraft, err error) {
	return drafts, pgxscan.Select(
		context.Background(), self.DB, &drafts,
		`SELECT * FROM inforequest_draft WHERE applicant_id = $1 ORDER BY id`,
		applicantId,
	)
}

func (self draftRepository) SaveInforequestDraft(draft *domain.InforequestDraft) error {
	if draft.ID == 0 {
		return self.DB.QueryRow(
			context.Background(),
			`INSERT INTO inforequest_draft (applicant_id, obligee_id, subject, content)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			draft.ApplicantID, draft.ObligeeID, draft.Subject, draft.Content,
		).Scan(&draft.ID)
	}
	_, err := self.DB.Exec(
		context.Background(),
		`UPDATE inforequest_draft SET obligee_id = $2, subject = $3, content = $4 WHERE id = $1`,
		draft.ID, draft.ObligeeID, draft.Subject, draft.Content,
	)
	return err
}

func (self draftRepository) DeleteInforequestDraft(id int64) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`DELETE FROM inforequest_draft WHERE id = $1`,
		id,
	)
	return
}

func (self draftRepository) GetActionDraftById(id int64) (*domain.ActionDraft, error) {
	draft := domain.ActionDraft{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &draft,
		`SELECT * FROM action_draft WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &draft, nil
}

func (self draftRepository) GetActionDraftsByInforequestId(inforequestId int64) (drafts []domain.ActionDraft, err error) {
	return drafts, pgxscan.Select(
		context.Background(), self.DB, &drafts,
		`SELECT * FROM action_draft WHERE inforequest_id = $1 ORDER BY id`,
		inforequestId,
	)
}

func (self draftRepository) SaveActionDraft(draft *domain.ActionDraft) error {
	if draft.ID == 0 {
		return self.DB.QueryRow(
			context.Background(),
			`INSERT INTO action_draft (inforequest_id, branch_id, type, subject, content, effective_date)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			draft.InforequestID, draft.BranchID, draft.Type,
			draft.Subject, draft.Content, draft.EffectiveDate,
		).Scan(&draft.ID)
	}
	_, err := self.DB.Exec(
		context.Background(),
		`UPDATE action_draft SET branch_id = $2, type = $3, subject = $4, content = $5, effective_date = $6
		WHERE id = $1`,
		draft.ID, draft.BranchID, draft.Type, draft.Subject, draft.Content, draft.EffectiveDate,
	)
	return err
}

func (self draftRepository) DeleteActionDraft(id int64) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`DELETE FROM action_draft WHERE id = $1`,
		id,
	)
	return
}
