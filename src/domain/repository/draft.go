package repository

import (
	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

type DraftRepository interface {
	WithQuerier(config.PgxIface) DraftRepository

	GetInforequestDraftById(int64) (*domain.InforequestDraft, error)
	GetInforequestDraftsByApplicantId(int64) ([]domain.InforequestDraft, error)
	SaveInforequestDraft(*domain.InforequestDraft) error
	DeleteInforequestDraft(int64) error

	GetActionDraftById(int64) (*domain.ActionDraft, error)
	GetActionDraftsByInforequestId(int64) ([]domain.ActionDraft, error)
	SaveActionDraft(*domain.ActionDraft) error
	DeleteActionDraft(int64) error
}
