package service

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
	"github.com/chcemvediet/portal/src/infrastructure/persistence"
)

// DraftService keeps the applicant's scratch inforequests and actions.
// Drafts are freely mutable; nothing here touches the state machine.
type DraftService interface {
	WithQuerier(config.PgxIface) DraftService

	GetInforequestDraftById(int64) (*domain.InforequestDraft, error)
	GetInforequestDraftsByApplicantId(int64) ([]domain.InforequestDraft, error)
	SaveInforequestDraft(*domain.InforequestDraft) error
	DeleteInforequestDraft(int64) error

	GetActionDraftById(int64) (*domain.ActionDraft, error)
	GetActionDraftsByInforequestId(int64) ([]domain.ActionDraft, error)
	SaveActionDraft(*domain.ActionDraft) error
	DeleteActionDraft(int64) error
}

type draftService struct {
	logger          zerolog.Logger
	draftRepository repository.DraftRepository
}

func NewDraftService(db config.PgxIface, logger *zerolog.Logger) DraftService {
	return &draftService{
		logger:          logger.With().Str("component", "DraftService").Logger(),
		draftRepository: persistence.NewDraftRepository(db),
	}
}

func (self *draftService) WithQuerier(querier config.PgxIface) DraftService {
	return &draftService{
		logger:          self.logger,
		draftRepository: self.draftRepository.WithQuerier(querier),
	}
}

func (self *draftService) GetInforequestDraftById(id int64) (draft *domain.InforequestDraft, err error) {
	draft, err = self.draftRepository.GetInforequestDraftById(id)
	err = errors.WithMessagef(err, "Could not select InforequestDraft %d", id)
	return
}

func (self *draftService) GetInforequestDraftsByApplicantId(applicantId int64) (drafts []domain.InforequestDraft, err error) {
	drafts, err = self.draftRepository.GetInforequestDraftsByApplicantId(applicantId)
	err = errors.WithMessagef(err, "Could not select InforequestDrafts of applicant %d", applicantId)
	return
}

func (self *draftService) SaveInforequestDraft(draft *domain.InforequestDraft) error {
	return errors.WithMessage(
		self.draftRepository.SaveInforequestDraft(draft),
		"Could not save InforequestDraft",
	)
}

func (self *draftService) DeleteInforequestDraft(id int64) error {
	return errors.WithMessagef(
		self.draftRepository.DeleteInforequestDraft(id),
		"Could not delete InforequestDraft %d", id,
	)
}

func (self *draftService) GetActionDraftById(id int64) (draft *domain.ActionDraft, err error) {
	draft, err = self.draftRepository.GetActionDraftById(id)
	err = errors.WithMessagef(err, "Could not select ActionDraft %d", id)
	return
}

func (self *draftService) GetActionDraftsByInforequestId(inforequestId int64) (drafts []domain.ActionDraft, err error) {
	drafts, err = self.draftRepository.GetActionDraftsByInforequestId(inforequestId)
	err = errors.WithMessagef(err, "Could not select ActionDrafts of Inforequest %d", inforequestId)
	return
}

func (self *draftService) SaveActionDraft(draft *domain.ActionDraft) error {
	return errors.WithMessage(
		self.draftRepository.SaveActionDraft(draft),
		"Could not save ActionDraft",
	)
}

func (self *draftService) DeleteActionDraft(id int64) error {
	return errors.WithMessagef(
		self.draftRepository.DeleteActionDraft(id),
		"Could not delete ActionDraft %d", id,
	)
}
