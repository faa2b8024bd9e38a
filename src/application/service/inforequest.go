package service

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
	"github.com/chcemvediet/portal/src/infrastructure/persistence"
)

// Unique address tokens start short and grow on collision, up to a hard
// cap. With the pronounceable alphabet even length 4 gives tens of
// thousands of tokens, so the cap is only ever reached when the token
// space is badly exhausted.
const (
	minTokenLength = 4
	maxTokenLength = 10
)

// BranchDetail is a branch with its replayed state, as served to clients.
type BranchDetail struct {
	Branch  *domain.Branch
	State   *domain.BranchState
	Obligee *domain.ObligeeSnapshot
}

type InforequestDetail struct {
	Inforequest *domain.Inforequest
	Branches    []BranchDetail
}

type InforequestService interface {
	WithQuerier(config.PgxIface) InforequestService

	GetById(int64) (*domain.Inforequest, error)
	GetAll(*repository.Page) ([]domain.Inforequest, error)
	GetByApplicantId(int64, *repository.Page) ([]domain.Inforequest, error)
	GetOpen() ([]domain.Inforequest, error)
	GetOpenWithUndecided() ([]domain.Inforequest, error)
	Detail(int64) (*InforequestDetail, error)
	UndecidedLinks(int64) ([]domain.InforequestEmail, error)

	MarkUndecidedReminded(inforequestId int64, at time.Time) error
	MarkDeadlineReminded(actionId int64, at time.Time) error

	// Submit materializes a new inforequest against one obligee: it freezes
	// the applicant contact, mints the unique return address, opens the
	// main branch with its request action and enqueues the mail to the
	// obligee. All or nothing.
	Submit(*domain.Inforequest, int64) error
	// SubmitDraft submits from a stored draft and deletes it.
	SubmitDraft(int64, *domain.Inforequest) error

	// AppendApplicantAction appends an applicant action to a branch and,
	// for actions addressed to the obligee, enqueues the outbound mail.
	AppendApplicantAction(inforequestId, branchId int64, action *domain.Action) error
	// SubmitActionDraft appends the drafted applicant action to its branch
	// and deletes the draft, returning the appended action.
	SubmitActionDraft(draftId int64) (*domain.Action, error)
	// AppendObligeeAction appends an obligee action to a branch. An
	// advancement opens one advanced branch per obligee in advanceTo, each
	// with a pinned snapshot and its own opening action.
	AppendObligeeAction(inforequestId, branchId int64, action *domain.Action, advanceTo []int64) error

	// Close appends the applicant's closing action to every non-terminal
	// branch and marks the inforequest closed.
	Close(int64) error
	// CloseQuiet is the scheduler's close: branches with a missed obligee
	// deadline get an expiration action first, then the inforequest is
	// closed as it stands.
	CloseQuiet(int64) error
}

type inforequestService struct {
	logger                zerolog.Logger
	db                    config.PgxIface
	engine                *config.Engine
	inforequestRepository repository.InforequestRepository
	branchRepository      repository.BranchRepository
	actionRepository      repository.ActionRepository
	obligeeRepository     repository.ObligeeRepository
	emailRepository       repository.InforequestEmailRepository
	draftRepository       repository.DraftRepository
	messageService        MessageService
	metrics               *config.Metrics

	// appended collects the action types recorded inside the current
	// transaction; counters move only once it commits.
	appended []domain.ActionType
}

func NewInforequestService(db config.PgxIface, engine *config.Engine, metrics *config.Metrics, logger *zerolog.Logger) InforequestService {
	return &inforequestService{
		logger:                logger.With().Str("component", "InforequestService").Logger(),
		db:                    db,
		engine:                engine,
		inforequestRepository: persistence.NewInforequestRepository(db),
		branchRepository:      persistence.NewBranchRepository(db),
		actionRepository:      persistence.NewActionRepository(db),
		obligeeRepository:     persistence.NewObligeeRepository(db),
		emailRepository:       persistence.NewInforequestEmailRepository(db),
		draftRepository:       persistence.NewDraftRepository(db),
		messageService:        NewMessageService(db, logger),
		metrics:               metrics,
	}
}

func (self *inforequestService) WithQuerier(querier config.PgxIface) InforequestService {
	return &inforequestService{
		logger:                self.logger,
		db:                    querier,
		engine:                self.engine,
		inforequestRepository: self.inforequestRepository.WithQuerier(querier),
		branchRepository:      self.branchRepository.WithQuerier(querier),
		actionRepository:      self.actionRepository.WithQuerier(querier),
		obligeeRepository:     self.obligeeRepository.WithQuerier(querier),
		emailRepository:       self.emailRepository.WithQuerier(querier),
		draftRepository:       self.draftRepository.WithQuerier(querier),
		messageService:        self.messageService.WithQuerier(querier),
		metrics:               self.metrics,
	}
}

func (self *inforequestService) GetById(id int64) (inforequest *domain.Inforequest, err error) {
	inforequest, err = self.inforequestRepository.GetById(id)
	err = errors.WithMessagef(err, "Could not select Inforequest %d", id)
	return
}

func (self *inforequestService) GetAll(page *repository.Page) (inforequests []domain.Inforequest, err error) {
	inforequests, err = self.inforequestRepository.GetAll(page)
	err = errors.WithMessage(err, "Could not select Inforequests")
	return
}

func (self *inforequestService) GetByApplicantId(applicantId int64, page *repository.Page) (inforequests []domain.Inforequest, err error) {
	inforequests, err = self.inforequestRepository.GetByApplicantId(applicantId, page)
	err = errors.WithMessagef(err, "Could not select Inforequests of applicant %d", applicantId)
	return
}

func (self *inforequestService) GetOpen() (inforequests []domain.Inforequest, err error) {
	inforequests, err = self.inforequestRepository.GetOpen()
	err = errors.WithMessage(err, "Could not select open Inforequests")
	return
}

func (self *inforequestService) GetOpenWithUndecided() (inforequests []domain.Inforequest, err error) {
	inforequests, err = self.inforequestRepository.GetOpenWithUndecided()
	err = errors.WithMessage(err, "Could not select Inforequests with undecided mail")
	return
}

func (self *inforequestService) UndecidedLinks(id int64) (links []domain.InforequestEmail, err error) {
	links, err = self.emailRepository.GetUndecidedByInforequestId(id)
	err = errors.WithMessagef(err, "Could not select undecided links of Inforequest %d", id)
	return
}

func (self *inforequestService) MarkUndecidedReminded(inforequestId int64, at time.Time) error {
	return errors.WithMessagef(
		self.inforequestRepository.SetLastUndecidedEmailReminder(inforequestId, &at),
		"Could not record undecided reminder on Inforequest %d", inforequestId,
	)
}

func (self *inforequestService) MarkDeadlineReminded(actionId int64, at time.Time) error {
	return errors.WithMessagef(
		self.actionRepository.SetLastDeadlineReminder(actionId, at),
		"Could not record deadline reminder on Action %d", actionId,
	)
}

func (self *inforequestService) Detail(id int64) (*InforequestDetail, error) {
	inforequest, err := self.GetById(id)
	if err != nil {
		return nil, err
	}

	branches, err := self.branchRepository.GetByInforequestId(id)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not select Branches of Inforequest %d", id)
	}

	detail := &InforequestDetail{Inforequest: inforequest}
	for i := range branches {
		state, err := self.replay(&branches[i])
		if err != nil {
			return nil, err
		}
		snapshot, err := self.obligeeRepository.GetSnapshotById(branches[i].ObligeeSnapshotID)
		if err != nil {
			return nil, errors.WithMessagef(err, "Could not select ObligeeSnapshot %d", branches[i].ObligeeSnapshotID)
		}
		detail.Branches = append(detail.Branches, BranchDetail{
			Branch:  &branches[i],
			State:   state,
			Obligee: snapshot,
		})
	}
	return detail, nil
}

// replay loads the branch's actions and folds them into its state.
func (self *inforequestService) replay(branch *domain.Branch) (*domain.BranchState, error) {
	actions, err := self.actionRepository.GetByBranchId(branch.ID)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not select Actions of Branch %d", branch.ID)
	}
	pointers := make([]*domain.Action, len(actions))
	for i := range actions {
		pointers[i] = &actions[i]
	}
	state, err := domain.Replay(branch, pointers, self.engine.Rules())
	return state, errors.WithMessagef(err, "Could not replay Branch %d", branch.ID)
}

func (self *inforequestService) Submit(inforequest *domain.Inforequest, obligeeId int64) error {
	var scoped *inforequestService
	err := pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped = self.WithQuerier(tx).(*inforequestService)
		return scoped.submit(inforequest, obligeeId)
	})
	if err != nil {
		return err
	}
	scoped.flushMetrics(false)
	return nil
}

func (self *inforequestService) submit(inforequest *domain.Inforequest, obligeeId int64) error {
	obligee, err := self.obligeeRepository.GetById(obligeeId)
	if err != nil {
		return errors.WithMessagef(err, "Could not select Obligee %d", obligeeId)
	}
	if obligee.Status != domain.ObligeeActive {
		return domain.IllegalActionf("obligee %q is dissolved", obligee.Name)
	}

	now := self.engine.Calendar.Now()
	snapshot, err := self.obligeeRepository.GetSnapshotAt(obligeeId, now)
	if errors.Is(err, domain.ErrNotFound) {
		snapshot = snapshotOf(obligee, now)
		err = self.obligeeRepository.SaveSnapshot(snapshot)
	}
	if err != nil {
		return errors.WithMessagef(err, "Could not pin ObligeeSnapshot for Obligee %d", obligeeId)
	}

	if inforequest.SubmissionDate.IsZero() {
		inforequest.SubmissionDate = self.engine.Calendar.Today()
	}

	if err := self.mintUniqueEmail(inforequest); err != nil {
		return err
	}
	if err := self.inforequestRepository.Save(inforequest); err != nil {
		return errors.WithMessage(err, "Could not insert Inforequest")
	}

	branch := &domain.Branch{
		InforequestID:     inforequest.ID,
		ObligeeID:         obligeeId,
		ObligeeSnapshotID: snapshot.ID,
	}
	if err := self.branchRepository.Save(branch); err != nil {
		return errors.WithMessagef(err, "Could not insert main Branch of Inforequest %d", inforequest.ID)
	}

	action := &domain.Action{
		BranchID:      branch.ID,
		Type:          domain.ActionRequest,
		Subject:       inforequest.Subject,
		Content:       inforequest.Content,
		ContentType:   domain.ContentTypePlain,
		EffectiveDate: inforequest.SubmissionDate,
	}
	if err := self.appendAndSave(branch, action); err != nil {
		return err
	}

	if err := self.mailToObligee(inforequest, branch, snapshot, action); err != nil {
		return err
	}

	self.logger.Info().
		Int64("inforequest", inforequest.ID).
		Str("unique-email", inforequest.UniqueEmail).
		Int64("obligee", obligeeId).
		Msg("Submitted inforequest")
	return nil
}

func (self *inforequestService) SubmitDraft(draftId int64, inforequest *domain.Inforequest) error {
	var scoped *inforequestService
	err := pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped = self.WithQuerier(tx).(*inforequestService)

		draft, err := scoped.draftRepository.GetInforequestDraftById(draftId)
		if err != nil {
			return errors.WithMessagef(err, "Could not select InforequestDraft %d", draftId)
		}
		if draft.ObligeeID == nil {
			return domain.MissingRequiredField(domain.ActionRequest, "obligee")
		}

		inforequest.ApplicantID = draft.ApplicantID
		inforequest.Subject = draft.Subject
		inforequest.Content = draft.Content
		if err := scoped.submit(inforequest, *draft.ObligeeID); err != nil {
			return err
		}
		return errors.WithMessagef(
			scoped.draftRepository.DeleteInforequestDraft(draftId),
			"Could not delete InforequestDraft %d", draftId,
		)
	})
	if err != nil {
		return err
	}
	scoped.flushMetrics(false)
	return nil
}

// mintUniqueEmail fills in the unique return address. Collisions are rare;
// each one grows the token before trying again.
func (self *inforequestService) mintUniqueEmail(inforequest *domain.Inforequest) error {
	for length := minTokenLength; length <= maxTokenLength; length++ {
		token, err := domain.MintToken(length)
		if err != nil {
			return errors.WithMessage(err, "Could not mint address token")
		}
		email := token + "@" + self.engine.MailDomain

		if _, err := self.inforequestRepository.GetByUniqueEmail(email); errors.Is(err, domain.ErrNotFound) {
			inforequest.UniqueEmail = email
			return nil
		} else if err != nil {
			return errors.WithMessagef(err, "Could not check unique address %q", email)
		}
		self.logger.Warn().Str("email", email).Msg("Unique address collision, growing token")
	}
	return domain.ErrDuplicateUniqueEmail
}

// appendAndSave validates the action against the branch's replayed state
// and persists it.
func (self *inforequestService) appendAndSave(branch *domain.Branch, action *domain.Action) error {
	state, err := self.replay(branch)
	if err != nil {
		return err
	}
	return self.appendToState(state, action)
}

func (self *inforequestService) appendToState(state *domain.BranchState, action *domain.Action) error {
	action.BranchID = state.Branch.ID
	if err := state.Append(action); err != nil {
		return errors.WithMessagef(err, "Could not append %s to Branch %d", action.Type, state.Branch.ID)
	}
	if err := self.actionRepository.Save(action); err != nil {
		return errors.WithMessagef(err, "Could not insert %s Action on Branch %d", action.Type, state.Branch.ID)
	}
	self.appended = append(self.appended, action.Type)
	return nil
}

// flushMetrics reports the transaction's recorded work after commit.
func (self *inforequestService) flushMetrics(closed bool) {
	if self.metrics == nil {
		return
	}
	for _, typ := range self.appended {
		self.metrics.ActionsAppended.WithLabelValues(typ.String()).Inc()
	}
	if closed {
		self.metrics.InforequestsClosed.Inc()
	}
}

// obligeeRecipients unions the pinned snapshot's addresses with the sender
// addresses of the branch's inbound mail. The newest occurrence of an
// address wins its display name.
func (self *inforequestService) obligeeRecipients(branch *domain.Branch, snapshot *domain.ObligeeSnapshot) ([]domain.Recipient, error) {
	index := map[string]int{}
	var recipients []domain.Recipient
	add := func(mail, name string) {
		mail = strings.TrimSpace(mail)
		if mail == "" {
			return
		}
		key := strings.ToLower(mail)
		if i, ok := index[key]; ok {
			recipients[i].Name = name
			return
		}
		index[key] = len(recipients)
		recipients = append(recipients, domain.Recipient{Name: name, Mail: mail, Type: domain.RecipientTo})
	}

	for _, mail := range snapshot.EmailList() {
		add(mail, snapshot.Name)
	}

	actions, err := self.actionRepository.GetByBranchId(branch.ID)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not select Actions of Branch %d", branch.ID)
	}
	for i := range actions {
		if actions[i].EmailID == nil || !actions[i].Type.IsObligee() {
			continue
		}
		message, err := self.messageService.GetById(*actions[i].EmailID)
		if err != nil {
			return nil, errors.WithMessagef(err, "Could not select Message %d of Action %d", *actions[i].EmailID, actions[i].ID)
		}
		add(message.FromMail, message.FromName)
	}
	return recipients, nil
}

// mailToObligee enqueues the action's content as mail from the unique
// address to the branch's obligee addresses.
func (self *inforequestService) mailToObligee(inforequest *domain.Inforequest, branch *domain.Branch, snapshot *domain.ObligeeSnapshot, action *domain.Action) error {
	message := &domain.Message{
		FromName: inforequest.ApplicantName,
		FromMail: inforequest.UniqueEmail,
		Subject:  action.Subject,
		Text:     action.Content,
		Headers:  map[string]string{"Reply-To": inforequest.UniqueEmail},
	}
	recipients, err := self.obligeeRecipients(branch, snapshot)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return domain.IllegalActionf("obligee %q has no addresses", snapshot.Name)
	}

	if err := self.messageService.EnqueueOutbound(message, recipients); err != nil {
		return err
	}
	if err := self.emailRepository.Save(&domain.InforequestEmail{
		InforequestID: inforequest.ID,
		EmailID:       message.ID,
		Type:          domain.LinkOutboundApplicant,
	}); err != nil {
		return errors.WithMessagef(err, "Could not link outbound Message %d to Inforequest %d", message.ID, inforequest.ID)
	}
	return errors.WithMessagef(
		self.actionRepository.SetEmailId(action.ID, message.ID),
		"Could not link %s Action %d to its Message", action.Type, action.ID,
	)
}

func (self *inforequestService) AppendApplicantAction(inforequestId, branchId int64, action *domain.Action) error {
	var scoped *inforequestService
	err := pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped = self.WithQuerier(tx).(*inforequestService)
		return scoped.appendApplicant(inforequestId, branchId, action)
	})
	if err != nil {
		return err
	}
	scoped.flushMetrics(false)
	return nil
}

func (self *inforequestService) appendApplicant(inforequestId, branchId int64, action *domain.Action) error {
	inforequest, branch, err := self.lockBranch(inforequestId, branchId)
	if err != nil {
		return err
	}
	if !action.Type.IsApplicant() {
		return domain.IllegalActionf("%s is not an applicant action", action.Type)
	}
	if action.EffectiveDate.IsZero() {
		action.EffectiveDate = self.engine.Calendar.Today()
	}

	if err := self.appendAndSave(branch, action); err != nil {
		return err
	}

	if action.Type == domain.ActionApplicantClose {
		return nil
	}
	snapshot, err := self.obligeeRepository.GetSnapshotById(branch.ObligeeSnapshotID)
	if err != nil {
		return errors.WithMessagef(err, "Could not select ObligeeSnapshot %d", branch.ObligeeSnapshotID)
	}
	return self.mailToObligee(inforequest, branch, snapshot, action)
}

func (self *inforequestService) SubmitActionDraft(draftId int64) (*domain.Action, error) {
	var scoped *inforequestService
	action := &domain.Action{}
	err := pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped = self.WithQuerier(tx).(*inforequestService)

		draft, err := scoped.draftRepository.GetActionDraftById(draftId)
		if err != nil {
			return errors.WithMessagef(err, "Could not select ActionDraft %d", draftId)
		}
		if draft.BranchID == nil {
			return domain.MissingRequiredField(draft.Type, "branch")
		}

		action.Type = draft.Type
		action.Subject = draft.Subject
		action.Content = draft.Content
		action.ContentType = domain.ContentTypePlain
		if draft.EffectiveDate != nil {
			action.EffectiveDate = *draft.EffectiveDate
		}

		if err := scoped.appendApplicant(draft.InforequestID, *draft.BranchID, action); err != nil {
			return err
		}
		return errors.WithMessagef(
			scoped.draftRepository.DeleteActionDraft(draftId),
			"Could not delete ActionDraft %d", draftId,
		)
	})
	if err != nil {
		return nil, err
	}
	scoped.flushMetrics(false)
	return action, nil
}

func (self *inforequestService) AppendObligeeAction(inforequestId, branchId int64, action *domain.Action, advanceTo []int64) error {
	var scoped *inforequestService
	err := pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped = self.WithQuerier(tx).(*inforequestService)

		inforequest, branch, err := scoped.lockBranch(inforequestId, branchId)
		if err != nil {
			return err
		}
		if !action.Type.IsObligee() {
			return domain.IllegalActionf("%s is not an obligee action", action.Type)
		}
		if action.Type != domain.ActionAdvancement && len(advanceTo) > 0 {
			return domain.ForbiddenField(action.Type, "advance_to")
		}
		if action.EffectiveDate.IsZero() {
			action.EffectiveDate = scoped.engine.Calendar.Today()
		}

		if err := scoped.appendAndSave(branch, action); err != nil {
			return err
		}

		if action.Type == domain.ActionAdvancement {
			if len(advanceTo) == 0 {
				return domain.MissingRequiredField(action.Type, "advance_to")
			}
			return scoped.advance(inforequest, action, advanceTo)
		}
		return nil
	})
	if err != nil {
		return err
	}
	scoped.flushMetrics(false)
	return nil
}

// advance opens one advanced branch per target obligee, each pinning a
// fresh snapshot and opening with its own implicit request action.
func (self *inforequestService) advance(inforequest *domain.Inforequest, advancement *domain.Action, obligeeIds []int64) error {
	now := self.engine.Calendar.Now()

	for _, obligeeId := range obligeeIds {
		obligee, err := self.obligeeRepository.GetById(obligeeId)
		if err != nil {
			return errors.WithMessagef(err, "Could not select advancement target Obligee %d", obligeeId)
		}

		snapshot := snapshotOf(obligee, now)
		if err := self.obligeeRepository.SaveSnapshot(snapshot); err != nil {
			return errors.WithMessagef(err, "Could not pin ObligeeSnapshot for Obligee %d", obligeeId)
		}

		branch := &domain.Branch{
			InforequestID:     inforequest.ID,
			ObligeeID:         obligeeId,
			ObligeeSnapshotID: snapshot.ID,
			AdvancedByID:      &advancement.ID,
		}
		if err := self.branchRepository.Save(branch); err != nil {
			return errors.WithMessagef(err, "Could not insert advanced Branch for Obligee %d", obligeeId)
		}

		opening := &domain.Action{
			BranchID:      branch.ID,
			Type:          domain.ActionAdvancedRequest,
			Subject:       inforequest.Subject,
			Content:       inforequest.Content,
			ContentType:   domain.ContentTypePlain,
			EffectiveDate: advancement.EffectiveDate,
		}
		if err := self.appendAndSave(branch, opening); err != nil {
			return err
		}

		self.logger.Info().
			Int64("inforequest", inforequest.ID).
			Int64("branch", branch.ID).
			Int64("obligee", obligeeId).
			Msg("Advanced to obligee")
	}
	return nil
}

func (self *inforequestService) Close(id int64) error {
	var scoped *inforequestService
	err := pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped = self.WithQuerier(tx).(*inforequestService)

		inforequest, err := scoped.inforequestRepository.LockById(id)
		if err != nil {
			return errors.WithMessagef(err, "Could not lock Inforequest %d", id)
		}
		if inforequest.Closed {
			return domain.IllegalActionf("inforequest %d is already closed", id)
		}

		branches, err := scoped.branchRepository.GetByInforequestId(id)
		if err != nil {
			return errors.WithMessagef(err, "Could not select Branches of Inforequest %d", id)
		}
		today := scoped.engine.Calendar.Today()
		for i := range branches {
			state, err := scoped.replay(&branches[i])
			if err != nil {
				return err
			}
			if state.Terminal {
				continue
			}
			if err := scoped.appendToState(state, &domain.Action{
				Type:          domain.ActionApplicantClose,
				EffectiveDate: today,
			}); err != nil {
				return err
			}
		}

		if err := scoped.inforequestRepository.SetClosed(id); err != nil {
			return errors.WithMessagef(err, "Could not close Inforequest %d", id)
		}
		scoped.logger.Info().Int64("inforequest", id).Msg("Closed inforequest")
		return nil
	})
	if err != nil {
		return err
	}
	scoped.flushMetrics(true)
	return nil
}

func (self *inforequestService) CloseQuiet(id int64) error {
	var scoped *inforequestService
	closed := false
	err := pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped = self.WithQuerier(tx).(*inforequestService)

		inforequest, err := scoped.inforequestRepository.LockById(id)
		if err != nil {
			return errors.WithMessagef(err, "Could not lock Inforequest %d", id)
		}
		if inforequest.Closed {
			return nil
		}

		branches, err := scoped.branchRepository.GetByInforequestId(id)
		if err != nil {
			return errors.WithMessagef(err, "Could not select Branches of Inforequest %d", id)
		}
		today := scoped.engine.Calendar.Today()
		for i := range branches {
			state, err := scoped.replay(&branches[i])
			if err != nil {
				return err
			}
			if state.Terminal {
				continue
			}
			expected, err := state.ExpectedNext(today)
			if err != nil {
				return err
			}
			for _, typ := range expected {
				if typ != domain.ActionExpiration && typ != domain.ActionAppealExpiration {
					continue
				}
				if err := scoped.appendToState(state, &domain.Action{
					Type:          typ,
					EffectiveDate: today,
				}); err != nil {
					return err
				}
				break
			}
		}

		if err := scoped.inforequestRepository.SetClosed(id); err != nil {
			return errors.WithMessagef(err, "Could not close Inforequest %d", id)
		}
		closed = true
		scoped.logger.Info().Int64("inforequest", id).Msg("Closed quiet inforequest")
		return nil
	})
	if err != nil {
		return err
	}
	scoped.flushMetrics(closed)
	return nil
}

// lockBranch locks the owning inforequest, rejecting closed ones, and
// checks the branch belongs to it.
func (self *inforequestService) lockBranch(inforequestId, branchId int64) (*domain.Inforequest, *domain.Branch, error) {
	inforequest, err := self.inforequestRepository.LockById(inforequestId)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "Could not lock Inforequest %d", inforequestId)
	}
	if inforequest.Closed {
		return nil, nil, domain.IllegalActionf("inforequest %d is closed", inforequestId)
	}

	branch, err := self.branchRepository.GetById(branchId)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "Could not select Branch %d", branchId)
	}
	if branch.InforequestID != inforequestId {
		return nil, nil, errors.WithMessagef(domain.ErrIntegrityError,
			"branch %d does not belong to inforequest %d", branchId, inforequestId)
	}
	return inforequest, branch, nil
}

func snapshotOf(obligee *domain.Obligee, at time.Time) *domain.ObligeeSnapshot {
	return &domain.ObligeeSnapshot{
		ObligeeID:    obligee.ID,
		Name:         obligee.Name,
		Street:       obligee.Street,
		City:         obligee.City,
		Zip:          obligee.Zip,
		Emails:       obligee.Emails,
		Status:       obligee.Status,
		SnapshotTime: at,
	}
}
