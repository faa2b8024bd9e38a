package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
	"github.com/chcemvediet/portal/src/infrastructure/persistence"
)

// CorrelationService ties inbound mail to inforequests. Correlation only
// matches the unique return address among the recipients; it never
// guesses from subjects or senders. A matched message becomes an
// undecided link that a human later resolves through Decide.
type CorrelationService interface {
	WithQuerier(config.PgxIface) CorrelationService

	Correlate(*domain.Message) error

	DecideUnrelated(linkId int64) error
	DecideUnknown(linkId int64) error
	// DecideObligeeAction promotes an undecided message to an obligee
	// action on the given branch. On an illegal action the link stays
	// undecided and the error is returned to the caller.
	DecideObligeeAction(linkId, branchId int64, action *domain.Action, advanceTo []int64) error
}

type correlationService struct {
	logger                zerolog.Logger
	db                    config.PgxIface
	engine                *config.Engine
	inforequestRepository repository.InforequestRepository
	emailRepository       repository.InforequestEmailRepository
	actionRepository      repository.ActionRepository
	messageService        MessageService
	inforequestService    InforequestService
	notificationService   NotificationService
}

func NewCorrelationService(
	db config.PgxIface,
	engine *config.Engine,
	inforequestService InforequestService,
	notificationService NotificationService,
	logger *zerolog.Logger,
) CorrelationService {
	return &correlationService{
		logger:                logger.With().Str("component", "CorrelationService").Logger(),
		db:                    db,
		engine:                engine,
		inforequestRepository: persistence.NewInforequestRepository(db),
		emailRepository:       persistence.NewInforequestEmailRepository(db),
		actionRepository:      persistence.NewActionRepository(db),
		messageService:        NewMessageService(db, logger),
		inforequestService:    inforequestService,
		notificationService:   notificationService,
	}
}

func (self *correlationService) WithQuerier(querier config.PgxIface) CorrelationService {
	return &correlationService{
		logger:                self.logger,
		db:                    querier,
		engine:                self.engine,
		inforequestRepository: self.inforequestRepository.WithQuerier(querier),
		emailRepository:       self.emailRepository.WithQuerier(querier),
		actionRepository:      self.actionRepository.WithQuerier(querier),
		messageService:        self.messageService.WithQuerier(querier),
		inforequestService:    self.inforequestService.WithQuerier(querier),
		notificationService:   self.notificationService.WithQuerier(querier),
	}
}

func (self *correlationService) Correlate(message *domain.Message) error {
	recipients, err := self.messageService.GetRecipients(message.ID)
	if err != nil {
		return err
	}

	addresses := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		addresses = append(addresses, recipient.Mail)
	}

	inforequests, err := self.inforequestRepository.GetByUniqueEmails(addresses)
	if err != nil {
		return errors.WithMessagef(err, "Could not match addresses of Message %d", message.ID)
	}

	switch len(inforequests) {
	case 0:
		self.logger.Warn().
			Int64("message", message.ID).
			Str("from", message.FromMail).
			Msg("No inforequest matches message, leaving unlinked")

	case 1:
		inforequest := &inforequests[0]
		// Re-processing after a crash must not link the message twice.
		existing, err := self.emailRepository.GetInboundByEmailId(message.ID)
		if err != nil {
			return errors.WithMessagef(err, "Could not check links of Message %d", message.ID)
		}
		if existing != nil {
			self.logger.Warn().
				Int64("message", message.ID).
				Int64("link", existing.ID).
				Msg("Message already linked, skipping")
			break
		}
		if err := self.emailRepository.Save(&domain.InforequestEmail{
			InforequestID: inforequest.ID,
			EmailID:       message.ID,
			Type:          domain.LinkInboundUndecided,
		}); err != nil {
			return errors.WithMessagef(err, "Could not link Message %d to Inforequest %d", message.ID, inforequest.ID)
		}
		// Fresh undecided mail restarts the reminder clock.
		if err := self.inforequestRepository.SetLastUndecidedEmailReminder(inforequest.ID, nil); err != nil {
			return errors.WithMessagef(err, "Could not reset undecided reminder on Inforequest %d", inforequest.ID)
		}
		if err := self.notificationService.NotifyReceivedEmail(inforequest, message); err != nil {
			return err
		}
		self.logger.Info().
			Int64("message", message.ID).
			Int64("inforequest", inforequest.ID).
			Msg("Correlated message")

	default:
		return errors.WithMessagef(domain.ErrIntegrityError,
			"message %d matches %d inforequests", message.ID, len(inforequests))
	}

	return self.messageService.SetProcessed(message.ID, time.Now())
}

func (self *correlationService) DecideUnrelated(linkId int64) error {
	return self.decideAside(linkId, domain.LinkInboundUnrelated)
}

func (self *correlationService) DecideUnknown(linkId int64) error {
	return self.decideAside(linkId, domain.LinkInboundUnknown)
}

func (self *correlationService) decideAside(linkId int64, linkType domain.LinkType) error {
	return pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped := self.WithQuerier(tx).(*correlationService)

		link, err := scoped.undecided(linkId)
		if err != nil {
			return err
		}
		if err := scoped.emailRepository.SetType(link.ID, linkType); err != nil {
			return errors.WithMessagef(err, "Could not mark link %d as %s", link.ID, linkType)
		}
		scoped.logger.Info().Int64("link", link.ID).Str("decision", linkType.String()).Msg("Decided message")
		return nil
	})
}

func (self *correlationService) DecideObligeeAction(linkId, branchId int64, action *domain.Action, advanceTo []int64) error {
	return pgx.BeginFunc(context.Background(), self.db, func(tx pgx.Tx) error {
		scoped := self.WithQuerier(tx).(*correlationService)

		link, err := scoped.undecided(linkId)
		if err != nil {
			return err
		}

		message, err := scoped.messageService.GetById(link.EmailID)
		if err != nil {
			return err
		}
		// A message backs at most one action.
		if prior, err := scoped.actionRepository.GetByEmailId(message.ID); err == nil {
			return errors.WithMessagef(domain.ErrIntegrityError,
				"message %d already backs action %d", message.ID, prior.ID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return errors.WithMessagef(err, "Could not check Actions of Message %d", message.ID)
		}
		action.EmailID = &message.ID
		if action.Subject == "" {
			action.Subject = message.Subject
		}
		if action.Content == "" {
			action.Content = message.Text
			action.ContentType = domain.ContentTypePlain
			if message.Text == "" && message.HTML != "" {
				action.Content = message.HTML
				action.ContentType = domain.ContentTypeHTML
			}
		}

		if err := scoped.inforequestService.AppendObligeeAction(link.InforequestID, branchId, action, advanceTo); err != nil {
			return err
		}
		if err := scoped.emailRepository.SetType(link.ID, domain.LinkInboundObligee); err != nil {
			return errors.WithMessagef(err, "Could not mark link %d decided", link.ID)
		}
		scoped.logger.Info().
			Int64("link", link.ID).
			Int64("branch", branchId).
			Str("type", action.Type.String()).
			Msg("Decided message as obligee action")
		return nil
	})
}

func (self *correlationService) undecided(linkId int64) (*domain.InforequestEmail, error) {
	link, err := self.emailRepository.GetById(linkId)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not select link %d", linkId)
	}
	if link.Type != domain.LinkInboundUndecided {
		return nil, domain.IllegalActionf("link %d is %s, not undecided", linkId, link.Type)
	}
	return link, nil
}
