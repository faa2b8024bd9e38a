package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
	"github.com/chcemvediet/portal/src/infrastructure/persistence"
)

type MessageService interface {
	WithQuerier(config.PgxIface) MessageService

	GetById(int64) (*domain.Message, error)
	GetRecipients(int64) ([]domain.Recipient, error)
	GetUnprocessedInbound(limit int) ([]domain.Message, error)
	GetUnsentOutbound(limit int) ([]domain.Message, error)

	// Ingress stores an inbound message. Idempotent on the transport id;
	// the second return is false when the message was already known.
	Ingress(domain.RawMessage) (*domain.Message, bool, error)
	// EnqueueOutbound stores an outbound message for the mail pump to pick
	// up. Recipients are created in queued state.
	EnqueueOutbound(*domain.Message, []domain.Recipient) error
	SetProcessed(int64, time.Time) error
	UpdateRecipient(*domain.Recipient) error
}

type messageService struct {
	logger            zerolog.Logger
	db                config.PgxIface
	messageRepository repository.MessageRepository
}

func NewMessageService(db config.PgxIface, logger *zerolog.Logger) MessageService {
	return &messageService{
		logger:            logger.With().Str("component", "MessageService").Logger(),
		db:                db,
		messageRepository: persistence.NewMessageRepository(db),
	}
}

func (self *messageService) WithQuerier(querier config.PgxIface) MessageService {
	return &messageService{
		logger:            self.logger,
		db:                querier,
		messageRepository: self.messageRepository.WithQuerier(querier),
	}
}

func (self *messageService) GetById(id int64) (message *domain.Message, err error) {
	message, err = self.messageRepository.GetById(id)
	err = errors.WithMessagef(err, "Could not select Message %d", id)
	return
}

func (self *messageService) GetRecipients(messageId int64) (recipients []domain.Recipient, err error) {
	recipients, err = self.messageRepository.GetRecipients(messageId)
	err = errors.WithMessagef(err, "Could not select Recipients of Message %d", messageId)
	return
}

func (self *messageService) GetUnprocessedInbound(limit int) (messages []domain.Message, err error) {
	messages, err = self.messageRepository.GetUnprocessedInbound(limit)
	err = errors.WithMessage(err, "Could not select unprocessed inbound Messages")
	return
}

func (self *messageService) GetUnsentOutbound(limit int) (messages []domain.Message, err error) {
	messages, err = self.messageRepository.GetUnsentOutbound(limit)
	err = errors.WithMessage(err, "Could not select unsent outbound Messages")
	return
}

func (self *messageService) Ingress(raw domain.RawMessage) (*domain.Message, bool, error) {
	if existing, err := self.messageRepository.GetByTransportId(raw.TransportID); err == nil {
		self.logger.Debug().Str("transport-id", raw.TransportID).Msg("Message already ingressed")
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, errors.WithMessagef(err, "Could not look up Message by transport id %q", raw.TransportID)
	}

	message := &domain.Message{
		Direction:   domain.MessageInbound,
		TransportID: raw.TransportID,
		FromName:    raw.FromName,
		FromMail:    raw.FromMail,
		Subject:     raw.Subject,
		Text:        raw.Text,
		HTML:        raw.HTML,
		Headers:     raw.Headers,
	}

	recipients := make([]domain.Recipient, 0, len(raw.To)+len(raw.Cc))
	for _, mail := range raw.To {
		recipients = append(recipients, domain.Recipient{
			Mail:   mail,
			Type:   domain.RecipientTo,
			Status: domain.RecipientStatusInbound,
		})
	}
	for _, mail := range raw.Cc {
		recipients = append(recipients, domain.Recipient{
			Mail:   mail,
			Type:   domain.RecipientCc,
			Status: domain.RecipientStatusInbound,
		})
	}

	if err := self.messageRepository.Save(message, recipients); err != nil {
		return nil, false, errors.WithMessagef(err, "Could not insert inbound Message %q", raw.TransportID)
	}

	self.logger.Info().Int64("message", message.ID).Str("from", message.FromMail).Msg("Ingressed message")
	return message, true, nil
}

func (self *messageService) EnqueueOutbound(message *domain.Message, recipients []domain.Recipient) error {
	message.Direction = domain.MessageOutbound
	if message.TransportID == "" {
		id := uuid.New()
		message.TransportID = id.String()
		if message.Headers == nil {
			message.Headers = map[string]string{}
		}
		if _, ok := message.Headers["Message-ID"]; !ok {
			mailDomain := "localhost"
			if at := strings.LastIndex(message.FromMail, "@"); at >= 0 {
				mailDomain = message.FromMail[at+1:]
			}
			message.Headers["Message-ID"] = fmt.Sprintf("<%s@%s>", id, mailDomain)
		}
	}
	for i := range recipients {
		recipients[i].Status = domain.RecipientStatusQueued
	}
	if err := self.messageRepository.Save(message, recipients); err != nil {
		return errors.WithMessage(err, "Could not insert outbound Message")
	}
	self.logger.Debug().Int64("message", message.ID).Str("subject", message.Subject).Msg("Enqueued outbound message")
	return nil
}

func (self *messageService) SetProcessed(id int64, at time.Time) error {
	return errors.WithMessagef(
		self.messageRepository.SetProcessed(id, at),
		"Could not mark Message %d processed", id,
	)
}

func (self *messageService) UpdateRecipient(recipient *domain.Recipient) error {
	return errors.WithMessagef(
		self.messageRepository.UpdateRecipient(recipient),
		"Could not update Recipient %d", recipient.ID,
	)
}
