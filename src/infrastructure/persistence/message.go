package persistence

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

type messageRepository struct {
	DB config.PgxIface
}

func NewMessageRepository(db config.PgxIface) repository.MessageRepository {
	return messageRepository{db}
}

func (self messageRepository) WithQuerier(querier config.PgxIface) repository.MessageRepository {
	return messageRepository{querier}
}

func (self messageRepository) GetById(id int64) (*domain.Message, error) {
	message := domain.Message{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &message,
		`SELECT * FROM message WHERE id = $1`,
		id,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &message, nil
}

func (self messageRepository) GetByTransportId(transportId string) (*domain.Message, error) {
	message := domain.Message{}
	if err := pgxscan.Get(
		context.Background(), self.DB, &message,
		`SELECT * FROM message WHERE direction = $1 AND transport_id = $2`,
		domain.MessageInbound, transportId,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &message, nil
}

func (self messageRepository) GetUnprocessedInbound(limit int) (messages []domain.Message, err error) {
	return messages, pgxscan.Select(
		context.Background(), self.DB, &messages,
		`SELECT * FROM message
		WHERE direction = $1 AND processed IS NULL
		ORDER BY created_at, id
		LIMIT $2`,
		domain.MessageInbound, limit,
	)
}

func (self messageRepository) GetUnsentOutbound(limit int) (messages []domain.Message, err error) {
	return messages, pgxscan.Select(
		context.Background(), self.DB, &messages,
		`SELECT * FROM message
		WHERE direction = $1 AND processed IS NULL
		ORDER BY created_at, id
		LIMIT $2`,
		domain.MessageOutbound, limit,
	)
}

func (self messageRepository) GetRecipients(messageId int64) (recipients []domain.Recipient, err error) {
	return recipients, pgxscan.Select(
		context.Background(), self.DB, &recipients,
		`SELECT * FROM recipient WHERE message_id = $1 ORDER BY id`,
		messageId,
	)
}

func (self messageRepository) Save(message *domain.Message, recipients []domain.Recipient) error {
	if err := self.DB.QueryRow(
		context.Background(),
		`INSERT INTO message (
			direction, transport_id, processed, from_name, from_mail,
			subject, text, html, headers
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		message.Direction, message.TransportID, message.Processed,
		message.FromName, message.FromMail,
		message.Subject, message.Text, message.HTML, message.Headers,
	).Scan(&message.ID, &message.CreatedAt); err != nil {
		return err
	}

	for i := range recipients {
		recipients[i].MessageID = message.ID
		if err := self.DB.QueryRow(
			context.Background(),
			`INSERT INTO recipient (message_id, name, mail, type, status, remote_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			recipients[i].MessageID, recipients[i].Name, recipients[i].Mail,
			recipients[i].Type, recipients[i].Status, recipients[i].RemoteID,
		).Scan(&recipients[i].ID); err != nil {
			return err
		}
	}

	return nil
}

func (self messageRepository) SetProcessed(id int64, at time.Time) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`UPDATE message SET processed = $2 WHERE id = $1`,
		id, at,
	)
	return
}

func (self messageRepository) UpdateRecipient(recipient *domain.Recipient) (err error) {
	_, err = self.DB.Exec(
		context.Background(),
		`UPDATE recipient SET status = $2, remote_id = $3 WHERE id = $1`,
		recipient.ID, recipient.Status, recipient.RemoteID,
	)
	return
}
