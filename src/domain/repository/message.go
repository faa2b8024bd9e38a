package repository

import (
	"time"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

type MessageRepository interface {
	WithQuerier(config.PgxIface) MessageRepository

	GetById(int64) (*domain.Message, error)
	GetByTransportId(string) (*domain.Message, error)
	// GetUnprocessedInbound and GetUnsentOutbound feed the mail pump; both
	// return oldest first, at most limit rows.
	GetUnprocessedInbound(limit int) ([]domain.Message, error)
	GetUnsentOutbound(limit int) ([]domain.Message, error)
	GetRecipients(messageId int64) ([]domain.Recipient, error)
	Save(*domain.Message, []domain.Recipient) error
	SetProcessed(int64, time.Time) error
	UpdateRecipient(*domain.Recipient) error
}
