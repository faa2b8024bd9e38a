package repository

import (
	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

type InforequestEmailRepository interface {
	WithQuerier(config.PgxIface) InforequestEmailRepository

	GetById(int64) (*domain.InforequestEmail, error)
	GetByInforequestId(int64) ([]domain.InforequestEmail, error)
	// GetInboundByEmailId returns the single inbound link of a message, or
	// nil when the message has none yet.
	GetInboundByEmailId(int64) (*domain.InforequestEmail, error)
	GetUndecidedByInforequestId(int64) ([]domain.InforequestEmail, error)
	Save(*domain.InforequestEmail) error
	SetType(int64, domain.LinkType) error
}
