package repository

import (
	"time"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

type InforequestRepository interface {
	WithQuerier(config.PgxIface) InforequestRepository

	GetById(int64) (*domain.Inforequest, error)
	// LockById takes a row lock on the inforequest, serializing all writers
	// that touch its branches, actions or email links.
	LockById(int64) (*domain.Inforequest, error)
	GetByUniqueEmail(string) (*domain.Inforequest, error)
	// GetByUniqueEmails returns every inforequest whose unique address is in
	// the given list. Used by correlation; more than one hit is an
	// integrity problem the caller has to deal with.
	GetByUniqueEmails([]string) ([]domain.Inforequest, error)
	GetByApplicantId(int64, *Page) ([]domain.Inforequest, error)
	GetAll(*Page) ([]domain.Inforequest, error)
	GetOpen() ([]domain.Inforequest, error)
	// GetOpenWithUndecided returns open inforequests that have at least one
	// undecided inbound email link.
	GetOpenWithUndecided() ([]domain.Inforequest, error)
	Save(*domain.Inforequest) error
	SetClosed(int64) error
	// SetLastUndecidedEmailReminder records when the applicant was last
	// reminded of undecided mail; nil clears it so fresh mail reminds again.
	SetLastUndecidedEmailReminder(int64, *time.Time) error
}
