package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

type fakeInforequestService struct {
	InforequestService
}

type fakeNotificationService struct {
	NotificationService

	receivedEmails int
}

func (self *fakeNotificationService) NotifyReceivedEmail(*domain.Inforequest, *domain.Message) error {
	self.receivedEmails++
	return nil
}

var recipientColumns = []string{"id", "message_id", "name", "mail", "type", "status", "remote_id"}

var inforequestColumns = []string{
	"id", "applicant_id",
	"applicant_name", "applicant_street", "applicant_city", "applicant_zip", "applicant_email",
	"unique_email", "subject", "content", "submission_date", "closed",
	"last_undecided_email_reminder",
}

var linkColumns = []string{"id", "inforequest_id", "email_id", "type"}

func testCorrelationService(db config.PgxIface, notifications *fakeNotificationService) CorrelationService {
	logger := zerolog.New(io.Discard)
	return NewCorrelationService(db, &config.Engine{}, &fakeInforequestService{}, notifications, &logger)
}

func TestCorrelateUnmatchedMessageLeftUnlinked(t *testing.T) {
	t.Parallel()

	// given
	db, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer db.Close(context.Background())
	db.ExpectQuery("SELECT (.+) FROM recipient WHERE message_id").
		WithArgs(int64(5)).
		WillReturnRows(db.NewRows(recipientColumns).AddRow(
			int64(31), int64(5), "", "prieva@mail.chcemvediet.sk", domain.RecipientTo, domain.RecipientStatusInbound, "",
		))
	db.ExpectQuery("SELECT (.+) FROM inforequest WHERE unique_email").
		WithArgs([]string{"prieva@mail.chcemvediet.sk"}).
		WillReturnRows(db.NewRows(inforequestColumns))
	db.ExpectExec("UPDATE message SET processed").
		WithArgs(int64(5), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	notifications := &fakeNotificationService{}
	correlationService := testCorrelationService(db, notifications)

	// when
	err = correlationService.Correlate(&domain.Message{ID: 5, FromMail: "obec@example.com"})

	// then
	assert.Nil(t, err)
	assert.Equal(t, 0, notifications.receivedEmails)
	assert.Nil(t, db.ExpectationsWereMet())
}

func TestCorrelateLinksSingleMatchAsUndecided(t *testing.T) {
	t.Parallel()
	submitted := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	// given
	db, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer db.Close(context.Background())
	db.ExpectQuery("SELECT (.+) FROM recipient WHERE message_id").
		WithArgs(int64(5)).
		WillReturnRows(db.NewRows(recipientColumns).AddRow(
			int64(31), int64(5), "", "prieva@mail.chcemvediet.sk", domain.RecipientTo, domain.RecipientStatusInbound, "",
		))
	db.ExpectQuery("SELECT (.+) FROM inforequest WHERE unique_email").
		WithArgs([]string{"prieva@mail.chcemvediet.sk"}).
		WillReturnRows(db.NewRows(inforequestColumns).AddRow(
			int64(9), int64(1),
			"Ján Novák", "Hlavná 1", "Bratislava", "811 01", "jan.novak@example.com",
			"prieva@mail.chcemvediet.sk", "Info o zmluvách", "Žiadam o sprístupnenie", submitted, false,
			nil,
		))
	db.ExpectQuery("SELECT (.+) FROM inforequest_email").
		WithArgs(int64(5), domain.LinkInboundObligee, domain.LinkInboundUndecided,
			domain.LinkInboundUnrelated, domain.LinkInboundUnknown).
		WillReturnRows(db.NewRows(linkColumns))
	db.ExpectQuery("INSERT INTO inforequest_email").
		WithArgs(int64(9), int64(5), domain.LinkInboundUndecided).
		WillReturnRows(db.NewRows([]string{"id"}).AddRow(int64(71)))
	db.ExpectExec("UPDATE inforequest SET last_undecided_email_reminder").
		WithArgs(int64(9), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	db.ExpectExec("UPDATE message SET processed").
		WithArgs(int64(5), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	notifications := &fakeNotificationService{}
	correlationService := testCorrelationService(db, notifications)

	// when
	err = correlationService.Correlate(&domain.Message{ID: 5, FromMail: "obec@example.com"})

	// then
	assert.Nil(t, err)
	assert.Equal(t, 1, notifications.receivedEmails)
	assert.Nil(t, db.ExpectationsWereMet())
}

func TestCorrelateSkipsAlreadyLinkedMessage(t *testing.T) {
	t.Parallel()
	submitted := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	// given
	db, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer db.Close(context.Background())
	db.ExpectQuery("SELECT (.+) FROM recipient WHERE message_id").
		WithArgs(int64(5)).
		WillReturnRows(db.NewRows(recipientColumns).AddRow(
			int64(31), int64(5), "", "prieva@mail.chcemvediet.sk", domain.RecipientTo, domain.RecipientStatusInbound, "",
		))
	db.ExpectQuery("SELECT (.+) FROM inforequest WHERE unique_email").
		WithArgs([]string{"prieva@mail.chcemvediet.sk"}).
		WillReturnRows(db.NewRows(inforequestColumns).AddRow(
			int64(9), int64(1),
			"Ján Novák", "Hlavná 1", "Bratislava", "811 01", "jan.novak@example.com",
			"prieva@mail.chcemvediet.sk", "Info o zmluvách", "Žiadam o sprístupnenie", submitted, false,
			nil,
		))
	db.ExpectQuery("SELECT (.+) FROM inforequest_email").
		WithArgs(int64(5), domain.LinkInboundObligee, domain.LinkInboundUndecided,
			domain.LinkInboundUnrelated, domain.LinkInboundUnknown).
		WillReturnRows(db.NewRows(linkColumns).AddRow(
			int64(71), int64(9), int64(5), domain.LinkInboundUndecided,
		))
	db.ExpectExec("UPDATE message SET processed").
		WithArgs(int64(5), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	notifications := &fakeNotificationService{}
	correlationService := testCorrelationService(db, notifications)

	// when
	err = correlationService.Correlate(&domain.Message{ID: 5, FromMail: "obec@example.com"})

	// then
	assert.Nil(t, err)
	assert.Equal(t, 0, notifications.receivedEmails)
	assert.Nil(t, db.ExpectationsWereMet())
}

func TestDecideObligeeActionRejectsReusedMessage(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	received := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)

	// given
	db, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer db.Close(context.Background())
	db.ExpectBegin()
	db.ExpectQuery("SELECT (.+) FROM inforequest_email WHERE id").
		WithArgs(int64(71)).
		WillReturnRows(db.NewRows(linkColumns).AddRow(
			int64(71), int64(9), int64(5), domain.LinkInboundUndecided,
		))
	db.ExpectQuery("SELECT (.+) FROM message WHERE id").
		WithArgs(int64(5)).
		WillReturnRows(db.NewRows(messageColumns).AddRow(
			int64(5), domain.MessageInbound, "abc-5", nil,
			"Obec Lama", "obec@example.com", "Potvrdenie", "Žiadosť evidujeme", "",
			map[string]string{}, now,
		))
	db.ExpectQuery("SELECT (.+) FROM action WHERE email_id").
		WithArgs(int64(5)).
		WillReturnRows(db.NewRows(actionColumns).AddRow(
			int64(77), int64(3), domain.ActionConfirmation, int64(5),
			"Potvrdenie", "Žiadosť evidujeme", domain.ContentTypePlain,
			received, "", 8, nil, nil, nil, nil, now,
		))
	db.ExpectRollback()
	correlationService := testCorrelationService(db, &fakeNotificationService{})

	// when
	err = correlationService.DecideObligeeAction(71, 3, &domain.Action{Type: domain.ActionConfirmation}, nil)

	// then
	assert.True(t, errors.Is(err, domain.ErrIntegrityError))
	assert.Nil(t, db.ExpectationsWereMet())
}

func TestCorrelateAmbiguousMatchFails(t *testing.T) {
	t.Parallel()
	submitted := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	// given
	db, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer db.Close(context.Background())
	db.ExpectQuery("SELECT (.+) FROM recipient WHERE message_id").
		WithArgs(int64(5)).
		WillReturnRows(db.NewRows(recipientColumns).AddRow(
			int64(31), int64(5), "", "prieva@mail.chcemvediet.sk", domain.RecipientTo, domain.RecipientStatusInbound, "",
		))
	db.ExpectQuery("SELECT (.+) FROM inforequest WHERE unique_email").
		WithArgs([]string{"prieva@mail.chcemvediet.sk"}).
		WillReturnRows(db.NewRows(inforequestColumns).
			AddRow(
				int64(9), int64(1),
				"Ján Novák", "Hlavná 1", "Bratislava", "811 01", "jan.novak@example.com",
				"prieva@mail.chcemvediet.sk", "Info o zmluvách", "Žiadam o sprístupnenie", submitted, false,
				nil,
			).
			AddRow(
				int64(10), int64(2),
				"Eva Malá", "Krátka 2", "Košice", "040 01", "eva.mala@example.com",
				"prieva@mail.chcemvediet.sk", "Iná žiadosť", "Žiadam o informácie", submitted, false,
				nil,
			))
	notifications := &fakeNotificationService{}
	correlationService := testCorrelationService(db, notifications)

	// when
	err = correlationService.Correlate(&domain.Message{ID: 5, FromMail: "obec@example.com"})

	// then
	assert.True(t, errors.Is(err, domain.ErrIntegrityError))
	assert.Equal(t, 0, notifications.receivedEmails)
	assert.Nil(t, db.ExpectationsWereMet())
}
