package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chcemvediet/portal/src/domain"
)

var inforequestColumns = []string{
	"id", "applicant_id",
	"applicant_name", "applicant_street", "applicant_city", "applicant_zip", "applicant_email",
	"unique_email", "subject", "content", "submission_date", "closed",
	"last_undecided_email_reminder",
}

func inforequestRow(mock pgxmock.PgxConnIface, inforequest domain.Inforequest) *pgxmock.Rows {
	return mock.NewRows(inforequestColumns).AddRow(
		inforequest.ID, inforequest.ApplicantID,
		inforequest.ApplicantName, inforequest.ApplicantStreet, inforequest.ApplicantCity,
		inforequest.ApplicantZip, inforequest.ApplicantEmail,
		inforequest.UniqueEmail, inforequest.Subject, inforequest.Content,
		inforequest.SubmissionDate, inforequest.Closed,
		inforequest.LastUndecidedEmailReminder,
	)
}

func TestShouldGetInforequestById(t *testing.T) {
	t.Parallel()
	inforequest := domain.Inforequest{
		ID:             17,
		ApplicantID:    3,
		ApplicantEmail: "applicant@example.com",
		UniqueEmail:    "lama@mail.chcemvediet.sk",
		Subject:        "Info o zmluvách",
		Content:        "Prosím o kópie zmlúv.",
		SubmissionDate: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
	}

	// given
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer mock.Close(context.Background())
	mock.ExpectQuery("SELECT (.+) FROM inforequest WHERE id").
		WithArgs(inforequest.ID).
		WillReturnRows(inforequestRow(mock, inforequest))
	repository := NewInforequestRepository(mock)

	// when
	got, err := repository.GetById(inforequest.ID)

	// then
	assert.Nil(t, err)
	assert.Equal(t, &inforequest, got)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestShouldMapMissingInforequestToNotFound(t *testing.T) {
	t.Parallel()

	// given
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer mock.Close(context.Background())
	mock.ExpectQuery("SELECT (.+) FROM inforequest WHERE id").
		WithArgs(int64(9000)).
		WillReturnRows(mock.NewRows(inforequestColumns))
	repository := NewInforequestRepository(mock)

	// when
	got, err := repository.GetById(9000)

	// then
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShouldGetInforequestsByUniqueEmails(t *testing.T) {
	t.Parallel()
	inforequest := domain.Inforequest{
		ID:          17,
		UniqueEmail: "lama@mail.chcemvediet.sk",
	}
	emails := []string{"lama@mail.chcemvediet.sk", "unrelated@example.com"}

	// given
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer mock.Close(context.Background())
	mock.ExpectQuery("SELECT (.+) FROM inforequest WHERE unique_email = ANY").
		WithArgs(emails).
		WillReturnRows(inforequestRow(mock, inforequest))
	repository := NewInforequestRepository(mock)

	// when
	got, err := repository.GetByUniqueEmails(emails)

	// then
	assert.Nil(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inforequest, got[0])
}

func TestShouldSaveInforequest(t *testing.T) {
	t.Parallel()
	inforequest := domain.Inforequest{
		ApplicantID:    3,
		ApplicantName:  "Jana Nováková",
		ApplicantEmail: "applicant@example.com",
		UniqueEmail:    "lama@mail.chcemvediet.sk",
		Subject:        "Info o zmluvách",
		Content:        "Prosím o kópie zmlúv.",
		SubmissionDate: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
	}

	// given
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer mock.Close(context.Background())
	mock.ExpectQuery("INSERT INTO inforequest").
		WithArgs(
			inforequest.ApplicantID,
			inforequest.ApplicantName, inforequest.ApplicantStreet, inforequest.ApplicantCity, inforequest.ApplicantZip,
			inforequest.ApplicantEmail,
			inforequest.UniqueEmail, inforequest.Subject, inforequest.Content, inforequest.SubmissionDate,
		).
		WillReturnRows(mock.NewRows([]string{"id", "closed"}).AddRow(int64(17), false))
	repository := NewInforequestRepository(mock)

	// when
	err = repository.Save(&inforequest)

	// then
	assert.Nil(t, err)
	assert.Equal(t, int64(17), inforequest.ID)
	assert.False(t, inforequest.Closed)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestShouldSetInforequestClosed(t *testing.T) {
	t.Parallel()

	// given
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer mock.Close(context.Background())
	mock.ExpectExec("UPDATE inforequest SET closed").
		WithArgs(int64(17)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	repository := NewInforequestRepository(mock)

	// when
	err = repository.SetClosed(17)

	// then
	assert.Nil(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestShouldGetOpenWithUndecided(t *testing.T) {
	t.Parallel()
	inforequest := domain.Inforequest{ID: 17, UniqueEmail: "lama@mail.chcemvediet.sk"}

	// given
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer mock.Close(context.Background())
	mock.ExpectQuery("SELECT inforequest.(.+) FROM inforequest").
		WithArgs(domain.LinkInboundUndecided).
		WillReturnRows(inforequestRow(mock, inforequest))
	repository := NewInforequestRepository(mock)

	// when
	got, err := repository.GetOpenWithUndecided()

	// then
	assert.Nil(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inforequest.ID, got[0].ID)
}
