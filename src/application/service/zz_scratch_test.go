package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

func TestZZScratchSubmitActionDraftInner(t *testing.T) {
	now := time.Now().UTC()
	requested := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	closing := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	metrics := config.NewMetrics()

	db, err := pgxmock.NewConn()
	require.NoError(t, err)
	defer db.Close(context.Background())
	db.ExpectBegin()
	db.ExpectQuery("SELECT (.+) FROM action_draft WHERE id").
		WithArgs(int64(40)).
		WillReturnRows(db.NewRows(actionDraftColumns).AddRow(
			int64(40), int64(9), int64(3), domain.ActionApplicantClose,
			"Uzatváram žiadosť", "Ďakujem, informácie už nepotrebujem.", closing,
		))
	db.ExpectQuery("SELECT (.+) FROM inforequest WHERE id").
		WithArgs(int64(9)).
		WillReturnRows(db.NewRows(inforequestColumns).AddRow(
			int64(9), int64(1),
			"Ján Novák", "Hlavná 1", "Bratislava", "811 01", "jan.novak@example.com",
			"prieva@mail.chcemvediet.sk", "Info o zmluvách", "Žiadam o sprístupnenie", requested, false,
			nil,
		))
	db.ExpectQuery("SELECT (.+) FROM branch WHERE id").
		WithArgs(int64(3)).
		WillReturnRows(db.NewRows(branchColumns).AddRow(
			int64(3), int64(9), int64(21), int64(31), nil,
		))
	db.ExpectQuery("SELECT (.+) FROM action WHERE branch_id").
		WithArgs(int64(3)).
		WillReturnRows(db.NewRows(actionColumns).AddRow(
			int64(10), int64(3), domain.ActionRequest, nil,
			"Info o zmluvách", "Žiadam o sprístupnenie", domain.ContentTypePlain,
			requested, "", 8, nil, nil, nil, nil, now,
		))
	db.ExpectQuery("INSERT INTO action").
		WithArgs(
			int64(3), domain.ActionApplicantClose, pgxmock.AnyArg(),
			"Uzatváram žiadosť", "Ďakujem, informácie už nepotrebujem.", domain.ContentTypePlain,
			closing, "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnRows(db.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))
	db.ExpectExec("DELETE FROM action_draft").
		WithArgs(int64(40)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	db.ExpectCommit()

	logger := zerolog.New(io.Discard)
	base := NewInforequestService(db, testInforequestEngine(closing), metrics, &logger).(*inforequestService)

	tx, err := db.Begin(context.Background())
	require.NoError(t, err)
	scoped := base.WithQuerier(tx).(*inforequestService)

	draft, err := scoped.draftRepository.GetActionDraftById(40)
	if err != nil {
		t.Fatalf("GetActionDraftById: %+v", err)
	}
	t.Logf("draft: %+v", draft)
	if draft.BranchID == nil {
		t.Fatalf("draft.BranchID is nil")
	}

	action := &domain.Action{
		Type:        draft.Type,
		Subject:     draft.Subject,
		Content:     draft.Content,
		ContentType: domain.ContentTypePlain,
	}
	if draft.EffectiveDate != nil {
		action.EffectiveDate = *draft.EffectiveDate
	}
	if err := scoped.appendApplicant(draft.InforequestID, *draft.BranchID, action); err != nil {
		t.Fatalf("appendApplicant: %+v", err)
	}
	if err := scoped.draftRepository.DeleteActionDraft(40); err != nil {
		t.Fatalf("DeleteActionDraft: %+v", err)
	}
	require.NoError(t, tx.Commit(context.Background()))
}
