package component

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chcemvediet/portal/src/application/service"
	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/workdays"
)

func testEngine(now time.Time) *config.Engine {
	calendar := workdays.NewCalendar(time.UTC, workdays.SlovakHolidays()).
		WithNow(func() time.Time { return now })
	return &config.Engine{
		MailDomain:              "mail.chcemvediet.sk",
		DeadlineDays:            domain.DefaultDeadlineDays(),
		MaxExtensions:           1,
		ReminderPeriodUndecided: 5,
		ReminderPeriodDeadline:  3,
		ApplicantReminderLead:   2,
		CloseQuietPeriod:        100,
		Calendar:                calendar,
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// fakeInforequestService implements only what the scheduler touches; the
// embedded interface panics on anything else.
type fakeInforequestService struct {
	service.InforequestService

	open          []domain.Inforequest
	openUndecided []domain.Inforequest
	links         map[int64][]domain.InforequestEmail
	details       map[int64]*service.InforequestDetail

	undecidedReminded []int64
	deadlineReminded  []int64
	closedQuiet       []int64
}

func (self *fakeInforequestService) GetOpen() ([]domain.Inforequest, error) {
	return self.open, nil
}

func (self *fakeInforequestService) GetOpenWithUndecided() ([]domain.Inforequest, error) {
	return self.openUndecided, nil
}

func (self *fakeInforequestService) UndecidedLinks(inforequestId int64) ([]domain.InforequestEmail, error) {
	return self.links[inforequestId], nil
}

func (self *fakeInforequestService) Detail(inforequestId int64) (*service.InforequestDetail, error) {
	return self.details[inforequestId], nil
}

func (self *fakeInforequestService) MarkUndecidedReminded(inforequestId int64, at time.Time) error {
	self.undecidedReminded = append(self.undecidedReminded, inforequestId)
	return nil
}

func (self *fakeInforequestService) MarkDeadlineReminded(actionId int64, at time.Time) error {
	self.deadlineReminded = append(self.deadlineReminded, actionId)
	return nil
}

func (self *fakeInforequestService) CloseQuiet(inforequestId int64) error {
	self.closedQuiet = append(self.closedQuiet, inforequestId)
	return nil
}

type fakeMessageService struct {
	service.MessageService

	messages map[int64]*domain.Message
}

func (self *fakeMessageService) GetById(id int64) (*domain.Message, error) {
	return self.messages[id], nil
}

type fakeNotificationService struct {
	service.NotificationService

	undecided         int
	applicantDeadline int
	obligeeDeadline   int
}

func (self *fakeNotificationService) RemindUndecided(*domain.Inforequest, int) error {
	self.undecided += 1
	return nil
}

func (self *fakeNotificationService) RemindApplicantDeadline(*domain.Inforequest, *domain.Deadline, int) error {
	self.applicantDeadline += 1
	return nil
}

func (self *fakeNotificationService) RemindObligeeDeadline(*domain.Inforequest, *domain.Deadline) error {
	self.obligeeDeadline += 1
	return nil
}

func testScheduler(engine *config.Engine, inforequests *fakeInforequestService, messages *fakeMessageService, notifications *fakeNotificationService) *Scheduler {
	return &Scheduler{
		Logger:              zerolog.New(io.Discard),
		Engine:              engine,
		InforequestService:  inforequests,
		MessageService:      messages,
		NotificationService: notifications,
	}
}

func detailOf(t *testing.T, engine *config.Engine, inforequest *domain.Inforequest, actions ...*domain.Action) *service.InforequestDetail {
	branch := &domain.Branch{ID: 1, InforequestID: inforequest.ID, ObligeeID: 1, ObligeeSnapshotID: 1}
	state, err := domain.Replay(branch, actions, engine.Rules())
	require.NoError(t, err)
	return &service.InforequestDetail{
		Inforequest: inforequest,
		Branches:    []service.BranchDetail{{Branch: branch, State: state}},
	}
}

func TestUndecidedRemindersFollowCadence(t *testing.T) {
	t.Parallel()
	engine := testEngine(date(2024, time.March, 25))
	recently := date(2024, time.March, 20)
	longAgo := date(2024, time.March, 11)

	// Never reminded about its undecided mail, due right away.
	never := domain.Inforequest{ID: 1}
	// Reminded three working days ago, short of the period of five.
	recent := domain.Inforequest{ID: 2, LastUndecidedEmailReminder: &recently}
	// Reminded ten working days ago, due again.
	stale := domain.Inforequest{ID: 3, LastUndecidedEmailReminder: &longAgo}

	inforequests := &fakeInforequestService{
		openUndecided: []domain.Inforequest{never, recent, stale},
		links: map[int64][]domain.InforequestEmail{
			1: {{ID: 11, InforequestID: 1, EmailID: 101, Type: domain.LinkInboundUndecided}},
			2: {{ID: 12, InforequestID: 2, EmailID: 102, Type: domain.LinkInboundUndecided}},
			3: {{ID: 13, InforequestID: 3, EmailID: 103, Type: domain.LinkInboundUndecided}},
		},
	}
	notifications := &fakeNotificationService{}
	scheduler := testScheduler(engine, inforequests, &fakeMessageService{}, notifications)

	require.NoError(t, scheduler.undecidedReminders())

	assert.Equal(t, []int64{1, 3}, inforequests.undecidedReminded)
	assert.Equal(t, 2, notifications.undecided)
}

func TestDeadlineReminders(t *testing.T) {
	t.Parallel()
	engine := testEngine(date(2024, time.March, 20))

	// Obligee deadline from 2024-03-04 ran out on 2024-03-14; by 03-20 it
	// is overdue and has never been reminded about.
	overdue := domain.Inforequest{ID: 1}
	overdueDetail := detailOf(t, engine, &overdue,
		&domain.Action{ID: 10, Type: domain.ActionRequest, EffectiveDate: date(2024, time.March, 4)},
	)

	// Applicant deadline of seven working days from 2024-03-11 has none
	// left on 03-20, which is within the two-day lead.
	closing := domain.Inforequest{ID: 2}
	closingDetail := detailOf(t, engine, &closing,
		&domain.Action{ID: 20, Type: domain.ActionRequest, EffectiveDate: date(2024, time.March, 4)},
		&domain.Action{ID: 21, Type: domain.ActionClarificationRequest, EffectiveDate: date(2024, time.March, 11)},
	)

	inforequests := &fakeInforequestService{
		open: []domain.Inforequest{overdue, closing},
		details: map[int64]*service.InforequestDetail{
			1: overdueDetail,
			2: closingDetail,
		},
	}
	notifications := &fakeNotificationService{}
	scheduler := testScheduler(engine, inforequests, &fakeMessageService{}, notifications)

	require.NoError(t, scheduler.deadlineReminders())

	assert.Equal(t, 1, notifications.obligeeDeadline)
	assert.Equal(t, 1, notifications.applicantDeadline)
	assert.ElementsMatch(t, []int64{10, 21}, inforequests.deadlineReminded)

	// A reminder sent one working day ago suppresses the next pass.
	recently := date(2024, time.March, 19)
	stampReminders(inforequests, inforequests.deadlineReminded, &recently)
	require.NoError(t, scheduler.deadlineReminders())
	assert.Equal(t, 1, notifications.obligeeDeadline)
	assert.Equal(t, 1, notifications.applicantDeadline)

	// One sent five working days ago is past the period of three, so both
	// deadlines get reminded about again.
	longAgo := date(2024, time.March, 13)
	stampReminders(inforequests, []int64{10, 21}, &longAgo)
	require.NoError(t, scheduler.deadlineReminders())
	assert.Equal(t, 2, notifications.obligeeDeadline)
	assert.Equal(t, 2, notifications.applicantDeadline)
}

func stampReminders(inforequests *fakeInforequestService, ids []int64, at *time.Time) {
	for _, id := range ids {
		for _, detail := range inforequests.details {
			for _, branch := range detail.Branches {
				for _, action := range branch.State.Actions {
					if action.ID == id {
						action.LastDeadlineReminder = at
					}
				}
			}
		}
	}
}

func TestObligeeDeadlineReminderFiresOnceOverdue(t *testing.T) {
	t.Parallel()
	// Deadline from 2024-03-04 runs out on 2024-03-14.
	request := func() *domain.Action {
		return &domain.Action{ID: 10, Type: domain.ActionRequest, EffectiveDate: date(2024, time.March, 4)}
	}

	// No reminder while the deadline still has days left.
	engine := testEngine(date(2024, time.March, 14))
	inforequest := domain.Inforequest{ID: 1}
	inforequests := &fakeInforequestService{
		open:    []domain.Inforequest{inforequest},
		details: map[int64]*service.InforequestDetail{1: detailOf(t, engine, &inforequest, request())},
	}
	notifications := &fakeNotificationService{}
	scheduler := testScheduler(engine, inforequests, &fakeMessageService{}, notifications)
	require.NoError(t, scheduler.deadlineReminders())
	assert.Equal(t, 0, notifications.obligeeDeadline)
	assert.Empty(t, inforequests.deadlineReminded)

	// Two working days overdue on 2024-03-18, never reminded about, fires.
	engine = testEngine(date(2024, time.March, 18))
	inforequests = &fakeInforequestService{
		open:    []domain.Inforequest{inforequest},
		details: map[int64]*service.InforequestDetail{1: detailOf(t, engine, &inforequest, request())},
	}
	notifications = &fakeNotificationService{}
	scheduler = testScheduler(engine, inforequests, &fakeMessageService{}, notifications)
	require.NoError(t, scheduler.deadlineReminders())
	assert.Equal(t, 1, notifications.obligeeDeadline)
	assert.Equal(t, []int64{10}, inforequests.deadlineReminded)
}

func TestCloseQuietAfterQuietPeriod(t *testing.T) {
	t.Parallel()
	engine := testEngine(date(2024, time.March, 25))

	quiet := domain.Inforequest{ID: 1}
	quietDetail := detailOf(t, engine, &quiet,
		&domain.Action{ID: 10, Type: domain.ActionRequest, EffectiveDate: date(2023, time.October, 2)},
	)
	active := domain.Inforequest{ID: 2}
	activeDetail := detailOf(t, engine, &active,
		&domain.Action{ID: 20, Type: domain.ActionRequest, EffectiveDate: date(2024, time.March, 4)},
	)

	inforequests := &fakeInforequestService{
		open: []domain.Inforequest{quiet, active},
		details: map[int64]*service.InforequestDetail{
			1: quietDetail,
			2: activeDetail,
		},
	}
	scheduler := testScheduler(engine, inforequests, &fakeMessageService{}, &fakeNotificationService{})

	require.NoError(t, scheduler.closeQuiet())

	assert.Equal(t, []int64{1}, inforequests.closedQuiet)
}

func TestCloseQuietCountsUndecidedMailAsActivity(t *testing.T) {
	t.Parallel()
	engine := testEngine(date(2024, time.March, 25))

	inforequest := domain.Inforequest{ID: 1}
	detail := detailOf(t, engine, &inforequest,
		&domain.Action{ID: 10, Type: domain.ActionRequest, EffectiveDate: date(2023, time.October, 2)},
	)

	inforequests := &fakeInforequestService{
		open:    []domain.Inforequest{inforequest},
		details: map[int64]*service.InforequestDetail{1: detail},
		links: map[int64][]domain.InforequestEmail{
			1: {{ID: 11, InforequestID: 1, EmailID: 101, Type: domain.LinkInboundUndecided}},
		},
	}
	messages := &fakeMessageService{messages: map[int64]*domain.Message{
		101: {ID: 101, CreatedAt: date(2024, time.March, 14)},
	}}
	scheduler := testScheduler(engine, inforequests, messages, &fakeNotificationService{})

	require.NoError(t, scheduler.closeQuiet())

	assert.Empty(t, inforequests.closedQuiet)
}
