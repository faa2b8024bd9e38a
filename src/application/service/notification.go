package service

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
	"github.com/chcemvediet/portal/src/infrastructure/persistence"
)

// NotificationService composes the mails the portal sends to applicants
// about their inforequests: new obligee mail, pending decisions and
// approaching or missed deadlines. Everything goes out through the
// regular outbound queue.
type NotificationService interface {
	WithQuerier(config.PgxIface) NotificationService

	NotifyReceivedEmail(*domain.Inforequest, *domain.Message) error
	RemindUndecided(*domain.Inforequest, int) error
	RemindApplicantDeadline(*domain.Inforequest, *domain.Deadline, int) error
	RemindObligeeDeadline(*domain.Inforequest, *domain.Deadline) error
}

var notificationTemplates = template.Must(template.New("notifications").Parse(`
{{define "received-subject"}}Nová pošta k žiadosti: {{.Subject}}{{end}}
{{define "received-body"}}Dobrý deň, {{.Name}},

k Vašej žiadosti "{{.Subject}}" prišla nová správa od {{.From}}.
Prosím, rozhodnite v portáli, o aký úkon ide.
{{end}}

{{define "undecided-subject"}}Nerozhodnutá pošta k žiadosti: {{.Subject}}{{end}}
{{define "undecided-body"}}Dobrý deň, {{.Name}},

k Vašej žiadosti "{{.Subject}}" čaká {{.Count}} správ na Vaše rozhodnutie.
{{end}}

{{define "applicant-deadline-subject"}}Blíži sa Vaša lehota: {{.Subject}}{{end}}
{{define "applicant-deadline-body"}}Dobrý deň, {{.Name}},

pri žiadosti "{{.Subject}}" Vám o {{.Remaining}} pracovných dní uplynie lehota na Váš úkon.
{{end}}

{{define "obligee-deadline-subject"}}Inštitúcia zmeškala lehotu: {{.Subject}}{{end}}
{{define "obligee-deadline-body"}}Dobrý deň, {{.Name}},

inštitúcii pri žiadosti "{{.Subject}}" uplynula lehota dňa {{.Deadline}}.
Môžete podať odvolanie alebo počkať na odpoveď.
{{end}}
`))

type notificationService struct {
	logger          zerolog.Logger
	engine          *config.Engine
	messageService  MessageService
	emailRepository repository.InforequestEmailRepository
}

func NewNotificationService(db config.PgxIface, engine *config.Engine, logger *zerolog.Logger) NotificationService {
	return &notificationService{
		logger:          logger.With().Str("component", "NotificationService").Logger(),
		engine:          engine,
		messageService:  NewMessageService(db, logger),
		emailRepository: persistence.NewInforequestEmailRepository(db),
	}
}

func (self *notificationService) WithQuerier(querier config.PgxIface) NotificationService {
	return &notificationService{
		logger:          self.logger,
		engine:          self.engine,
		messageService:  self.messageService.WithQuerier(querier),
		emailRepository: self.emailRepository.WithQuerier(querier),
	}
}

func (self *notificationService) NotifyReceivedEmail(inforequest *domain.Inforequest, message *domain.Message) error {
	return self.send(inforequest, "received", map[string]interface{}{
		"Name":    inforequest.ApplicantName,
		"Subject": inforequest.Subject,
		"From":    message.FromMail,
	})
}

func (self *notificationService) RemindUndecided(inforequest *domain.Inforequest, count int) error {
	return self.send(inforequest, "undecided", map[string]interface{}{
		"Name":    inforequest.ApplicantName,
		"Subject": inforequest.Subject,
		"Count":   count,
	})
}

func (self *notificationService) RemindApplicantDeadline(inforequest *domain.Inforequest, deadline *domain.Deadline, remaining int) error {
	return self.send(inforequest, "applicant-deadline", map[string]interface{}{
		"Name":      inforequest.ApplicantName,
		"Subject":   inforequest.Subject,
		"Remaining": remaining,
	})
}

func (self *notificationService) RemindObligeeDeadline(inforequest *domain.Inforequest, deadline *domain.Deadline) error {
	date, err := deadline.Date(self.engine.Calendar)
	if err != nil {
		return errors.WithMessage(err, "Could not compute deadline date")
	}
	return self.send(inforequest, "obligee-deadline", map[string]interface{}{
		"Name":     inforequest.ApplicantName,
		"Subject":  inforequest.Subject,
		"Deadline": date.Format("02.01.2006"),
	})
}

func (self *notificationService) send(inforequest *domain.Inforequest, kind string, data map[string]interface{}) error {
	subject, err := self.render(kind+"-subject", data)
	if err != nil {
		return err
	}
	body, err := self.render(kind+"-body", data)
	if err != nil {
		return err
	}

	message := &domain.Message{
		FromName: "Chcem vedieť",
		FromMail: "info@" + self.engine.MailDomain,
		Subject:  subject,
		Text:     body,
	}
	recipients := []domain.Recipient{{
		Name: inforequest.ApplicantName,
		Mail: inforequest.ApplicantEmail,
		Type: domain.RecipientTo,
	}}

	if err := self.messageService.EnqueueOutbound(message, recipients); err != nil {
		return err
	}
	if err := self.emailRepository.Save(&domain.InforequestEmail{
		InforequestID: inforequest.ID,
		EmailID:       message.ID,
		Type:          domain.LinkOutboundObligee,
	}); err != nil {
		return errors.WithMessagef(err, "Could not link notification Message %d to Inforequest %d", message.ID, inforequest.ID)
	}

	self.logger.Debug().Int64("inforequest", inforequest.ID).Str("kind", kind).Msg("Enqueued notification")
	return nil
}

func (self *notificationService) render(name string, data map[string]interface{}) (string, error) {
	builder := strings.Builder{}
	if err := notificationTemplates.ExecuteTemplate(&builder, name, data); err != nil {
		return "", errors.WithMessagef(err, "Could not render notification template %q", name)
	}
	return strings.TrimSpace(builder.String()), nil
}
