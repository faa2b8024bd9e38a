package component

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/application"
	"github.com/chcemvediet/portal/src/application/service"
	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

// MailPump moves mail between the transport and the database in both
// directions. Inbound mail is ingressed and correlated; queued outbound
// mail is handed to the transport. Work is done in batches so one broken
// message never wedges the whole queue.
type MailPump struct {
	Logger             zerolog.Logger
	Db                 config.PgxIface
	Transport          application.MailTransport
	MessageService     service.MessageService
	CorrelationService service.CorrelationService
	Metrics            *config.Metrics

	Interval  time.Duration
	BatchSize int
}

func (self *MailPump) Start(ctx context.Context) error {
	self.Logger.Info().Dur("interval", self.Interval).Msg("Starting")

	ticker := time.NewTicker(self.Interval)
	defer ticker.Stop()
	for {
		self.pump(ctx)
		select {
		case <-ctx.Done():
			self.Logger.Debug().Msg("context was cancelled")
			return nil
		case <-ticker.C:
		}
	}
}

func (self *MailPump) pump(ctx context.Context) {
	if err := self.fetchInbound(ctx); err != nil {
		self.Logger.Err(err).Msg("Could not fetch inbound mail")
	}
	if err := self.correlateInbound(ctx); err != nil {
		self.Logger.Err(err).Msg("Could not correlate inbound mail")
	}
	if err := self.sendOutbound(ctx); err != nil {
		self.Logger.Err(err).Msg("Could not send outbound mail")
	}
}

func (self *MailPump) fetchInbound(ctx context.Context) error {
	raws, err := self.Transport.GetMessages()
	if err != nil {
		return err
	}

	for _, raw := range raws {
		if err := pgx.BeginFunc(ctx, self.Db, func(tx pgx.Tx) error {
			_, fresh, err := self.MessageService.WithQuerier(tx).Ingress(raw)
			if fresh && self.Metrics != nil {
				self.Metrics.MessagesInbound.Inc()
			}
			return err
		}); err != nil {
			self.Logger.Err(err).Str("transport-id", raw.TransportID).Msg("Could not ingress message")
		}
	}
	return nil
}

// correlateInbound picks up every stored inbound message that is not
// processed yet, including ones left over from an earlier failed run.
func (self *MailPump) correlateInbound(ctx context.Context) error {
	messages, err := self.MessageService.GetUnprocessedInbound(self.BatchSize)
	if err != nil {
		return err
	}

	for i := range messages {
		message := &messages[i]
		if err := pgx.BeginFunc(ctx, self.Db, func(tx pgx.Tx) error {
			return self.CorrelationService.WithQuerier(tx).Correlate(message)
		}); err != nil {
			self.Logger.Err(err).Int64("message", message.ID).Msg("Could not correlate message")
		}
	}
	return nil
}

func (self *MailPump) sendOutbound(ctx context.Context) error {
	messages, err := self.MessageService.GetUnsentOutbound(self.BatchSize)
	if err != nil {
		return err
	}

	for i := range messages {
		if err := self.sendOne(ctx, &messages[i]); err != nil {
			self.Logger.Err(err).Int64("message", messages[i].ID).Msg("Could not send message")
		}
	}
	return nil
}

func (self *MailPump) sendOne(ctx context.Context, message *domain.Message) error {
	recipients, err := self.MessageService.GetRecipients(message.ID)
	if err != nil {
		return err
	}

	if err := self.Transport.SendMessage(message, recipients); err != nil {
		return errors.WithMessagef(err, "While sending Message %d", message.ID)
	}

	if err := pgx.BeginFunc(ctx, self.Db, func(tx pgx.Tx) error {
		scoped := self.MessageService.WithQuerier(tx)
		for i := range recipients {
			if err := scoped.UpdateRecipient(&recipients[i]); err != nil {
				return err
			}
		}
		return scoped.SetProcessed(message.ID, time.Now())
	}); err != nil {
		return err
	}

	if self.Metrics != nil {
		self.Metrics.MessagesOutbound.Inc()
	}
	self.Logger.Debug().Int64("message", message.ID).Msg("Sent message")
	return nil
}
