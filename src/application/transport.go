package application

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

// MailTransport is the edge between the engine and the actual mail
// service. Implementations must not touch the database; the mail pump
// owns persistence on both sides of these calls.
type MailTransport interface {
	// SendMessage hands one outbound message to the mail service and
	// updates each recipient's Status and RemoteID in place.
	SendMessage(*domain.Message, []domain.Recipient) error
	// GetMessages fetches inbound mail accumulated at the mail service
	// since the last call.
	GetMessages() ([]domain.RawMessage, error)
}

type httpTransport struct {
	logger zerolog.Logger
	client *retryablehttp.Client
	url    string
	key    string
}

// NewHttpMailTransport talks to a Mandrill-style JSON HTTP mail API.
// The API key travels in the request body, not in a header.
func NewHttpMailTransport(url, key string, logger *zerolog.Logger) MailTransport {
	contextualLogger := logger.With().Str("component", "MailTransport").Logger()

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = retryableLogger{contextualLogger}

	return &httpTransport{
		logger: contextualLogger,
		client: client,
		url:    strings.TrimSuffix(url, "/"),
		key:    key,
	}
}

// retryableLogger feeds retryablehttp's leveled log lines into zerolog.
type retryableLogger struct {
	logger zerolog.Logger
}

func (self retryableLogger) Error(msg string, keysAndValues ...interface{}) {
	self.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (self retryableLogger) Warn(msg string, keysAndValues ...interface{}) {
	self.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (self retryableLogger) Info(msg string, keysAndValues ...interface{}) {
	self.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (self retryableLogger) Debug(msg string, keysAndValues ...interface{}) {
	self.logger.Debug().Fields(keysAndValues).Msg(msg)
}

type transportRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"`
}

type sendRequest struct {
	Key     string `json:"key"`
	Message struct {
		FromEmail string               `json:"from_email"`
		FromName  string               `json:"from_name,omitempty"`
		To        []transportRecipient `json:"to"`
		Subject   string               `json:"subject"`
		Text      string               `json:"text,omitempty"`
		Html      string               `json:"html,omitempty"`
		Headers   map[string]string    `json:"headers,omitempty"`
	} `json:"message"`
}

type sendResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	Id           string `json:"_id"`
	RejectReason string `json:"reject_reason"`
}

func (self *httpTransport) SendMessage(message *domain.Message, recipients []domain.Recipient) error {
	request := sendRequest{Key: self.key}
	request.Message.FromEmail = message.FromMail
	request.Message.FromName = message.FromName
	request.Message.Subject = message.Subject
	request.Message.Text = message.Text
	request.Message.Html = message.HTML
	request.Message.Headers = message.Headers
	for _, recipient := range recipients {
		request.Message.To = append(request.Message.To, transportRecipient{
			Email: recipient.Mail,
			Name:  recipient.Name,
			Type:  recipient.Type.String(),
		})
	}

	var results []sendResult
	if err := self.post("/messages/send.json", request, &results); err != nil {
		return err
	}

	byMail := make(map[string]sendResult, len(results))
	for _, result := range results {
		byMail[result.Email] = result
	}
	for i := range recipients {
		result, found := byMail[recipients[i].Mail]
		if !found {
			recipients[i].Status = domain.RecipientStatusUndefined
			continue
		}
		recipients[i].Status = recipientStatus(result.Status)
		recipients[i].RemoteID = result.Id
	}

	self.logger.Debug().Int64("message", message.ID).Int("recipients", len(recipients)).Msg("Sent message")
	return nil
}

type inboundMessage struct {
	Id        string            `json:"id"`
	FromEmail string            `json:"from_email"`
	FromName  string            `json:"from_name"`
	To        []string          `json:"to"`
	Cc        []string          `json:"cc"`
	Subject   string            `json:"subject"`
	Text      string            `json:"text"`
	Html      string            `json:"html"`
	Headers   map[string]string `json:"headers"`
}

func (self *httpTransport) GetMessages() ([]domain.RawMessage, error) {
	var results []inboundMessage
	if err := self.post("/messages/inbound.json", map[string]string{"key": self.key}, &results); err != nil {
		return nil, err
	}

	messages := make([]domain.RawMessage, 0, len(results))
	for _, result := range results {
		messages = append(messages, domain.RawMessage{
			TransportID: result.Id,
			FromName:    result.FromName,
			FromMail:    result.FromEmail,
			To:          result.To,
			Cc:          result.Cc,
			Subject:     result.Subject,
			Text:        result.Text,
			HTML:        result.Html,
			Headers:     result.Headers,
		})
	}
	return messages, nil
}

func (self *httpTransport) post(path string, body, result interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return errors.WithMessage(err, "While marshaling mail API request")
	}

	response, err := self.client.Post(self.url+path, "application/json", buf)
	if err != nil {
		return errors.WithMessagef(domain.ErrTransportError, "calling mail API %q: %s", path, err)
	}
	defer func() { _ = response.Body.Close() }()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return errors.WithMessagef(domain.ErrTransportError, "reading mail API response from %q: %s", path, err)
	}
	if response.StatusCode != http.StatusOK {
		return errors.WithMessagef(domain.ErrTransportError, "mail API %q returned %d: %s", path, response.StatusCode, string(payload))
	}

	if err := json.Unmarshal(payload, result); err != nil {
		return errors.WithMessagef(domain.ErrTransportError, "unmarshaling mail API response from %q: %s", path, err)
	}
	return nil
}

func recipientStatus(status string) domain.RecipientStatus {
	switch status {
	case "queued":
		return domain.RecipientStatusQueued
	case "rejected":
		return domain.RecipientStatusRejected
	case "invalid":
		return domain.RecipientStatusInvalid
	case "sent":
		return domain.RecipientStatusSent
	case "delivered":
		return domain.RecipientStatusDelivered
	default:
		return domain.RecipientStatusUndefined
	}
}

// dummyTransport pretends every recipient was delivered and never receives
// anything. For development environments without a mail service.
type dummyTransport struct {
	logger zerolog.Logger
}

func NewDummyMailTransport(logger *zerolog.Logger) MailTransport {
	return &dummyTransport{logger.With().Str("component", "MailTransport").Logger()}
}

func (self *dummyTransport) SendMessage(message *domain.Message, recipients []domain.Recipient) error {
	for i := range recipients {
		recipients[i].Status = domain.RecipientStatusSent
		recipients[i].RemoteID = fmt.Sprintf("dummy-%d-%d", message.ID, i)
	}
	self.logger.Info().Int64("message", message.ID).Str("subject", message.Subject).Msg("Would send message")
	return nil
}

func (self *dummyTransport) GetMessages() ([]domain.RawMessage, error) {
	return nil, nil
}

// NewMailTransport picks the HTTP transport when MAIL_API_URL is set and
// the dummy one otherwise.
func NewMailTransport(logger *zerolog.Logger) MailTransport {
	if url := config.GetenvStr("MAIL_API_URL"); url != "" {
		return NewHttpMailTransport(url, config.GetenvStr("MAIL_API_KEY"), logger)
	}
	return NewDummyMailTransport(logger)
}
