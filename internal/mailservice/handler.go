package mailservice

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/exp/rand"

	"github.com/almuhsiny/blogapi/internal/common"
)

// MailLogger is the subset of the slog API the service uses, narrowed so
// tests can substitute a mock.
type MailLogger interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}

// MailService turns broker events into outbound emails. Each Send* method
// starts one consumer goroutine; Close stops them all.
type MailService struct {
	mb     common.MessageConsumer
	m      Mailer
	logger MailLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewMailService(mb common.MessageConsumer, host, username, password, sender string, port int, logger *slog.Logger) *MailService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MailService{
		mb:     mb,
		m:      NewMailer(host, port, username, password, sender, NewTemplate()),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SendActivationEmail consumes user.created events and mails the activation
// token to the new account's address.
func (s *MailService) SendActivationEmail() {
	s.consumeTokenEmails(common.UserCreatedKey, common.UserCreatedQueue, "activation_email.html", "activation email")
}

// SendEmailChangeEmail consumes user.email_change events and mails the
// confirmation token to the requested new address.
func (s *MailService) SendEmailChangeEmail() {
	s.consumeTokenEmails(common.UserEmailChangeKey, common.UserEmailChangeQueue, "email_change.html", "email change email")
}

// SendPasswordResetEmail consumes user.password_reset events and mails the
// reset token to the account's address.
func (s *MailService) SendPasswordResetEmail() {
	s.consumeTokenEmails(common.UserPasswordResetKey, common.UserPasswordResetQueue, "password_reset.html", "password reset email")
}

func (s *MailService) consumeTokenEmails(key common.BindingKey, queue common.Queue, templateFile, kind string) {
	msgs, err := s.mb.Consume(key, common.UserExchange, queue)
	if err != nil {
		s.logger.Error("could not consume message", slog.String("error", err.Error()))
		return
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var data struct {
					Email string
					Token string
				}

				if err := json.Unmarshal(msg.Body, &data); err != nil {
					s.logger.Error("could not unmarshal message", slog.String("error", err.Error()))
					continue
				}

				payload := struct {
					Token string
				}{
					Token: data.Token,
				}

				// exponential backoff with jitter
				const maxRetries = 5
				const baseDelay = 500 * time.Millisecond

				var attempt int
				for attempt = 0; attempt < maxRetries; attempt++ {
					err := s.m.send(data.Email, payload, templateFile)
					if err == nil {
						s.logger.Info(kind+" sent", slog.String("email", data.Email))
						msg.Ack(false)
						break
					}

					delay := time.Duration(rand.Int63n(int64(baseDelay) << uint(attempt)))
					s.logger.Info("delaying "+kind, slog.String("email", data.Email), slog.Int("attempt", attempt), slog.Duration("delay", delay))
					time.Sleep(delay)
				}

				if attempt == maxRetries {
					s.logger.Error("could not send "+kind, slog.String("email", data.Email))
					msg.Ack(false)
				}

			case <-s.ctx.Done():
				s.logger.Info("stopping mail consumer", slog.String("queue", string(queue)))
				return
			}
		}
	}()
}

func (s *MailService) Close() {
	s.cancel()
}
