package mailservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newMockMailService() (*MailService, *MockMailer, *MockLogger) {
	mockMailer := new(MockMailer)
	mockLogger := new(MockLogger)
	mockLogger.On("Info", mock.Anything, mock.Anything).Return()
	mockLogger.On("Error", mock.Anything, mock.Anything).Return()

	ctx, cancel := context.WithCancel(context.Background())

	return &MailService{
		mb:     new(MockMessageConsumer),
		m:      mockMailer,
		logger: mockLogger,
		ctx:    ctx,
		cancel: cancel,
	}, mockMailer, mockLogger
}

func TestSendActivationEmail(t *testing.T) {
	s, mockMailer, _ := newMockMailService()
	t.Cleanup(s.Close)

	s.SendActivationEmail()

	assert.Eventually(t, mockMailer.IsCalled, time.Second, 10*time.Millisecond)
	assert.Equal(t, "test@example.com", mockMailer.GetEmail())
}

func TestSendEmailChangeEmail(t *testing.T) {
	s, mockMailer, _ := newMockMailService()
	t.Cleanup(s.Close)

	s.SendEmailChangeEmail()

	assert.Eventually(t, mockMailer.IsCalled, time.Second, 10*time.Millisecond)
	assert.Equal(t, "test@example.com", mockMailer.GetEmail())
}

func TestSendPasswordResetEmail(t *testing.T) {
	s, mockMailer, _ := newMockMailService()
	t.Cleanup(s.Close)

	s.SendPasswordResetEmail()

	assert.Eventually(t, mockMailer.IsCalled, time.Second, 10*time.Millisecond)
	assert.Equal(t, "test@example.com", mockMailer.GetEmail())
}
