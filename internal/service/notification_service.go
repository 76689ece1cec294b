package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/research-portal/internal/config"
	"github.com/spec-kit/research-portal/internal/domain"
	"github.com/spec-kit/research-portal/internal/events"
)

// Message is an outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email queued",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// NotificationService handles emitting notifications for session events.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mailer Mailer, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSessionStarted, n.handleSessionStarted)
	n.dispatcher.Subscribe(events.EventSessionRevoked, n.handleSessionRevoked)
	n.dispatcher.Subscribe(events.EventRefreshReuseDetected, n.handleRefreshReuseDetected)
}

func (n *NotificationService) handleSessionStarted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SessionStartedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("SessionStarted", zap.String("subject_id", event.SubjectID), zap.String("role", string(payload.Role)))

	if payload.Role != domain.RoleAdmin || strings.TrimSpace(n.cfg.EmailFrom) == "" || n.mailer == nil {
		return nil
	}
	return n.mailer.Send(ctx, Message{
		From:    n.cfg.EmailFrom,
		To:      payload.Email,
		Subject: "New admin sign-in",
		Body: fmt.Sprintf("Hello %s,\n\nA new sign-in to your administrator account was recorded at %s.\n"+
			"If this was not you, contact the portal team immediately.\n",
			payload.Name, event.Timestamp.Format("2006-01-02 15:04 MST")),
	})
}

func (n *NotificationService) handleSessionRevoked(_ context.Context, event events.Event) error {
	n.logger.Info("SessionRevoked", zap.String("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleRefreshReuseDetected(_ context.Context, event events.Event) error {
	n.logger.Warn("RefreshReuseDetected", zap.String("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	return nil
}
