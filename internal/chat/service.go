package chat

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"dinebot/app/internal/llm"
	"dinebot/app/internal/memory"
)

// Service defines the chatbot operations exposed over HTTP.
type Service interface {
	Reply(ctx context.Context, userID, input string) (string, error)
	Memory(ctx context.Context, userID string) (*memory.Summary, error)
	Forget(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

type service struct {
	repo       memory.Repository
	responder  llm.Responder
	summarizer llm.Summarizer
	logger     *logrus.Logger
	sentryHub  *sentry.Hub
}

var _ Service = (*service)(nil)

var (
	// ErrUserIDRequired indicates a blank user identifier.
	ErrUserIDRequired = eris.New("user id is required")
	// ErrInputRequired indicates a blank user message.
	ErrInputRequired = eris.New("user input is required")
	// ErrMemoryNotFound indicates the user has no stored memory.
	ErrMemoryNotFound = eris.New("memory not found")
)

// NewService wires the chat service with its dependencies.
func NewService(repo memory.Repository, responder llm.Responder, summarizer llm.Summarizer, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("memory repository is required")
	}
	if responder == nil {
		return nil, eris.New("llm responder is required")
	}
	if summarizer == nil {
		return nil, eris.New("llm summarizer is required")
	}

	return &service{
		repo:       repo,
		responder:  responder,
		summarizer: summarizer,
		logger:     logger,
		sentryHub:  hub,
	}, nil
}

// Reply answers one message, using the stored memory as context and
// appending a summary of the turn afterwards. Memory upkeep failures are
// recorded but do not discard an already generated reply.
func (s *service) Reply(ctx context.Context, userID, input string) (string, error) {
	trimmedUser := strings.TrimSpace(userID)
	if trimmedUser == "" {
		return "", ErrUserIDRequired
	}

	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return "", ErrInputRequired
	}

	fields := logrus.Fields{"user_id": trimmedUser}

	record, err := s.repo.Get(ctx, trimmedUser)
	if err != nil {
		s.recordError(fields, err, "loading conversation memory")
		return "", eris.Wrapf(err, "loading memory for user: %s", trimmedUser)
	}

	combinedContext := ""
	if record != nil {
		combinedContext = record.Text
	}

	reply, err := s.responder.Respond(ctx, combinedContext, trimmedInput)
	if err != nil {
		s.recordError(fields, err, "generating reply")
		return "", eris.Wrapf(err, "generating reply for user: %s", trimmedUser)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		err := eris.New("generated reply is empty")
		s.recordError(fields, err, "validating generated reply")
		return "", err
	}

	s.remember(ctx, trimmedUser, trimmedInput, reply)

	return reply, nil
}

func (s *service) remember(ctx context.Context, userID, input, reply string) {
	fields := logrus.Fields{"user_id": userID}

	summary, err := s.summarizer.Summarize(ctx, input, reply)
	if err != nil {
		s.recordError(fields, err, "summarizing conversation turn")
		return
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		if s.logger != nil {
			s.logger.WithFields(fields).Warn("skipping empty turn summary")
		}
		return
	}

	if _, err := s.repo.Append(ctx, userID, summary); err != nil {
		s.recordError(fields, err, "persisting conversation memory")
	}
}

func (s *service) Memory(ctx context.Context, userID string) (*memory.Summary, error) {
	trimmedUser := strings.TrimSpace(userID)
	if trimmedUser == "" {
		return nil, ErrUserIDRequired
	}

	record, err := s.repo.Get(ctx, trimmedUser)
	if err != nil {
		s.recordError(logrus.Fields{"user_id": trimmedUser}, err, "loading conversation memory")
		return nil, eris.Wrapf(err, "loading memory for user: %s", trimmedUser)
	}

	if record == nil {
		return nil, eris.Wrapf(ErrMemoryNotFound, "loading memory for user: %s", trimmedUser)
	}

	return record, nil
}

func (s *service) Forget(ctx context.Context, userID string) error {
	trimmedUser := strings.TrimSpace(userID)
	if trimmedUser == "" {
		return ErrUserIDRequired
	}

	if err := s.repo.Delete(ctx, trimmedUser); err != nil {
		s.recordError(logrus.Fields{"user_id": trimmedUser}, err, "deleting conversation memory")
		return eris.Wrapf(err, "deleting memory for user: %s", trimmedUser)
	}

	return nil
}

func (s *service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// recordError logs the failure at error level, which the Sentry log hook
// forwards. Without a logger the error is captured on the hub directly.
func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
		return
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
