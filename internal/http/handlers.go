package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"dinebot/app/internal/chat"
	"dinebot/app/internal/http/templates"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	errorFallbackMessage = "We couldn't process your request right now."
	keywordsFailMessage  = "Failed to process data"
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type chatRequest struct {
	Body struct {
		UserID    string `json:"user_id" required:"false" doc:"Caller supplied user identifier"`
		UserInput string `json:"user_input" required:"false" doc:"Message for DineBot"`
	}
}

type chatQuery struct {
	UserID    string `query:"user_id" doc:"Caller supplied user identifier"`
	UserInput string `query:"user_input" doc:"Message for DineBot"`
}

type chatResponse struct {
	Body struct {
		Response string `json:"response"`
	}
}

type memoryInput struct {
	UserID string `path:"user_id"`
}

type memoryResponse struct {
	Body struct {
		UserID    string    `json:"user_id"`
		Summary   string    `json:"summary"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}
}

type keywordsRequest struct {
	Body struct {
		WishlistItems []string `json:"wishlistItems" doc:"Short texts to extract keywords from"`
	}
}

type keywordsResponse struct {
	Body struct {
		Keywords map[string][]string `json:"keywords"`
	}
}

type healthResponse struct {
	Status int
	Body   struct {
		Status string `json:"status"`
		Memory string `json:"memory"`
	}
}

func (s *Server) registerHomeRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "home",
		Method:        stdhttp.MethodGet,
		Path:          "/",
		Summary:       "DineBot chat page",
		DefaultStatus: stdhttp.StatusOK,
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Chat page",
				Content: map[string]*huma.MediaType{
					htmlContentType: {Schema: &huma.Schema{Type: "string"}},
				},
			},
		},
	}, s.homeHandler)
}

func (s *Server) registerChatRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "chat",
		Method:        stdhttp.MethodPost,
		Path:          "/chat",
		Summary:       "Reply to a user message",
		DefaultStatus: stdhttp.StatusOK,
		Errors:        []int{stdhttp.StatusBadRequest, stdhttp.StatusInternalServerError},
	}, s.chatHandler)

	huma.Register(s.api, huma.Operation{
		OperationID:   "chat-query",
		Method:        stdhttp.MethodGet,
		Path:          "/chat",
		Summary:       "Reply to a user message passed as query parameters",
		DefaultStatus: stdhttp.StatusOK,
		Errors:        []int{stdhttp.StatusBadRequest, stdhttp.StatusInternalServerError},
	}, s.chatQueryHandler)
}

func (s *Server) registerMemoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "get-memory",
		Method:        stdhttp.MethodGet,
		Path:          "/memory/{user_id}",
		Summary:       "Fetch the stored conversation memory of a user",
		DefaultStatus: stdhttp.StatusOK,
		Errors:        []int{stdhttp.StatusBadRequest, stdhttp.StatusNotFound, stdhttp.StatusInternalServerError},
	}, s.memoryHandler)

	huma.Register(s.api, huma.Operation{
		OperationID:   "forget-memory",
		Method:        stdhttp.MethodDelete,
		Path:          "/memory/{user_id}",
		Summary:       "Delete the stored conversation memory of a user",
		DefaultStatus: stdhttp.StatusNoContent,
		Errors:        []int{stdhttp.StatusBadRequest, stdhttp.StatusInternalServerError},
	}, s.forgetHandler)
}

func (s *Server) registerKeywordsRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "extract-keywords",
		Method:        stdhttp.MethodPost,
		Path:          "/extract-keywords",
		Summary:       "Extract nouns, adjectives and numerals from wishlist items",
		DefaultStatus: stdhttp.StatusOK,
		Errors:        []int{stdhttp.StatusInternalServerError},
	}, s.keywordsHandler)
}

func (s *Server) registerHealthRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthz",
		Method:      stdhttp.MethodGet,
		Path:        "/healthz",
		Summary:     "Health check",
	}, s.healthHandler)
}

func (s *Server) homeHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	data := templates.HomePageData{
		Title:        "DineBot",
		Tagline:      "Your restaurant and food assistant. Ask for places to eat in Lahore, dish ideas, recipes or a nutrition breakdown.",
		ChatEndpoint: "/chat",
		Suggestions: []string{
			"Where can I get good nihari in Lahore?",
			"Suggest a light dinner for tonight.",
			"How many calories are in a chicken biryani?",
		},
	}

	body, err := renderComponent(ctx, templates.HomePage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering home page", nil)
		return nil, huma.Error500InternalServerError(errorFallbackMessage)
	}

	return &htmlResponse{
		Status:      stdhttp.StatusOK,
		ContentType: htmlContentType,
		Body:        body,
	}, nil
}

func (s *Server) chatHandler(ctx context.Context, input *chatRequest) (*chatResponse, error) {
	return s.reply(ctx, input.Body.UserID, input.Body.UserInput)
}

func (s *Server) chatQueryHandler(ctx context.Context, input *chatQuery) (*chatResponse, error) {
	return s.reply(ctx, input.UserID, input.UserInput)
}

func (s *Server) reply(ctx context.Context, userID, message string) (*chatResponse, error) {
	text, err := s.chat.Reply(ctx, userID, message)
	if err != nil {
		return nil, s.apiError(ctx, err, "chat request failed", logrus.Fields{"user_id": userID})
	}

	resp := &chatResponse{}
	resp.Body.Response = text
	return resp, nil
}

func (s *Server) memoryHandler(ctx context.Context, input *memoryInput) (*memoryResponse, error) {
	userID := strings.TrimSpace(input.UserID)
	summary, err := s.chat.Memory(ctx, userID)
	if err != nil {
		return nil, s.apiError(ctx, err, "loading memory", logrus.Fields{"user_id": userID})
	}

	resp := &memoryResponse{}
	resp.Body.UserID = summary.UserID
	resp.Body.Summary = summary.Text
	resp.Body.CreatedAt = summary.CreatedAt
	resp.Body.UpdatedAt = summary.UpdatedAt
	return resp, nil
}

func (s *Server) forgetHandler(ctx context.Context, input *memoryInput) (*struct{}, error) {
	userID := strings.TrimSpace(input.UserID)
	if err := s.chat.Forget(ctx, userID); err != nil {
		return nil, s.apiError(ctx, err, "forgetting memory", logrus.Fields{"user_id": userID})
	}
	return nil, nil
}

func (s *Server) keywordsHandler(ctx context.Context, input *keywordsRequest) (*keywordsResponse, error) {
	extracted, err := s.extractor.ExtractAll(ctx, input.Body.WishlistItems)
	if err != nil {
		s.recordError(ctx, err, "extracting keywords", logrus.Fields{"items": len(input.Body.WishlistItems)})
		return nil, huma.Error500InternalServerError(keywordsFailMessage)
	}

	resp := &keywordsResponse{}
	resp.Body.Keywords = extracted
	return resp, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Memory = "ok"

	if err := s.chat.Ping(ctx); err != nil {
		s.recordError(ctx, err, "pinging memory store", nil)
		resp.Status = stdhttp.StatusServiceUnavailable
		resp.Body.Status = "degraded"
		resp.Body.Memory = "error"
	}

	return resp, nil
}

// apiError maps chat service errors onto HTTP problems. The service has
// already recorded unexpected failures, so they are only noted here.
func (s *Server) apiError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	status, detail := classifyError(err)
	if status >= stdhttp.StatusInternalServerError && s.logger != nil {
		entry := s.logger.WithFields(fields).WithField("error", err.Error())
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Warn(message)
	}
	return huma.NewError(status, detail)
}

func classifyError(err error) (int, string) {
	switch {
	case err == nil:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	case eris.Is(err, chat.ErrUserIDRequired):
		return stdhttp.StatusBadRequest, "user_id is required"
	case eris.Is(err, chat.ErrInputRequired):
		return stdhttp.StatusBadRequest, "user_input is required"
	case eris.Is(err, chat.ErrMemoryNotFound):
		return stdhttp.StatusNotFound, "no conversation memory stored for this user"
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

// recordError reports a failure that no lower layer has recorded. Error-level
// entries reach Sentry through the log hook, so the hub is only used when
// there is no logger.
func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
		return
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
