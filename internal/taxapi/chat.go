package taxapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	pathChatAsk      = "/chat/ask"
	pathChatHistory  = "/chat/history"
	pathChatFeedback = "/chat/feedback"

	maximumQuestionLength = 2000
	maximumPageSize       = 100
)

// ChatService talks to the tax assistant.
type ChatService struct {
	caller *caller
}

// Ask submits a question. A non-empty sessionID continues an earlier conversation.
func (service *ChatService) Ask(ctx context.Context, question string, sessionID string) (ChatResponse, error) {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return ChatResponse{}, invalidArgument("question is required")
	}
	if utf8.RuneCountInString(trimmed) > maximumQuestionLength {
		return ChatResponse{}, invalidArgument("question exceeds 2000 characters")
	}
	request := ChatRequest{Question: trimmed}
	if sessionID != "" {
		request.SessionID = &sessionID
	}
	var response ChatResponse
	_, err := service.caller.call(ctx, http.MethodPost, pathChatAsk, nil, request, &response, false)
	return response, err
}

// HistoryQuery pages through chat history. Zero values use the server defaults.
type HistoryQuery struct {
	Page      int
	Size      int
	SessionID string
}

func (query HistoryQuery) values() (url.Values, error) {
	values := url.Values{}
	if err := setPaging(values, query.Page, query.Size); err != nil {
		return nil, err
	}
	if query.SessionID != "" {
		values.Set("session_id", query.SessionID)
	}
	return values, nil
}

// History lists past exchanges.
func (service *ChatService) History(ctx context.Context, query HistoryQuery) (ChatHistoryList, error) {
	values, err := query.values()
	if err != nil {
		return ChatHistoryList{}, err
	}
	var history ChatHistoryList
	_, err = service.caller.call(ctx, http.MethodGet, pathChatHistory, values, nil, &history, false)
	return history, err
}

// SendFeedback rates an answer as good or bad.
func (service *ChatService) SendFeedback(ctx context.Context, chatID int64, feedback Feedback) error {
	if feedback != FeedbackGood && feedback != FeedbackBad {
		return invalidArgument("feedback must be good or bad")
	}
	_, err := service.caller.call(ctx, http.MethodPost, pathChatFeedback, nil, FeedbackRequest{ChatID: chatID, Feedback: feedback}, nil, false)
	return err
}

func setPaging(values url.Values, page int, size int) error {
	if page < 0 || size < 0 {
		return invalidArgument("page and size must not be negative")
	}
	if size > maximumPageSize {
		return invalidArgument("size must not exceed 100")
	}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		values.Set("size", strconv.Itoa(size))
	}
	return nil
}
