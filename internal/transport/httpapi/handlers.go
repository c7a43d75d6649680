package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/application"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/inbox"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/messagelog"
)

// Service is the part of application.Service the HTTP surface needs.
type Service interface {
	CreateConversation(ctx context.Context, cmd application.CreateConversationCommand) (*domain.Conversation, error)
	CreateDirectConversation(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, participantID uuid.UUID) error
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	SendMessage(ctx context.Context, cmd application.SendMessageCommand) (*application.SendResult, error)
	ListMessages(ctx context.Context, q application.ListMessagesQuery) (*application.MessagePage, error)
	ListMessagesBefore(ctx context.Context, q application.ListMessagesQuery, cursor messagelog.Cursor) (*application.MessagePage, error)
	ListUserConversations(ctx context.Context, userID uuid.UUID, limit int, cursor *inbox.Cursor) (*inbox.Page, error)
}

// Handler serves the messaging routes.
type Handler struct {
	svc     Service
	timeout time.Duration
}

func NewHandler(svc Service, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{svc: svc, timeout: timeout}
}

type conversationResponse struct {
	ConversationID string   `json:"conversation_id"`
	Participants   []string `json:"participants"`
}

func toConversationResponse(c *domain.Conversation) conversationResponse {
	return conversationResponse{ConversationID: c.ID.String(), Participants: idStrings(c.Participants)}
}

type sendMessageResponse struct {
	Message               domain.Message `json:"message"`
	Status                string         `json:"status"`
	UnindexedParticipants []string       `json:"unindexed_participants,omitempty"`
	Replayed              bool           `json:"replayed,omitempty"`
}

type messagePageResponse struct {
	Messages   []domain.Message `json:"messages"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
	Degraded   bool             `json:"degraded,omitempty"`
}

type inboxPageResponse struct {
	Conversations []domain.InboxEntry `json:"conversations"`
	NextCursor    string              `json:"next_cursor,omitempty"`
	HasMore       bool                `json:"has_more"`
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseIDs(raw []string) ([]uuid.UUID, bool) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	val := r.URL.Query().Get("limit")
	if val == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}

// CreateConversation POST /api/conversations
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string   `json:"conversation_id"`
		Participants   []string `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid json")
		return
	}

	participants, ok := parseIDs(req.Participants)
	if !ok || len(participants) == 0 {
		WriteError(w, http.StatusBadRequest, "invalid_participants", "participants must be a non-empty list of uuids")
		return
	}
	var convID uuid.UUID
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_conversation_id", "conversation_id must be a uuid")
			return
		}
		convID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	conv, err := h.svc.CreateConversation(ctx, application.CreateConversationCommand{
		ConversationID: convID,
		Participants:   participants,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toConversationResponse(conv))
}

// CreateDirectConversation POST /api/conversations/direct
func (h *Handler) CreateDirectConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		OtherID string `json:"other_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid json")
		return
	}
	ids, ok := parseIDs([]string{req.UserID, req.OtherID})
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_participants", "user_id and other_user_id must be uuids")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	conv, err := h.svc.CreateDirectConversation(ctx, ids[0], ids[1])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toConversationResponse(conv))
}

// GetConversation GET /api/conversations/{conversationID}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "conversationID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	conv, err := h.svc.GetConversation(ctx, convID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toConversationResponse(conv))
}

// AddParticipant POST /api/conversations/{conversationID}/participants
func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "conversationID")
	if !ok {
		return
	}
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid json")
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil || participantID == uuid.Nil {
		WriteError(w, http.StatusBadRequest, "invalid_participant_id", "participant_id must be a uuid")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.AddParticipant(ctx, convID, participantID); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListParticipants GET /api/conversations/{conversationID}/participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "conversationID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	participants, err := h.svc.ListParticipants(ctx, convID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]string{"participants": idStrings(participants)})
}

// SendMessage POST /api/conversations/{conversationID}/messages
//
// A message that is stored but not yet in every inbox is answered with 202.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "conversationID")
	if !ok {
		return
	}
	var req struct {
		SenderID    string     `json:"sender_id"`
		Content     string     `json:"content"`
		ClientMsgID string     `json:"client_msg_id"`
		Timestamp   *time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid json")
		return
	}
	senderID, err := uuid.Parse(req.SenderID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_sender_id", "sender_id must be a uuid")
		return
	}

	cmd := application.SendMessageCommand{
		ConversationID: convID,
		SenderID:       senderID,
		Content:        req.Content,
		ClientMsgID:    req.ClientMsgID,
	}
	if req.Timestamp != nil {
		cmd.Timestamp = *req.Timestamp
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.SendMessage(ctx, cmd)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Status == application.StatusPartiallyIndexed {
		status = http.StatusAccepted
	}
	WriteJSON(w, status, sendMessageResponse{
		Message:               *res.Message,
		Status:                string(res.Status),
		UnindexedParticipants: idStrings(res.UnindexedParticipants),
		Replayed:              res.Replayed,
	})
}

// ListMessages GET /api/conversations/{conversationID}/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "conversationID")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	q := application.ListMessagesQuery{ConversationID: convID, Limit: limit}
	if val := r.URL.Query().Get("requester_id"); val != "" {
		id, err := uuid.Parse(val)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_requester_id", "requester_id must be a uuid")
			return
		}
		q.RequesterID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		page *application.MessagePage
		err  error
	)
	rawCursor, rawBefore := r.URL.Query().Get("cursor"), r.URL.Query().Get("before")
	switch {
	case rawCursor != "" && rawBefore != "":
		WriteError(w, http.StatusBadRequest, "invalid_argument", "cursor and before are mutually exclusive")
		return
	case rawCursor != "":
		cursor, derr := messagelog.DecodeCursor(rawCursor)
		if derr != nil {
			WriteServiceError(w, r, derr)
			return
		}
		page, err = h.svc.ListMessagesBefore(ctx, q, cursor)
	case rawBefore != "":
		// A bare timestamp excludes every message sent at that instant.
		before, perr := time.Parse(time.RFC3339Nano, rawBefore)
		if perr != nil {
			WriteError(w, http.StatusBadRequest, "invalid_argument", "before must be an RFC 3339 timestamp")
			return
		}
		page, err = h.svc.ListMessagesBefore(ctx, q, messagelog.Cursor{Timestamp: before.UTC()})
	default:
		page, err = h.svc.ListMessages(ctx, q)
	}
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	resp := messagePageResponse{Messages: page.Messages, HasMore: page.HasMore, Degraded: page.Degraded}
	if page.Next != nil {
		resp.NextCursor = messagelog.EncodeCursor(*page.Next)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// ListUserConversations GET /api/users/{userID}/conversations
func (h *Handler) ListUserConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	var cursor *inbox.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		c, err := inbox.DecodeCursor(raw)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		cursor = &c
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.svc.ListUserConversations(ctx, userID, limit, cursor)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	resp := inboxPageResponse{Conversations: page.Entries, HasMore: page.HasMore}
	if page.Next != nil {
		resp.NextCursor = inbox.EncodeCursor(*page.Next)
	}
	WriteJSON(w, http.StatusOK, resp)
}
