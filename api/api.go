package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GetStream/duosync/api/validator"
	"github.com/GetStream/duosync/feed"
)

// API provides the local REST endpoints a UI drives. It owns no state of its own; every
// handler reads from or mutates the conversation and inbox views.
type API struct {
	Logger       *slog.Logger
	Conversation *feed.Conversation
	Inbox        *feed.Inbox
	Engine       *feed.Engine
	Val          *validator.Validator
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Now     func() time.Time

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /messages", a.listMessages)
	mux.HandleFunc("POST /messages", a.createMessage)
	mux.HandleFunc("POST /messages/older", a.loadOlderMessages)
	mux.HandleFunc("POST /messages/refresh", a.refreshMessages)
	mux.HandleFunc("POST /messages/{messageID}/reactions", a.createReaction)
	mux.HandleFunc("POST /messages/{messageID}/retry", a.retryMessage)
	mux.HandleFunc("DELETE /messages/{messageID}", a.dismissMessage)

	mux.HandleFunc("GET /draft", a.getDraft)
	mux.HandleFunc("PUT /draft", a.updateDraft)
	mux.HandleFunc("POST /draft/send", a.sendDraft)

	mux.HandleFunc("GET /notifications", a.listNotifications)
	mux.HandleFunc("POST /notifications/more", a.loadMoreNotifications)
	mux.HandleFunc("POST /notifications/refresh", a.refreshNotifications)
	mux.HandleFunc("POST /notifications/read-all", a.markAllRead)
	mux.HandleFunc("POST /notifications/{notificationID}/read", a.markRead)

	mux.HandleFunc("GET /pending", a.listPending)
	if a.Metrics != nil {
		mux.Handle("GET /metrics", a.Metrics)
	}

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

func (a *API) validateBody(w http.ResponseWriter, s any) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

// decodeBody decodes and validates a JSON request body. It responds and returns false
// on failure.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, body any) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if valid := a.validateBody(w, body); !valid {
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return true
}

// errorStatus maps feed errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, feed.ErrEmptyMessage), errors.Is(err, feed.ErrMessageTooLong):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, feed.ErrMessageNotSent), errors.Is(err, feed.ErrNotFailed),
		errors.Is(err, feed.ErrNoMorePages), errors.Is(err, feed.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, feed.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
	State    State     `json:"state"`
}

func (a *API) messages() messagesResponse {
	snap := a.Conversation.Snapshot()
	now := a.now()
	msgs := make([]Message, len(snap.Items))
	for i, m := range snap.Items {
		msgs[i] = newMessage(m, a.Conversation.UserID, now)
	}
	return messagesResponse{Messages: msgs, State: newState(snap.State)}
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	if a.Conversation.State().Status == feed.Idle {
		if err := a.Conversation.Load(r.Context()); err != nil {
			a.respondError(w, errorStatus(err), err, "Could not load messages")
			return
		}
		a.Logger.Info("Loaded conversation", "count", len(a.Conversation.Messages()))
	}
	a.respond(w, http.StatusOK, a.messages())
}

func (a *API) loadOlderMessages(w http.ResponseWriter, r *http.Request) {
	if err := a.Conversation.LoadOlder(r.Context()); err != nil {
		a.respondError(w, errorStatus(err), err, "Could not load older messages")
		return
	}
	a.respond(w, http.StatusOK, a.messages())
}

func (a *API) refreshMessages(w http.ResponseWriter, r *http.Request) {
	if err := a.Conversation.Refresh(r.Context()); err != nil {
		a.respondError(w, errorStatus(err), err, "Could not refresh messages")
		return
	}
	a.respond(w, http.StatusOK, a.messages())
}

type draftRequest struct {
	Text     string `json:"text" validate:"max=1000"`
	ImageRef string `json:"image_ref" validate:"omitempty,max=2048"`
	ReplyTo  *struct {
		ActivityID string `json:"activity_id" validate:"required"`
		Summary    string `json:"summary"`
	} `json:"reply_to"`
}

func (d draftRequest) draft() feed.Draft {
	out := feed.Draft{Text: d.Text, ImageRef: d.ImageRef}
	if d.ReplyTo != nil {
		out.Reply = &feed.ReplyContext{ActivityID: d.ReplyTo.ActivityID, Summary: d.ReplyTo.Summary}
	}
	return out
}

func (a *API) createMessage(w http.ResponseWriter, r *http.Request) {
	var body draftRequest
	if !a.decodeBody(w, r, &body) {
		return
	}
	a.send(w, func() (feed.Message, error) {
		return a.Conversation.Send(r.Context(), body.draft())
	})
}

func (a *API) send(w http.ResponseWriter, fn func() (feed.Message, error)) {
	type response struct {
		Error   string   `json:"error,omitempty"`
		Message *Message `json:"message,omitempty"`
	}

	msg, err := fn()
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusBadRequest {
			a.respondError(w, status, err, err.Error())
			return
		}
		a.Logger.Error("Could not send message", "error", err.Error())
		res := response{Error: "Could not send message"}
		if msg.ID != "" {
			m := newMessage(msg, a.Conversation.UserID, a.now())
			res.Message = &m
		}
		a.respond(w, status, res)
		return
	}
	m := newMessage(msg, a.Conversation.UserID, a.now())
	a.respond(w, http.StatusCreated, response{Message: &m})
}

func (a *API) retryMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("messageID")
	a.send(w, func() (feed.Message, error) {
		return a.Conversation.Retry(r.Context(), id)
	})
}

func (a *API) dismissMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("messageID")
	if err := a.Conversation.Dismiss(id); err != nil {
		a.respondError(w, errorStatus(err), err, "Could not dismiss message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createReaction(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Type string `json:"type" validate:"required,reaction"`
	}

	messageID := r.PathValue("messageID")
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	kind, err := feed.ParseReactionKind(body.Type)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Unknown reaction")
		return
	}

	if err := a.Conversation.React(r.Context(), messageID, kind); err != nil {
		a.respondError(w, errorStatus(err), err, "Could not react to message "+messageID)
		return
	}
	msg, ok := a.Conversation.Message(messageID)
	if !ok {
		a.respondError(w, http.StatusNotFound, feed.ErrNotFound, "Could not react to message "+messageID)
		return
	}
	a.respond(w, http.StatusOK, newMessage(msg, a.Conversation.UserID, a.now()))
}

func (a *API) getDraft(w http.ResponseWriter, _ *http.Request) {
	a.respond(w, http.StatusOK, a.Conversation.Composer().Draft())
}

func (a *API) updateDraft(w http.ResponseWriter, r *http.Request) {
	var body draftRequest
	if !a.decodeBody(w, r, &body) {
		return
	}
	d := body.draft()
	c := a.Conversation.Composer()
	c.SetText(d.Text)
	c.SetImage(d.ImageRef)
	c.SetReply(d.Reply)
	a.respond(w, http.StatusOK, c.Draft())
}

func (a *API) sendDraft(w http.ResponseWriter, r *http.Request) {
	a.send(w, func() (feed.Message, error) {
		return a.Conversation.SendComposed(r.Context())
	})
}

type notificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	State         State          `json:"state"`
}

func (a *API) notifications() notificationsResponse {
	snap := a.Inbox.Snapshot()
	now := a.now()
	ns := make([]Notification, len(snap.Items))
	for i, n := range snap.Items {
		ns[i] = newNotification(n, now)
	}
	return notificationsResponse{
		Notifications: ns,
		UnreadCount:   a.Inbox.UnreadCount(),
		State:         newState(snap.State),
	}
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	if a.Inbox.State().Status == feed.Idle {
		if err := a.Inbox.Load(r.Context()); err != nil {
			a.respondError(w, errorStatus(err), err, "Could not load notifications")
			return
		}
	}
	a.respond(w, http.StatusOK, a.notifications())
}

func (a *API) loadMoreNotifications(w http.ResponseWriter, r *http.Request) {
	if err := a.Inbox.LoadMore(r.Context()); err != nil {
		a.respondError(w, errorStatus(err), err, "Could not load more notifications")
		return
	}
	a.respond(w, http.StatusOK, a.notifications())
}

func (a *API) refreshNotifications(w http.ResponseWriter, r *http.Request) {
	if err := a.Inbox.Refresh(r.Context()); err != nil {
		a.respondError(w, errorStatus(err), err, "Could not refresh notifications")
		return
	}
	a.respond(w, http.StatusOK, a.notifications())
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("notificationID")
	if err := a.Inbox.MarkRead(r.Context(), id); err != nil {
		a.respondError(w, errorStatus(err), err, "Could not mark notification "+id+" read")
		return
	}
	a.respond(w, http.StatusOK, a.notifications())
}

func (a *API) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := a.Inbox.MarkAllRead(r.Context()); err != nil {
		a.respondError(w, errorStatus(err), err, "Could not mark notifications read")
		return
	}
	a.respond(w, http.StatusOK, a.notifications())
}

func (a *API) listPending(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Pending []Pending `json:"pending"`
	}

	res := response{Pending: []Pending{}}
	if a.Engine != nil {
		for _, pm := range a.Engine.Pending() {
			res.Pending = append(res.Pending, Pending{
				ID:        pm.ID,
				Kind:      pm.Kind,
				Target:    pm.TargetID,
				AppliedAt: pm.AppliedAt,
			})
		}
	}
	a.respond(w, http.StatusOK, res)
}
