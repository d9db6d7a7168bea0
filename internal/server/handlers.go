package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tOgg1/dmfeed/internal/db"
	"github.com/tOgg1/dmfeed/internal/models"
)

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conv := models.NewConversationID(vars["a"], vars["b"])
	if conv.A == "" || conv.A == conv.B {
		s.Error(w, http.StatusBadRequest, "conversation needs two distinct users")
		return
	}

	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPageLimit)
	}

	page, err := s.messages.ListConversation(r.Context(), conv, r.URL.Query().Get("cursor"), limit)
	if errors.Is(err, db.ErrInvalidCursor) {
		s.Error(w, http.StatusBadRequest, "unknown cursor")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("conversation", conv.String()).Msg("list messages failed")
		s.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	s.metrics.PagesServed.Inc()
	s.JSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if caller := callerID(r); caller != "" && caller != req.SenderID {
		s.Error(w, http.StatusForbidden, "sender does not match caller")
		return
	}
	if err := models.ValidateNewMessage(req.SenderID, req.ReceiverID, req.Content); err != nil {
		s.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := models.Message{SenderID: req.SenderID, ReceiverID: req.ReceiverID, Content: req.Content}
	if err := s.messages.Create(r.Context(), &msg); err != nil {
		s.logger.Error().Err(err).Msg("create message failed")
		s.Error(w, http.StatusInternalServerError, "failed to create message")
		return
	}
	s.metrics.MessagesCreated.Inc()
	s.JSON(w, http.StatusCreated, msg)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		s.metrics.DeletesRejected.WithLabelValues("anonymous").Inc()
		s.Error(w, http.StatusUnauthorized, models.UserIDHeader+" header required")
		return
	}

	id := mux.Vars(r)["id"]
	msg, err := s.messages.Get(r.Context(), id)
	if errors.Is(err, db.ErrMessageNotFound) {
		s.Error(w, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("message_id", id).Msg("load message failed")
		s.Error(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	if msg.SenderID != caller {
		s.metrics.DeletesRejected.WithLabelValues("not_author").Inc()
		s.Error(w, http.StatusForbidden, "only the author can delete a message")
		return
	}

	if err := s.messages.Delete(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrMessageNotFound) {
			s.Error(w, http.StatusNotFound, "message not found")
			return
		}
		s.logger.Error().Err(err).Str("message_id", id).Msg("delete message failed")
		s.Error(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	s.metrics.MessagesDeleted.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list users failed")
		s.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	s.JSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Resolve(r.Context(), mux.Vars(r)["ref"])
	if errors.Is(err, db.ErrUserNotFound) {
		s.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("get user failed")
		s.Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	s.JSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if !s.decode(w, r, &user) {
		return
	}
	err := s.users.Create(r.Context(), &user)
	switch {
	case errors.Is(err, db.ErrUserAlreadyExists):
		s.Error(w, http.StatusConflict, err.Error())
		return
	case models.IsInvalid(err):
		s.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("create user failed")
		s.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	s.JSON(w, http.StatusCreated, user)
}
