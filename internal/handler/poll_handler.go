package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"voting-platform/internal/domain"
	"voting-platform/internal/middleware"
	"voting-platform/internal/service"
	apperrors "voting-platform/pkg/errors"
	"voting-platform/pkg/logger"
)

type PollHandler struct {
	polls  *service.PollService
	logger *logger.Logger
}

func NewPollHandler(polls *service.PollService, logger *logger.Logger) *PollHandler {
	return &PollHandler{polls: polls, logger: logger}
}

// ListPolls handles GET /api/polls?status=active|completed
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	filter := domain.PollFilter{Status: domain.PollStatus(r.URL.Query().Get("status"))}

	resp, err := h.polls.ListPolls(r.Context(), filter)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	// updatedAt changes on every reload, so it stays out of the tag
	etag := generateETag(struct {
		Polls []domain.Poll
		Stats domain.Stats
	}{resp.Polls, resp.Stats})

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	respondJSON(w, http.StatusOK, resp, h.logger)
}

// GetPoll handles GET /api/polls/{pollId}
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.polls.GetPoll(r.Context(), chi.URLParam(r, "pollId"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, poll, h.logger)
}

// Vote handles POST /api/polls/{pollId}/vote
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollId")

	var req domain.VoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	resp, err := h.polls.Vote(r.Context(), middleware.IdentityFrom(r.Context()), pollID, req.OptionID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			middleware.WriteError(w, r, apperrors.NewAlreadyVotedError(pollID), h.logger)
			return
		}
		respondError(w, r, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, resp, h.logger)
}

// VotedPolls handles GET /api/polls/voted
func (h *PollHandler) VotedPolls(w http.ResponseWriter, r *http.Request) {
	ids, err := h.polls.VotedPollIDs(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, domain.VotedResponse{PollIDs: ids}, h.logger)
}

// CreatePoll handles POST /api/polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var input domain.NewPollInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	resp, err := h.polls.CreatePoll(r.Context(), middleware.IdentityFrom(r.Context()), input)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusCreated, resp, h.logger)
}

// TogglePoll handles POST /api/polls/{pollId}/toggle
func (h *PollHandler) TogglePoll(w http.ResponseWriter, r *http.Request) {
	resp, err := h.polls.TogglePoll(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "pollId"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, resp, h.logger)
}

type statusRequest struct {
	Status domain.PollStatus `json:"status"`
}

// SetPollStatus handles PATCH /api/polls/{pollId}/status
func (h *PollHandler) SetPollStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	resp, err := h.polls.SetPollStatus(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "pollId"), req.Status)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, resp, h.logger)
}

// DeletePoll handles DELETE /api/polls/{pollId}
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	resp, err := h.polls.DeletePoll(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "pollId"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, resp, h.logger)
}

// Export handles GET /api/polls/export[?pollId=]
func (h *PollHandler) Export(w http.ResponseWriter, r *http.Request) {
	pollID := r.URL.Query().Get("pollId")

	// buffered so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.polls.Export(r.Context(), middleware.IdentityFrom(r.Context()), pollID, &buf); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	name := "polls"
	if pollID != "" {
		name = "poll-" + pollID
	}
	filename := fmt.Sprintf("%s-%s.xlsx", name, time.Now().UTC().Format(domain.DateLayout))

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WithError(err).Warn("Failed to stream export")
	}
}
