package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mvigil90/oc-friends/internal/friendship"
	"github.com/mvigil90/oc-friends/internal/logging"
	"github.com/mvigil90/oc-friends/internal/models"
)

const requestScope = "friend_request"

// FriendHandler exposes friendship listing and lifecycle endpoints. Callers
// identify themselves with userId; authentication happens upstream.
type FriendHandler struct {
	Friends FriendshipStore
	Users   UserDirectory
	Limiter RateLimiter
}

type friendPairRequest struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
}

type friendshipResponse struct {
	Friendship models.Friendship `json:"friendship"`
}

type removeFriendResponse struct {
	Friendship models.Friendship `json:"friendship"`
	Removed    bool              `json:"removed"`
}

type listFriendsResponse struct {
	Friends []string `json:"friends"`
}

type listRequestsResponse struct {
	Incoming []string `json:"incoming"`
	Outgoing []string `json:"outgoing"`
}

// List handles GET /api/v1/friends?user=ID.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondError(ctx, w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	if h.Friends == nil {
		logger.Error("friendship store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "friend service unavailable")
		return
	}

	friends, err := h.Friends.FindAllFriendsByUser(ctx, userID)
	if err != nil {
		logger.Error("list friends failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list friends")
		return
	}

	respondJSON(ctx, w, http.StatusOK, listFriendsResponse{Friends: nonNil(friends)})
}

// Requests handles GET /api/v1/friends/requests?user=ID, returning pending
// requests addressed to the user and those the user sent.
func (h FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondError(ctx, w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	if h.Friends == nil {
		logger.Error("friendship store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "friend service unavailable")
		return
	}

	incoming, err := h.Friends.FindAllRecipientFriendshipRequestsByUser(ctx, userID)
	if err != nil {
		logger.Error("list incoming requests failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list friend requests")
		return
	}
	outgoing, err := h.Friends.FindAllRequesterFriendshipRequestsByUser(ctx, userID)
	if err != nil {
		logger.Error("list outgoing requests failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list friend requests")
		return
	}

	respondJSON(ctx, w, http.StatusOK, listRequestsResponse{Incoming: nonNil(incoming), Outgoing: nonNil(outgoing)})
}

// Request handles POST /api/v1/friends/request: userId asks friendId to be friends.
func (h FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, requestScope) {
		logger.Warn("friend request rate limited", "client", clientIP(r))
		respondError(ctx, w, http.StatusTooManyRequests, "too many friend requests, try again later")
		return
	}

	req, ok := h.decodePair(w, r)
	if !ok {
		return
	}

	if h.Users != nil {
		known, err := h.Users.Exists(ctx, req.FriendID)
		if err != nil {
			logger.Error("friend lookup failed", "error", err, "friendId", req.FriendID)
			respondError(ctx, w, http.StatusInternalServerError, "unable to verify user")
			return
		}
		if !known {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return
		}
	}

	f := models.Friendship{
		FriendUID1: req.UserID,
		FriendUID2: req.FriendID,
		Status:     models.StatusUID1RequestsUID2,
	}
	if _, err := h.Friends.Request(ctx, &f); err != nil {
		switch {
		case errors.Is(err, friendship.ErrAlreadyExists):
			respondError(ctx, w, http.StatusConflict, "friendship already exists")
		case errors.Is(err, friendship.ErrSelfFriendship):
			respondError(ctx, w, http.StatusBadRequest, "cannot befriend yourself")
		default:
			logger.Error("create friend request failed", "error", err, "userId", req.UserID, "friendId", req.FriendID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to create friend request")
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, friendshipResponse{Friendship: f})
}

// Accept handles POST /api/v1/friends/accept: userId accepts the pending
// request friendId sent.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	req, ok := h.decodePair(w, r)
	if !ok {
		return
	}

	existing, err := h.Friends.Find(ctx, req.UserID, req.FriendID)
	if err != nil {
		if errors.Is(err, friendship.ErrDoesNotExist) {
			respondError(ctx, w, http.StatusNotFound, "friend request not found")
			return
		}
		logger.Error("load friend request failed", "error", err, "userId", req.UserID, "friendId", req.FriendID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load friend request")
		return
	}
	if existing.Recipient() != req.UserID {
		respondError(ctx, w, http.StatusConflict, "no pending request from this user")
		return
	}

	f := existing
	if _, err := h.Friends.Accept(ctx, &f); err != nil {
		switch {
		case errors.Is(err, friendship.ErrDoesNotExist):
			respondError(ctx, w, http.StatusNotFound, "friend request not found")
		case errors.Is(err, friendship.ErrInvalidTransition):
			respondError(ctx, w, http.StatusConflict, "no pending request from this user")
		default:
			logger.Error("accept friend request failed", "error", err, "userId", req.UserID, "friendId", req.FriendID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to accept friend request")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, friendshipResponse{Friendship: f})
}

// Remove handles POST /api/v1/friends/remove. It ends a friendship or
// withdraws a pending request in either direction.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	req, ok := h.decodePair(w, r)
	if !ok {
		return
	}

	f := models.Friendship{FriendUID1: req.UserID, FriendUID2: req.FriendID}
	removed, err := h.Friends.Delete(ctx, &f)
	if err != nil {
		logger.Error("remove friend failed", "error", err, "userId", req.UserID, "friendId", req.FriendID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to remove friend")
		return
	}

	respondJSON(ctx, w, http.StatusOK, removeFriendResponse{Friendship: f, Removed: removed})
}

// decodePair reads and validates a userId/friendId body, writing the error
// response itself when the request cannot proceed.
func (h FriendHandler) decodePair(w http.ResponseWriter, r *http.Request) (friendPairRequest, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Friends == nil {
		logger.Error("friendship store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "friend service unavailable")
		return friendPairRequest{}, false
	}

	var req friendPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return friendPairRequest{}, false
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.FriendID = strings.TrimSpace(req.FriendID)
	if req.UserID == "" || req.FriendID == "" {
		respondError(ctx, w, http.StatusBadRequest, "userId and friendId are required")
		return friendPairRequest{}, false
	}
	if req.UserID == req.FriendID {
		respondError(ctx, w, http.StatusBadRequest, "cannot befriend yourself")
		return friendPairRequest{}, false
	}
	return req, true
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
