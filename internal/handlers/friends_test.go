package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/mvigil90/oc-friends/internal/friendship"
	"github.com/mvigil90/oc-friends/internal/models"
)

type inMemoryFriendshipStore struct {
	rows map[[2]string]models.Friendship
}

func newInMemoryFriendshipStore() *inMemoryFriendshipStore {
	return &inMemoryFriendshipStore{rows: make(map[[2]string]models.Friendship)}
}

func (s *inMemoryFriendshipStore) put(f models.Friendship) {
	friendship.Canonicalize(&f)
	s.rows[[2]string{f.FriendUID1, f.FriendUID2}] = f
}

func (s *inMemoryFriendshipStore) Find(_ context.Context, a, b string) (models.Friendship, error) {
	uid1, uid2 := friendship.CanonicalPair(a, b)
	f, ok := s.rows[[2]string{uid1, uid2}]
	if !ok {
		return models.Friendship{}, friendship.ErrDoesNotExist
	}
	return f, nil
}

func (s *inMemoryFriendshipStore) FindAllFriendsByUser(_ context.Context, userID string) ([]string, error) {
	return s.collect(userID, func(f models.Friendship) bool { return f.Status == models.StatusAccepted }), nil
}

func (s *inMemoryFriendshipStore) FindAllRecipientFriendshipRequestsByUser(_ context.Context, userID string) ([]string, error) {
	return s.collect(userID, func(f models.Friendship) bool { return f.Recipient() == userID }), nil
}

func (s *inMemoryFriendshipStore) FindAllRequesterFriendshipRequestsByUser(_ context.Context, userID string) ([]string, error) {
	return s.collect(userID, func(f models.Friendship) bool { return f.Requester() == userID }), nil
}

func (s *inMemoryFriendshipStore) collect(userID string, match func(models.Friendship) bool) []string {
	var out []string
	for _, f := range s.rows {
		if (f.FriendUID1 == userID || f.FriendUID2 == userID) && match(f) {
			out = append(out, f.Other(userID))
		}
	}
	sort.Strings(out)
	return out
}

func (s *inMemoryFriendshipStore) Request(ctx context.Context, f *models.Friendship) (bool, error) {
	friendship.Canonicalize(f)
	if existing, err := s.Find(ctx, f.FriendUID1, f.FriendUID2); err == nil && existing.Status != models.StatusDeleted {
		return false, friendship.ErrAlreadyExists
	}
	s.put(*f)
	return true, nil
}

func (s *inMemoryFriendshipStore) Accept(ctx context.Context, f *models.Friendship) (bool, error) {
	existing, err := s.Find(ctx, f.FriendUID1, f.FriendUID2)
	if err != nil {
		return false, err
	}
	if !existing.Status.Pending() {
		return false, friendship.ErrInvalidTransition
	}
	friendship.Canonicalize(f)
	f.Status = models.StatusAccepted
	s.put(*f)
	return true, nil
}

func (s *inMemoryFriendshipStore) Delete(ctx context.Context, f *models.Friendship) (bool, error) {
	friendship.Canonicalize(f)
	f.Status = models.StatusDeleted
	if _, err := s.Find(ctx, f.FriendUID1, f.FriendUID2); err != nil {
		return false, nil
	}
	s.put(*f)
	return true, nil
}

type stubFriendshipStore struct {
	inMemoryFriendshipStore
	findErr    error
	listErr    error
	requestErr error
	acceptErr  error
	deleteErr  error
}

func (s *stubFriendshipStore) Find(ctx context.Context, a, b string) (models.Friendship, error) {
	if s.findErr != nil {
		return models.Friendship{}, s.findErr
	}
	return models.Friendship{FriendUID1: a, FriendUID2: b, Status: models.StatusUID2RequestsUID1}, nil
}

func (s *stubFriendshipStore) FindAllFriendsByUser(context.Context, string) ([]string, error) {
	return nil, s.listErr
}

func (s *stubFriendshipStore) FindAllRecipientFriendshipRequestsByUser(context.Context, string) ([]string, error) {
	return nil, s.listErr
}

func (s *stubFriendshipStore) Request(context.Context, *models.Friendship) (bool, error) {
	return s.requestErr == nil, s.requestErr
}

func (s *stubFriendshipStore) Accept(context.Context, *models.Friendship) (bool, error) {
	return s.acceptErr == nil, s.acceptErr
}

func (s *stubFriendshipStore) Delete(context.Context, *models.Friendship) (bool, error) {
	return s.deleteErr == nil, s.deleteErr
}

type stubDirectory struct {
	known map[string]bool
	err   error
}

func (d stubDirectory) Exists(_ context.Context, userID string) (bool, error) {
	return d.known[userID], d.err
}

type countingLimiter struct {
	allow int
	keys  []string
}

func (l *countingLimiter) Allow(key string) bool {
	l.keys = append(l.keys, key)
	if l.allow <= 0 {
		return false
	}
	l.allow--
	return true
}

func postPair(t *testing.T, fn http.HandlerFunc, path, userID, friendID string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(friendPairRequest{UserID: userID, FriendID: friendID})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func TestFriendHandlerRequest(t *testing.T) {
	store := newInMemoryFriendshipStore()
	handler := FriendHandler{Friends: store, Users: stubDirectory{known: map[string]bool{"alice": true}}}

	rec := postPair(t, handler.Request, "/api/v1/friends/request", "bob", "alice")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp friendshipResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Friendship.FriendUID1 != "alice" || resp.Friendship.FriendUID2 != "bob" {
		t.Fatalf("expected canonical pair got %+v", resp.Friendship)
	}
	if resp.Friendship.Requester() != "bob" {
		t.Fatalf("expected bob to be the requester, status %s", resp.Friendship.Status)
	}

	stored, err := store.Find(context.Background(), "alice", "bob")
	if err != nil || stored.Recipient() != "alice" {
		t.Fatalf("expected pending request for alice, got %+v %v", stored, err)
	}

	rec = postPair(t, handler.Request, "/api/v1/friends/request", "alice", "bob")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected unknown friend to be rejected, got %d", rec.Code)
	}
}

func TestFriendHandlerRequestFailures(t *testing.T) {
	known := stubDirectory{known: map[string]bool{"user-2": true}}
	body := []byte(`{"userId":"user-1","friendId":"user-2"}`)

	existing := newInMemoryFriendshipStore()
	existing.put(models.Friendship{FriendUID1: "user-1", FriendUID2: "user-2", Status: models.StatusAccepted})

	cases := []struct {
		name       string
		handler    FriendHandler
		method     string
		body       []byte
		wantStatus int
	}{
		{"wrongMethod", FriendHandler{Friends: newInMemoryFriendshipStore()}, http.MethodGet, body, http.StatusMethodNotAllowed},
		{"missingStore", FriendHandler{}, http.MethodPost, body, http.StatusInternalServerError},
		{"badJSON", FriendHandler{Friends: newInMemoryFriendshipStore()}, http.MethodPost, []byte("{"), http.StatusBadRequest},
		{"missingFields", FriendHandler{Friends: newInMemoryFriendshipStore()}, http.MethodPost, []byte(`{"userId":" ","friendId":""}`), http.StatusBadRequest},
		{"selfRequest", FriendHandler{Friends: newInMemoryFriendshipStore()}, http.MethodPost, []byte(`{"userId":"same","friendId":"same"}`), http.StatusBadRequest},
		{"unknownFriend", FriendHandler{Friends: newInMemoryFriendshipStore(), Users: stubDirectory{}}, http.MethodPost, body, http.StatusNotFound},
		{"directoryDown", FriendHandler{Friends: newInMemoryFriendshipStore(), Users: stubDirectory{err: errors.New("db down")}}, http.MethodPost, body, http.StatusInternalServerError},
		{"alreadyFriends", FriendHandler{Friends: existing, Users: known}, http.MethodPost, body, http.StatusConflict},
		{"storeSelfError", FriendHandler{Friends: &stubFriendshipStore{requestErr: friendship.ErrSelfFriendship}}, http.MethodPost, body, http.StatusBadRequest},
		{"internal", FriendHandler{Friends: &stubFriendshipStore{requestErr: errors.New("boom")}}, http.MethodPost, body, http.StatusInternalServerError},
		{"rateLimited", FriendHandler{Friends: newInMemoryFriendshipStore(), Limiter: &countingLimiter{}}, http.MethodPost, body, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/friends/request", bytes.NewReader(tc.body))
			rec := httptest.NewRecorder()

			tc.handler.Request(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestFriendHandlerRequestRateLimitKey(t *testing.T) {
	limiter := &countingLimiter{allow: 1}
	handler := FriendHandler{Friends: newInMemoryFriendshipStore(), Limiter: limiter}

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/request", bytes.NewReader([]byte(`{"userId":"a","friendId":"b"}`)))
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.Request(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be limited, got %d", code)
	}
	if limiter.keys[0] != "friend_request:203.0.113.9" {
		t.Fatalf("unexpected limiter key %q", limiter.keys[0])
	}
}

func TestFriendHandlerAccept(t *testing.T) {
	store := newInMemoryFriendshipStore()
	store.put(models.Friendship{FriendUID1: "bob", FriendUID2: "alice", Status: models.StatusUID1RequestsUID2})
	handler := FriendHandler{Friends: store}

	rec := postPair(t, handler.Accept, "/api/v1/friends/accept", "bob", "alice")
	if rec.Code != http.StatusConflict {
		t.Fatalf("requester must not accept their own request, got %d", rec.Code)
	}

	rec = postPair(t, handler.Accept, "/api/v1/friends/accept", "alice", "bob")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp friendshipResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Friendship.Status != models.StatusAccepted {
		t.Fatalf("expected accepted got %s", resp.Friendship.Status)
	}

	friends, _ := store.FindAllFriendsByUser(context.Background(), "bob")
	if len(friends) != 1 || friends[0] != "alice" {
		t.Fatalf("expected bob to be friends with alice, got %v", friends)
	}

	rec = postPair(t, handler.Accept, "/api/v1/friends/accept", "alice", "bob")
	if rec.Code != http.StatusConflict {
		t.Fatalf("accepting twice should conflict, got %d", rec.Code)
	}
}

func TestFriendHandlerAcceptFailures(t *testing.T) {
	cases := []struct {
		name       string
		handler    FriendHandler
		wantStatus int
	}{
		{"missingStore", FriendHandler{}, http.StatusInternalServerError},
		{"notFound", FriendHandler{Friends: newInMemoryFriendshipStore()}, http.StatusNotFound},
		{"findError", FriendHandler{Friends: &stubFriendshipStore{findErr: errors.New("db down")}}, http.StatusInternalServerError},
		{"vanished", FriendHandler{Friends: &stubFriendshipStore{acceptErr: friendship.ErrDoesNotExist}}, http.StatusNotFound},
		{"raced", FriendHandler{Friends: &stubFriendshipStore{acceptErr: friendship.ErrInvalidTransition}}, http.StatusConflict},
		{"internal", FriendHandler{Friends: &stubFriendshipStore{acceptErr: errors.New("boom")}}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// The stub reports user-1 as the recipient of user-2's request.
			rec := postPair(t, tc.handler.Accept, "/api/v1/friends/accept", "user-1", "user-2")
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/accept", nil)
	rec := httptest.NewRecorder()
	FriendHandler{Friends: newInMemoryFriendshipStore()}.Accept(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed got %d", rec.Code)
	}
}

func TestFriendHandlerRemove(t *testing.T) {
	store := newInMemoryFriendshipStore()
	store.put(models.Friendship{FriendUID1: "alice", FriendUID2: "bob", Status: models.StatusAccepted})
	handler := FriendHandler{Friends: store}

	rec := postPair(t, handler.Remove, "/api/v1/friends/remove", "bob", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp removeFriendResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Removed || resp.Friendship.Status != models.StatusDeleted {
		t.Fatalf("unexpected response %+v", resp)
	}

	friends, _ := store.FindAllFriendsByUser(context.Background(), "alice")
	if len(friends) != 0 {
		t.Fatalf("expected no friends after removal, got %v", friends)
	}

	rec = postPair(t, handler.Remove, "/api/v1/friends/remove", "carol", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("removing an unknown friendship should still succeed, got %d", rec.Code)
	}

	rec = postPair(t, FriendHandler{Friends: &stubFriendshipStore{deleteErr: errors.New("boom")}}.Remove, "/api/v1/friends/remove", "a", "b")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}
}

func TestFriendHandlerList(t *testing.T) {
	store := newInMemoryFriendshipStore()
	store.put(models.Friendship{FriendUID1: "alice", FriendUID2: "bob", Status: models.StatusAccepted})
	store.put(models.Friendship{FriendUID1: "carol", FriendUID2: "alice", Status: models.StatusAccepted})
	store.put(models.Friendship{FriendUID1: "alice", FriendUID2: "dave", Status: models.StatusUID1RequestsUID2})
	handler := FriendHandler{Friends: store}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=alice", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp listFriendsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Friends) != 2 || resp.Friends[0] != "bob" || resp.Friends[1] != "carol" {
		t.Fatalf("unexpected friends %v", resp.Friends)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=nobody", nil)
	rec = httptest.NewRecorder()
	handler.List(rec, req)
	if body := rec.Body.String(); body != "{\"friends\":[]}\n" {
		t.Fatalf("expected empty list, got %s", body)
	}
}

func TestFriendHandlerListFailures(t *testing.T) {
	handler := FriendHandler{Friends: &stubFriendshipStore{listErr: errors.New("db down")}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
	rec = httptest.NewRecorder()
	handler.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=user-1", nil)
	rec = httptest.NewRecorder()
	FriendHandler{}.List(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.List(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}
}

func TestFriendHandlerRequests(t *testing.T) {
	store := newInMemoryFriendshipStore()
	store.put(models.Friendship{FriendUID1: "bob", FriendUID2: "alice", Status: models.StatusUID1RequestsUID2})
	store.put(models.Friendship{FriendUID1: "alice", FriendUID2: "carol", Status: models.StatusUID1RequestsUID2})
	store.put(models.Friendship{FriendUID1: "alice", FriendUID2: "dave", Status: models.StatusAccepted})
	handler := FriendHandler{Friends: store}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/requests?user=alice", nil)
	rec := httptest.NewRecorder()
	handler.Requests(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp listRequestsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Incoming) != 1 || resp.Incoming[0] != "bob" {
		t.Fatalf("unexpected incoming %v", resp.Incoming)
	}
	if len(resp.Outgoing) != 1 || resp.Outgoing[0] != "carol" {
		t.Fatalf("unexpected outgoing %v", resp.Outgoing)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends/requests?user=alice", nil)
	rec = httptest.NewRecorder()
	FriendHandler{Friends: &stubFriendshipStore{listErr: errors.New("db down")}}.Requests(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}
}
