package friendship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mvigil90/oc-friends/internal/db"
	"github.com/mvigil90/oc-friends/internal/events"
	"github.com/mvigil90/oc-friends/internal/logging"
	"github.com/mvigil90/oc-friends/internal/models"
)

// Table is the friendship table, prefixed per installation by the gateway.
const Table = db.TablePrefixPlaceholder + "friends_friendships"

const (
	findSQL = `SELECT * FROM ` + Table + ` WHERE friend_uid1 = ? AND friend_uid2 = ?`

	insertSQL = `INSERT INTO ` + Table + ` (status, updated_at, friend_uid1, friend_uid2) VALUES(?, ?, ?, ?)`

	updateSQL = `UPDATE ` + Table + ` SET status=?, updated_at=? WHERE (friend_uid1 = ? AND friend_uid2 = ?)`

	updateEitherOrderSQL = `UPDATE ` + Table + ` SET status=?, updated_at=? WHERE (friend_uid1 = ? AND friend_uid2 = ?) OR (friend_uid1 = ? AND friend_uid2 = ?)`

	friendsSQL = `SELECT friend_uid2 as friend FROM ` + Table + ` WHERE (friend_uid1 = ? AND status = ?)
	UNION
	SELECT friend_uid1 as friend FROM ` + Table + ` WHERE (friend_uid2 = ? AND status = ?)`

	// The uid2 branch comes first: the user is uid2, the counterpart is uid1.
	requestsSQL = `SELECT friend_uid1 as friend FROM ` + Table + ` WHERE friend_uid2 = ? AND status = ?
	UNION
	SELECT friend_uid2 as friend FROM ` + Table + ` WHERE friend_uid1 = ? AND status = ?`
)

// Mapper persists friendships and emits a lifecycle event after each write.
// It holds no state besides its collaborators and is safe for concurrent use
// when they are.
type Mapper struct {
	db      db.Gateway
	clock   Clock
	emitter events.Emitter
}

// NewMapper constructs a Mapper. A nil clock uses SystemClock and a nil emitter
// discards events.
func NewMapper(gateway db.Gateway, clock Clock, emitter events.Emitter) *Mapper {
	if gateway == nil {
		panic("friendship: gateway must not be nil")
	}
	if clock == nil {
		clock = SystemClock
	}
	if emitter == nil {
		emitter = events.Nop
	}
	return &Mapper{db: gateway, clock: clock, emitter: emitter}
}

// Find loads the friendship between userA and userB in either order.
func (m *Mapper) Find(ctx context.Context, userA, userB string) (f models.Friendship, err error) {
	uid1, uid2 := CanonicalPair(userA, userB)
	ctx, span := startSpan(ctx, "friendship.find", uid1, uid2)
	defer func() { span.End(err) }()

	rows, err := m.db.Prepare(findSQL).Query(ctx, uid1, uid2)
	if err != nil {
		return models.Friendship{}, err
	}
	if len(rows) == 0 {
		return models.Friendship{}, ErrDoesNotExist
	}
	return scanFriendship(rows[0])
}

// Exists reports whether a row exists for the pair, whatever its status.
func (m *Mapper) Exists(ctx context.Context, userA, userB string) (bool, error) {
	if _, err := m.Find(ctx, userA, userB); err != nil {
		if errors.Is(err, ErrDoesNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindAllFriendsByUser returns the users with an accepted friendship with userID.
func (m *Mapper) FindAllFriendsByUser(ctx context.Context, userID string) ([]string, error) {
	return m.counterparts(ctx, "friendship.find_friends", friendsSQL,
		userID, models.StatusAccepted, userID, models.StatusAccepted)
}

// FindAllRecipientFriendshipRequestsByUser returns the users who sent userID a
// pending friendship request.
func (m *Mapper) FindAllRecipientFriendshipRequestsByUser(ctx context.Context, userID string) ([]string, error) {
	return m.counterparts(ctx, "friendship.find_incoming", requestsSQL,
		userID, models.StatusUID1RequestsUID2, userID, models.StatusUID2RequestsUID1)
}

// FindAllRequesterFriendshipRequestsByUser returns the users userID sent a
// pending friendship request to.
func (m *Mapper) FindAllRequesterFriendshipRequestsByUser(ctx context.Context, userID string) ([]string, error) {
	return m.counterparts(ctx, "friendship.find_outgoing", requestsSQL,
		userID, models.StatusUID2RequestsUID1, userID, models.StatusUID1RequestsUID2)
}

// Create inserts an already accepted friendship, as used when friendships are
// imported from another network.
func (m *Mapper) Create(ctx context.Context, f *models.Friendship) (ok bool, err error) {
	Canonicalize(f)
	if f.FriendUID1 == f.FriendUID2 {
		return false, ErrSelfFriendship
	}
	ctx, span := startSpan(ctx, "friendship.create", f.FriendUID1, f.FriendUID2)
	defer func() { span.End(err) }()

	exists, err := m.Exists(ctx, f.FriendUID1, f.FriendUID2)
	if err != nil {
		return false, err
	}
	if exists {
		return false, ErrAlreadyExists
	}

	f.Status = models.StatusAccepted
	f.UpdatedAt = m.clock.Now()

	ok, err = m.exec(ctx, insertSQL, f.Status, f.UpdatedAt, f.FriendUID1, f.FriendUID2)
	if err != nil {
		return false, err
	}
	m.emit(ctx, events.PostCreate, *f)
	return ok, nil
}

// Request records a pending friendship request. f.Status must name the
// direction of the request relative to the order the users were given in. A
// previously deleted friendship may be requested again; any other existing
// row yields ErrAlreadyExists.
func (m *Mapper) Request(ctx context.Context, f *models.Friendship) (ok bool, err error) {
	Canonicalize(f)
	if f.FriendUID1 == f.FriendUID2 {
		return false, ErrSelfFriendship
	}
	if !f.Status.Pending() {
		return false, fmt.Errorf("%w: request needs a pending status, got %s", ErrInvalidStatus, f.Status)
	}
	ctx, span := startSpan(ctx, "friendship.request", f.FriendUID1, f.FriendUID2)
	defer func() { span.End(err) }()

	existing, err := m.Find(ctx, f.FriendUID1, f.FriendUID2)
	switch {
	case errors.Is(err, ErrDoesNotExist):
		f.UpdatedAt = m.clock.Now()
		ok, err = m.exec(ctx, insertSQL, f.Status, f.UpdatedAt, f.FriendUID1, f.FriendUID2)
	case err != nil:
		return false, err
	case existing.Status != models.StatusDeleted:
		return false, fmt.Errorf("%w: status is %s", ErrAlreadyExists, existing.Status)
	default:
		f.UpdatedAt = m.clock.Now()
		ok, err = m.exec(ctx, updateSQL, f.Status, f.UpdatedAt, f.FriendUID1, f.FriendUID2)
	}
	if err != nil {
		return false, err
	}

	m.emit(ctx, events.PostRequest, *f)
	return ok, nil
}

// Accept turns a pending request into an accepted friendship. It fails with
// ErrDoesNotExist when there is no row and ErrInvalidTransition when the row is
// not pending.
func (m *Mapper) Accept(ctx context.Context, f *models.Friendship) (ok bool, err error) {
	Canonicalize(f)
	ctx, span := startSpan(ctx, "friendship.accept", f.FriendUID1, f.FriendUID2)
	defer func() { span.End(err) }()

	existing, err := m.Find(ctx, f.FriendUID1, f.FriendUID2)
	if err != nil {
		return false, err
	}
	if !existing.Status.Pending() {
		return false, fmt.Errorf("%w: cannot accept a friendship that is %s", ErrInvalidTransition, existing.Status)
	}

	f.Status = models.StatusAccepted
	f.UpdatedAt = m.clock.Now()

	ok, err = m.exec(ctx, updateSQL, f.Status, f.UpdatedAt, f.FriendUID1, f.FriendUID2)
	if err != nil {
		return false, err
	}
	m.emit(ctx, events.PostAccept, *f)
	return ok, nil
}

// Delete marks the friendship deleted. The row is matched in both stored
// orders and post_delete is emitted even when nothing matched.
func (m *Mapper) Delete(ctx context.Context, f *models.Friendship) (ok bool, err error) {
	Canonicalize(f)
	ctx, span := startSpan(ctx, "friendship.delete", f.FriendUID1, f.FriendUID2)
	defer func() { span.End(err) }()

	f.Status = models.StatusDeleted
	f.UpdatedAt = m.clock.Now()

	ok, err = m.exec(ctx, updateEitherOrderSQL, f.Status, f.UpdatedAt,
		f.FriendUID1, f.FriendUID2, f.FriendUID2, f.FriendUID1)
	if err != nil {
		return false, err
	}
	m.emit(ctx, events.PostDelete, *f)
	return ok, nil
}

func (m *Mapper) counterparts(ctx context.Context, op, query string, args ...any) (friends []string, err error) {
	ctx, span := logging.StartSpan(ctx, op)
	defer func() { span.End(err) }()

	rows, err := m.db.Prepare(query).Query(ctx, args...)
	if err != nil {
		return nil, err
	}

	friends = make([]string, 0, len(rows))
	for _, row := range rows {
		friend, err := row.String("friend")
		if err != nil {
			return nil, err
		}
		friends = append(friends, friend)
	}
	return friends, nil
}

func (m *Mapper) exec(ctx context.Context, query string, args ...any) (bool, error) {
	affected, err := m.db.Prepare(query).Exec(ctx, args...)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (m *Mapper) emit(ctx context.Context, name string, f models.Friendship) {
	event := events.Event{
		Component:  events.Component,
		Name:       name,
		Payload:    events.Payload{Friendship: f},
		OccurredAt: f.UpdatedAt,
	}
	// The row is already written; a failed notification must not undo that.
	if err := m.emitter.Emit(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("emit friendship event", "event", name, "error", err)
	}
}

func scanFriendship(row db.Row) (models.Friendship, error) {
	var f models.Friendship
	var err error

	if f.FriendUID1, err = row.String("friend_uid1"); err != nil {
		return models.Friendship{}, err
	}
	if f.FriendUID2, err = row.String("friend_uid2"); err != nil {
		return models.Friendship{}, err
	}
	status, err := row.Int64("status")
	if err != nil {
		return models.Friendship{}, err
	}
	f.Status = models.Status(status)
	if f.UpdatedAt, err = row.Time("updated_at"); err != nil {
		return models.Friendship{}, err
	}

	Canonicalize(&f)
	return f, nil
}

func startSpan(ctx context.Context, op, uid1, uid2 string) (context.Context, *logging.Span) {
	return logging.StartSpan(ctx, op,
		slog.String("friend_uid1", uid1),
		slog.String("friend_uid2", uid2),
	)
}
