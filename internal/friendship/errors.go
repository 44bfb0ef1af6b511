package friendship

import "errors"

var (
	// ErrDoesNotExist indicates no friendship row exists for the pair.
	ErrDoesNotExist = errors.New("friendship does not exist")
	// ErrAlreadyExists indicates a live friendship row already exists for the pair.
	ErrAlreadyExists = errors.New("friendship already exists")
	// ErrSelfFriendship indicates both sides of the pair are the same user.
	ErrSelfFriendship = errors.New("friendship requires two distinct users")
	// ErrInvalidStatus indicates the friendship carries a status the operation cannot store.
	ErrInvalidStatus = errors.New("invalid friendship status")
	// ErrInvalidTransition indicates the stored status does not allow the operation.
	ErrInvalidTransition = errors.New("invalid friendship status transition")
)
