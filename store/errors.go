package store

import "errors"

var (
	// ErrNotFound means no room document exists for the code.
	ErrNotFound = errors.New("room not found")
	// ErrConflict means a room already occupies the code.
	ErrConflict = errors.New("room code already in use")
	// ErrWrongState means the room exists but is not in the lifecycle state
	// the operation's guard requires.
	ErrWrongState = errors.New("room is not in the required state")
	// ErrNoParticipant means the room exists but holds no participant with
	// the given ID.
	ErrNoParticipant = errors.New("participant not found in room")
)
