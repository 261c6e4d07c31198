package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"quizroom/models"
	"quizroom/store"

	"github.com/google/uuid"
)

// maxCodeAttempts bounds the generate-check-retry loop for room codes. The
// code space is large enough that hitting this means something is wrong
// with the store, not bad luck; an unbounded loop would be a liveness
// hazard.
const maxCodeAttempts = 10

// RoomStore is the single source of truth for room state. Every method is
// one atomic store operation; the service never caches room contents
// between requests because two requests for the same room may be served by
// different process instances.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, code string) (*models.Room, error)
	AppendParticipant(ctx context.Context, code string, p models.Participant) error
	RemoveParticipant(ctx context.Context, code, participantID string) error
	MarkStarted(ctx context.Context, code string, startedAt time.Time) error
	SetParticipantResult(ctx context.Context, code, participantID string, score, correctAnswers, totalQuestions int, finishedAt time.Time) error
	CompleteIfAllFinished(ctx context.Context, code string, completedAt time.Time) (bool, error)
}

// Archiver receives the final room once it completes. Archiving is
// best-effort and must not block or fail the submission path.
type Archiver interface {
	ArchiveRoom(room *models.Room)
}

type RoomService struct {
	store    RoomStore
	archiver Archiver

	// newCode is swappable so tests can force collisions.
	newCode func() string
}

func NewRoomService(store RoomStore, archiver Archiver) *RoomService {
	return &RoomService{
		store:    store,
		archiver: archiver,
		newCode:  generateRoomCode,
	}
}

// CreateRoom generates a unique code, persists a waiting room with the host
// as its only participant, and returns the full room view. The host's
// participantId is the client's only proof of identity for later calls.
func (s *RoomService) CreateRoom(ctx context.Context, quizID, hostName string) (*models.Room, error) {
	quizID = strings.TrimSpace(quizID)
	hostName = strings.TrimSpace(hostName)
	if quizID == "" {
		return nil, fmt.Errorf("%w: quizId is required", ErrInvalidArgument)
	}
	if hostName == "" {
		return nil, fmt.Errorf("%w: hostName is required", ErrInvalidArgument)
	}

	host := models.Participant{
		ParticipantID: uuid.NewString(),
		Name:          hostName,
		IsHost:        true,
		JoinedAt:      time.Now().UTC(),
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room := &models.Room{
			Code:              s.newCode(),
			QuizID:            quizID,
			HostParticipantID: host.ParticipantID,
			Status:            models.StatusWaiting,
			Participants:      []models.Participant{host},
			CreatedAt:         time.Now().UTC(),
		}

		err := s.store.Create(ctx, room)
		if err == nil {
			return room, nil
		}
		if errors.Is(err, store.ErrConflict) {
			log.Printf("room code %s collided, regenerating (attempt %d)", room.Code, attempt+1)
			continue
		}
		return nil, fmt.Errorf("%w: creating room: %v", ErrUnavailable, err)
	}

	return nil, fmt.Errorf("%w: could not generate a unique room code after %d attempts", ErrResourceExhausted, maxCodeAttempts)
}

// GetRoom reads the current room view.
func (s *RoomService) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	room, err := s.store.Get(ctx, NormalizeCode(code))
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return room, nil
}

// JoinRoom appends a new participant to a waiting room and returns the
// updated room plus the participant's fresh ID. A room that exists but has
// already started is reported as not found: the client treats both the
// same way, it cannot join.
func (s *RoomService) JoinRoom(ctx context.Context, code, playerName string) (*models.Room, string, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, "", fmt.Errorf("%w: playerName is required", ErrInvalidArgument)
	}
	code = NormalizeCode(code)

	p := models.Participant{
		ParticipantID: uuid.NewString(),
		Name:          playerName,
		JoinedAt:      time.Now().UTC(),
	}

	if err := s.store.AppendParticipant(ctx, code, p); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, "", fmt.Errorf("%w: no room with code %s", ErrNotFound, code)
		case errors.Is(err, store.ErrWrongState):
			return nil, "", fmt.Errorf("%w: room %s has already started", ErrNotFound, code)
		}
		return nil, "", fmt.Errorf("%w: joining room: %v", ErrUnavailable, err)
	}

	room, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, "", mapStoreErr(err)
	}
	return room, p.ParticipantID, nil
}

// StartQuiz transitions waiting -> active. Only the host may start. The
// host ID is immutable after creation, so checking it against a fresh read
// and then issuing the waiting-guarded conditional write cannot go stale.
func (s *RoomService) StartQuiz(ctx context.Context, code, participantID string) (*models.Room, error) {
	code = NormalizeCode(code)

	room, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if room.HostParticipantID != participantID {
		return nil, fmt.Errorf("%w: only the host can start the quiz", ErrPermissionDenied)
	}

	if err := s.store.MarkStarted(ctx, code, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: no room with code %s", ErrNotFound, code)
		case errors.Is(err, store.ErrWrongState):
			return nil, fmt.Errorf("%w: quiz has already started", ErrFailedPrecondition)
		}
		return nil, fmt.Errorf("%w: starting quiz: %v", ErrUnavailable, err)
	}

	room, err = s.store.Get(ctx, code)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return room, nil
}

// SubmitResult records one participant's result and marks it finished. Room
// status is deliberately not a precondition: a client that started before a
// network hiccup can still record its result. After the write the room is
// re-checked; the active -> completed transition is a conditional update,
// so when two last submitters race, the loser's attempt is a no-op. The
// returned flag reports whether every participant is now finished.
func (s *RoomService) SubmitResult(ctx context.Context, code, participantID string, score, correctAnswers, totalQuestions int) (*models.Room, bool, error) {
	if participantID == "" {
		return nil, false, fmt.Errorf("%w: participantId is required", ErrInvalidArgument)
	}
	if score < 0 || correctAnswers < 0 || totalQuestions < 0 {
		return nil, false, fmt.Errorf("%w: result values must not be negative", ErrInvalidArgument)
	}
	code = NormalizeCode(code)
	now := time.Now().UTC()

	if err := s.store.SetParticipantResult(ctx, code, participantID, score, correctAnswers, totalQuestions, now); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, false, fmt.Errorf("%w: no room with code %s", ErrNotFound, code)
		case errors.Is(err, store.ErrNoParticipant):
			return nil, false, fmt.Errorf("%w: participant %s is not in room %s", ErrNotFound, participantID, code)
		}
		return nil, false, fmt.Errorf("%w: submitting result: %v", ErrUnavailable, err)
	}

	transitioned, err := s.store.CompleteIfAllFinished(ctx, code, time.Now().UTC())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: checking completion: %v", ErrUnavailable, err)
	}

	room, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, false, mapStoreErr(err)
	}

	if transitioned && s.archiver != nil {
		go s.archiver.ArchiveRoom(room)
	}

	return room, room.AllFinished(), nil
}

// LeaveRoom removes the participant from the room in any status. It is
// idempotent: leaving twice, or leaving a room one was never in, returns
// the current participant list without error.
func (s *RoomService) LeaveRoom(ctx context.Context, code, participantID string) (*models.Room, error) {
	if participantID == "" {
		return nil, fmt.Errorf("%w: participantId is required", ErrInvalidArgument)
	}
	code = NormalizeCode(code)

	if err := s.store.RemoveParticipant(ctx, code, participantID); err != nil {
		return nil, mapStoreErr(err)
	}

	room, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return room, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
