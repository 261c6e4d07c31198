package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"quizroom/models"
	"quizroom/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *RoomService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRoomService(store.NewRedisRoomStore(client, time.Hour), nil)
}

func TestCreateRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "  Alice  ")
	require.NoError(t, err)

	assert.Len(t, room.Code, 6)
	assert.Equal(t, "Q1", room.QuizID)
	assert.Equal(t, models.StatusWaiting, room.Status)
	assert.Nil(t, room.StartedAt)
	require.Len(t, room.Participants, 1)
	assert.True(t, room.Participants[0].IsHost)
	assert.Equal(t, "Alice", room.Participants[0].Name)
	assert.Equal(t, room.HostParticipantID, room.Participants[0].ParticipantID)

	// Round-trip through the store.
	got, err := svc.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.Code, got.Code)
	require.Len(t, got.Participants, 1)
	assert.True(t, got.Participants[0].IsHost)
}

func TestCreateRoomValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, "", "Alice")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.CreateRoom(ctx, "Q1", "   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateRoomCodeExhaustion(t *testing.T) {
	svc := newTestService(t)
	svc.newCode = func() string { return "SAME22" }
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)

	// Every retry collides with the first room's code.
	_, err = svc.CreateRoom(ctx, "Q1", "Bob")
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestJoinRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)

	// Codes are matched case-insensitively.
	joined, bobID, err := svc.JoinRoom(ctx, strings.ToLower(room.Code), "Bob")
	require.NoError(t, err)
	assert.NotEmpty(t, bobID)
	require.Len(t, joined.Participants, 2)
	assert.Equal(t, "Alice", joined.Participants[0].Name)
	assert.Equal(t, "Bob", joined.Participants[1].Name)
	assert.False(t, joined.Participants[1].IsHost)

	_, _, err = svc.JoinRoom(ctx, room.Code, "   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = svc.JoinRoom(ctx, "NOSUCH", "Carol")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinRoomAfterStartIsNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)
	_, err = svc.StartQuiz(ctx, room.Code, room.HostParticipantID)
	require.NoError(t, err)

	// "No such room" and "room already started" are the same kind to the
	// client: it cannot join.
	_, _, err = svc.JoinRoom(ctx, room.Code, "Carol")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartQuiz(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)
	_, bobID, err := svc.JoinRoom(ctx, room.Code, "Bob")
	require.NoError(t, err)

	_, err = svc.StartQuiz(ctx, room.Code, bobID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	started, err := svc.StartQuiz(ctx, room.Code, room.HostParticipantID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = svc.StartQuiz(ctx, room.Code, room.HostParticipantID)
	assert.ErrorIs(t, err, ErrFailedPrecondition)

	_, err = svc.StartQuiz(ctx, "NOSUCH", room.HostParticipantID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitResultCompletesRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)
	_, bobID, err := svc.JoinRoom(ctx, room.Code, "Bob")
	require.NoError(t, err)
	_, err = svc.StartQuiz(ctx, room.Code, room.HostParticipantID)
	require.NoError(t, err)

	updated, allFinished, err := svc.SubmitResult(ctx, room.Code, room.HostParticipantID, 80, 8, 10)
	require.NoError(t, err)
	assert.False(t, allFinished)
	assert.Equal(t, models.StatusActive, updated.Status)

	updated, allFinished, err = svc.SubmitResult(ctx, room.Code, bobID, 60, 6, 10)
	require.NoError(t, err)
	assert.True(t, allFinished)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	bob := updated.Participant(bobID)
	require.NotNil(t, bob)
	assert.Equal(t, 60, bob.Score)
	assert.True(t, bob.Finished)
}

func TestSubmitResultErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)

	_, _, err = svc.SubmitResult(ctx, room.Code, "nobody", 1, 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.SubmitResult(ctx, "NOSUCH", room.HostParticipantID, 1, 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.SubmitResult(ctx, room.Code, room.HostParticipantID, -1, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = svc.SubmitResult(ctx, room.Code, "", 1, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubmitResultToleratedBeforeStart(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)

	// A client that raced a network hiccup may submit against a room that
	// never flipped to active on its view; the result is still recorded.
	updated, _, err := svc.SubmitResult(ctx, room.Code, room.HostParticipantID, 50, 5, 10)
	require.NoError(t, err)
	assert.True(t, updated.Participants[0].Finished)
	// But the completion transition is guarded by active status.
	assert.Equal(t, models.StatusWaiting, updated.Status)
}

func TestLeaveRoomIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)
	_, bobID, err := svc.JoinRoom(ctx, room.Code, "Bob")
	require.NoError(t, err)

	first, err := svc.LeaveRoom(ctx, room.Code, bobID)
	require.NoError(t, err)
	second, err := svc.LeaveRoom(ctx, room.Code, bobID)
	require.NoError(t, err)
	assert.Equal(t, first.Participants, second.Participants)
	require.Len(t, second.Participants, 1)

	_, err = svc.LeaveRoom(ctx, "NOSUCH", bobID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentJoins(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)

	const joiners = 8
	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.JoinRoom(ctx, room.Code, fmt.Sprintf("Player%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "joiner %d", i)
	}

	got, err := svc.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	require.Len(t, got.Participants, joiners+1)

	ids := make(map[string]bool)
	for _, p := range got.Participants {
		assert.False(t, ids[p.ParticipantID], "duplicate participant id %s", p.ParticipantID)
		ids[p.ParticipantID] = true
	}
}

func TestConcurrentLastSubmitters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Q1", "Alice")
	require.NoError(t, err)
	_, bobID, err := svc.JoinRoom(ctx, room.Code, "Bob")
	require.NoError(t, err)
	_, err = svc.StartQuiz(ctx, room.Code, room.HostParticipantID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var hostFinished, bobFinished bool
	var hostErr, bobErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, hostFinished, hostErr = svc.SubmitResult(ctx, room.Code, room.HostParticipantID, 80, 8, 10)
	}()
	go func() {
		defer wg.Done()
		_, bobFinished, bobErr = svc.SubmitResult(ctx, room.Code, bobID, 60, 6, 10)
	}()
	wg.Wait()

	require.NoError(t, hostErr)
	require.NoError(t, bobErr)

	// Whoever finished second must have observed a fully-finished room;
	// the flags can never both be false.
	assert.True(t, hostFinished || bobFinished)

	got, err := svc.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.AllFinished())
	// No lost updates: both results landed.
	assert.Equal(t, 80, got.Participant(room.HostParticipantID).Score)
	assert.Equal(t, 60, got.Participant(bobID).Score)
}

// failingStore simulates an unreachable store so the Unavailable mapping
// can be checked without tearing down Redis mid-test.
type failingStore struct {
	err error
}

func (f *failingStore) Create(context.Context, *models.Room) error { return f.err }
func (f *failingStore) Get(context.Context, string) (*models.Room, error) {
	return nil, f.err
}
func (f *failingStore) AppendParticipant(context.Context, string, models.Participant) error {
	return f.err
}
func (f *failingStore) RemoveParticipant(context.Context, string, string) error { return f.err }
func (f *failingStore) MarkStarted(context.Context, string, time.Time) error    { return f.err }
func (f *failingStore) SetParticipantResult(context.Context, string, string, int, int, int, time.Time) error {
	return f.err
}
func (f *failingStore) CompleteIfAllFinished(context.Context, string, time.Time) (bool, error) {
	return false, f.err
}

func TestStoreFailuresSurfaceAsUnavailable(t *testing.T) {
	svc := NewRoomService(&failingStore{err: errors.New("connection refused")}, nil)
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, "Q1", "Alice")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.GetRoom(ctx, "ABC234")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, _, err = svc.JoinRoom(ctx, "ABC234", "Bob")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.StartQuiz(ctx, "ABC234", "host")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, _, err = svc.SubmitResult(ctx, "ABC234", "p", 1, 1, 1)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.LeaveRoom(ctx, "ABC234", "p")
	assert.ErrorIs(t, err, ErrUnavailable)
}
