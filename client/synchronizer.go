package client

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"quizroom/models"
	"quizroom/realtime"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// SyncState is the synchronizer's lifecycle. It only ever moves forward.
type SyncState string

const (
	StateConnecting SyncState = "connecting"
	StateInLobby    SyncState = "in_lobby"
	StateQuizActive SyncState = "quiz_active"
	StateTerminated SyncState = "terminated"
)

const (
	defaultPollInterval = 2 * time.Second
	maxPushBackoff      = 30 * time.Second
)

// Synchronizer maintains one participant's authoritative local view of a
// room. Push events and poll responses feed the same reducer; neither is a
// separate source of truth, so a dropped push costs at most one poll
// interval of latency, never correctness. Polling stops once the quiz goes
// active: from there the app owns local quiz progression and ends with a
// single SubmitResult.
type Synchronizer struct {
	api           *Client
	code          string
	participantID string

	pollInterval time.Duration
	clock        clockwork.Clock
	pushURL      string // ws(s):// base; empty disables push

	mu       sync.Mutex
	state    SyncState
	room     models.Room
	haveRoom bool

	refresh chan struct{}
	updates chan models.Room

	submitOnce sync.Once
	submitErr  error
}

type Option func(*Synchronizer)

// WithClock swaps the wall clock, letting tests drive the poll loop.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Synchronizer) { s.clock = clock }
}

func WithPollInterval(interval time.Duration) Option {
	return func(s *Synchronizer) { s.pollInterval = interval }
}

// WithPush enables the websocket subscription against the given ws:// base
// URL. Without it the synchronizer is poll-only, which is always correct,
// just slower to notice changes.
func WithPush(baseURL string) Option {
	return func(s *Synchronizer) { s.pushURL = baseURL }
}

func NewSynchronizer(api *Client, code, participantID string, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:           api,
		code:          strings.ToUpper(strings.TrimSpace(code)),
		participantID: participantID,
		pollInterval:  defaultPollInterval,
		clock:         clockwork.NewRealClock(),
		state:         StateConnecting,
		refresh:       make(chan struct{}, 1),
		updates:       make(chan models.Room, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the latest reconciled snapshot, if one has arrived.
func (s *Synchronizer) Room() (models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room, s.haveRoom
}

// Updates delivers reconciled snapshots. Slow readers miss intermediate
// snapshots, never the latest state: Room() always has it.
func (s *Synchronizer) Updates() <-chan models.Room {
	return s.updates
}

// Run drives lobby synchronization until the quiz starts, the synchronizer
// is terminated, or ctx is cancelled. It fetches once immediately, then
// polls at the configured interval, folding in push events as they arrive.
func (s *Synchronizer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.pushURL != "" {
		go s.pushLoop(ctx)
	}

	if done := s.pollOnce(ctx); done {
		return nil
	}

	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		case <-s.refresh:
		}

		if done := s.pollOnce(ctx); done {
			return nil
		}
	}
}

// pollOnce fetches the room and reports whether lobby synchronization is
// finished. Fetch errors are retried silently on the next interval; the
// poll is the backstop, not a user-visible operation.
func (s *Synchronizer) pollOnce(ctx context.Context) bool {
	switch s.State() {
	case StateQuizActive, StateTerminated:
		return true
	}

	room, err := s.api.GetRoom(ctx, s.code)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("poll for room %s failed, will retry: %v", s.code, err)
		}
		return false
	}
	s.apply(*room)

	switch s.State() {
	case StateQuizActive, StateTerminated:
		return true
	}
	return false
}

// apply is the single reducer both inputs feed. Participant lists are
// replaced wholesale; status never moves backward, so a stale snapshot
// arriving after a fresher one cannot regress the lifecycle.
func (s *Synchronizer) apply(room models.Room) {
	s.mu.Lock()
	if s.haveRoom && !models.StatusAtLeast(room.Status, s.room.Status) {
		room.Status = s.room.Status
	}
	s.room = room
	s.haveRoom = true

	if s.state == StateConnecting {
		s.state = StateInLobby
	}
	if s.state == StateInLobby && models.StatusAtLeast(room.Status, models.StatusActive) {
		s.state = StateQuizActive
	}
	snapshot := s.room
	s.mu.Unlock()

	s.emit(snapshot)
}

func (s *Synchronizer) handleEvent(ev realtime.Event) {
	switch ev.Type {
	case realtime.EventParticipantJoined, realtime.EventParticipantLeft:
		s.mu.Lock()
		if !s.haveRoom {
			s.mu.Unlock()
			return
		}
		s.room.Participants = ev.Participants
		snapshot := s.room
		s.mu.Unlock()
		s.emit(snapshot)

	case realtime.EventQuizStarted:
		// No payload; re-fetch the room instead of trusting the event.
		select {
		case s.refresh <- struct{}{}:
		default:
		}
	}
}

func (s *Synchronizer) emit(snapshot models.Room) {
	select {
	case s.updates <- snapshot:
	default:
	}
}

// SubmitResult records this participant's result exactly once and moves to
// terminated. Repeat calls return the first attempt's outcome.
func (s *Synchronizer) SubmitResult(ctx context.Context, score, correctAnswers, totalQuestions int) error {
	s.submitOnce.Do(func() {
		_, s.submitErr = s.api.SubmitResult(ctx, s.code, s.participantID, score, correctAnswers, totalQuestions)
		if s.submitErr == nil {
			s.mu.Lock()
			s.state = StateTerminated
			s.mu.Unlock()
		}
	})
	return s.submitErr
}

// Leave withdraws from the room. It only acts while in the lobby; after the
// quiz starts, membership no longer matters, only the submitted result.
func (s *Synchronizer) Leave(ctx context.Context) error {
	if s.State() != StateInLobby {
		return nil
	}
	if _, err := s.api.LeaveRoom(ctx, s.code, s.participantID); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()
	return nil
}

func (s *Synchronizer) pushLoop(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx,
			s.pushURL+"/ws/rooms/"+s.code+"?participantId="+s.participantID, nil)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(backoff):
			}
			backoff *= 2
			if backoff > maxPushBackoff {
				backoff = maxPushBackoff
			}
			continue
		}

		backoff = time.Second
		s.readEvents(ctx, conn)
	}
}

func (s *Synchronizer) readEvents(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		s.handleEvent(ev)
	}
}
