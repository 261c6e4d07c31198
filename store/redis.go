package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"quizroom/models"

	"github.com/redis/go-redis/v9"
)

// RedisRoomStore keeps each room as one Redis hash at room:<CODE>. Scalar
// room fields live next to one participant:<id> field per participant, so
// every mutation is a single atomic command or script against that key and
// no code path ever does a read-modify-write round trip through Go. Rooms
// expire after ttl, which also retires the code.
type RedisRoomStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRoomStore(client *redis.Client, ttl time.Duration) *RedisRoomStore {
	return &RedisRoomStore{
		client: client,
		ttl:    ttl,
	}
}

const participantField = "participant:"

func roomKey(code string) string {
	return "room:" + code
}

// Script results use short string verdicts so the Go side can map them to
// sentinel errors without parsing replies structurally.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 'conflict'
end
redis.call('HSET', KEYS[1],
  'code', ARGV[1],
  'quizId', ARGV[2],
  'hostId', ARGV[3],
  'status', ARGV[4],
  'createdAt', ARGV[5],
  'seq', '0',
  'participant:' .. ARGV[6], ARGV[7])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[8]))
return 'ok'
`)

var appendParticipantScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'missing'
end
if redis.call('HGET', KEYS[1], 'status') ~= 'waiting' then
  return 'state'
end
local seq = redis.call('HINCRBY', KEYS[1], 'seq', 1)
local p = cjson.decode(ARGV[2])
p['order'] = seq
redis.call('HSET', KEYS[1], 'participant:' .. ARGV[1], cjson.encode(p))
return 'ok'
`)

var markStartedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'missing'
end
if redis.call('HGET', KEYS[1], 'status') ~= 'waiting' then
  return 'state'
end
redis.call('HSET', KEYS[1], 'status', 'active', 'startedAt', ARGV[1])
return 'ok'
`)

var setResultScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'missing'
end
local field = 'participant:' .. ARGV[1]
local raw = redis.call('HGET', KEYS[1], field)
if not raw then
  return 'noparticipant'
end
local p = cjson.decode(raw)
p['score'] = tonumber(ARGV[2])
p['correctAnswers'] = tonumber(ARGV[3])
p['totalQuestions'] = tonumber(ARGV[4])
p['finished'] = true
p['finishedAt'] = ARGV[5]
redis.call('HSET', KEYS[1], field, cjson.encode(p))
return 'ok'
`)

var completeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'missing'
end
if redis.call('HGET', KEYS[1], 'status') ~= 'active' then
  return 'state'
end
local all = redis.call('HGETALL', KEYS[1])
local count = 0
for i = 1, #all, 2 do
  if string.sub(all[i], 1, 12) == 'participant:' then
    count = count + 1
    local p = cjson.decode(all[i + 1])
    if not p['finished'] then
      return 'pending'
    end
  end
end
if count == 0 then
  return 'pending'
end
redis.call('HSET', KEYS[1], 'status', 'completed', 'completedAt', ARGV[1])
return 'ok'
`)

// Create persists a new room. The host participant must already be present
// in room.Participants. Returns ErrConflict when the code is taken by any
// unexpired room.
func (s *RedisRoomStore) Create(ctx context.Context, room *models.Room) error {
	if len(room.Participants) != 1 {
		return fmt.Errorf("new room must carry exactly the host participant, got %d", len(room.Participants))
	}
	host := room.Participants[0]
	hostJSON, err := json.Marshal(host)
	if err != nil {
		return err
	}

	verdict, err := createScript.Run(ctx, s.client, []string{roomKey(room.Code)},
		room.Code,
		room.QuizID,
		room.HostParticipantID,
		room.Status,
		room.CreatedAt.Format(time.RFC3339Nano),
		host.ParticipantID,
		string(hostJSON),
		int(s.ttl.Seconds()),
	).Text()
	if err != nil {
		return err
	}
	if verdict == "conflict" {
		return ErrConflict
	}
	return nil
}

// Get reads the full room document.
func (s *RedisRoomStore) Get(ctx context.Context, code string) (*models.Room, error) {
	fields, err := s.client.HGetAll(ctx, roomKey(code)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseRoom(fields)
}

// AppendParticipant atomically adds a participant to a waiting room. Two
// concurrent appends both land; neither can overwrite the other because
// each participant occupies its own hash field.
func (s *RedisRoomStore) AppendParticipant(ctx context.Context, code string, p models.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	verdict, err := appendParticipantScript.Run(ctx, s.client, []string{roomKey(code)},
		p.ParticipantID, string(data)).Text()
	if err != nil {
		return err
	}
	return verdictErr(verdict)
}

// RemoveParticipant deletes the participant's field. Removing an absent
// participant is a no-op, which makes leave retries safe.
func (s *RedisRoomStore) RemoveParticipant(ctx context.Context, code, participantID string) error {
	exists, err := s.client.Exists(ctx, roomKey(code)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.client.HDel(ctx, roomKey(code), participantField+participantID).Err()
}

// MarkStarted flips a waiting room to active. The waiting guard lives inside
// the script, so a second start attempt fails with ErrWrongState no matter
// how the calls interleave.
func (s *RedisRoomStore) MarkStarted(ctx context.Context, code string, startedAt time.Time) error {
	verdict, err := markStartedScript.Run(ctx, s.client, []string{roomKey(code)},
		startedAt.Format(time.RFC3339Nano)).Text()
	if err != nil {
		return err
	}
	return verdictErr(verdict)
}

// SetParticipantResult rewrites only the matching participant's result
// fields and marks it finished. Room status is deliberately not checked:
// late submissions are recorded.
func (s *RedisRoomStore) SetParticipantResult(ctx context.Context, code, participantID string, score, correctAnswers, totalQuestions int, finishedAt time.Time) error {
	verdict, err := setResultScript.Run(ctx, s.client, []string{roomKey(code)},
		participantID,
		strconv.Itoa(score),
		strconv.Itoa(correctAnswers),
		strconv.Itoa(totalQuestions),
		finishedAt.Format(time.RFC3339Nano),
	).Text()
	if err != nil {
		return err
	}
	return verdictErr(verdict)
}

// CompleteIfAllFinished transitions active -> completed only when every
// participant is finished. When two last submitters race, the loser's call
// finds the status already completed and returns (false, nil).
func (s *RedisRoomStore) CompleteIfAllFinished(ctx context.Context, code string, completedAt time.Time) (bool, error) {
	verdict, err := completeScript.Run(ctx, s.client, []string{roomKey(code)},
		completedAt.Format(time.RFC3339Nano)).Text()
	if err != nil {
		return false, err
	}
	switch verdict {
	case "ok":
		return true, nil
	case "state", "pending":
		return false, nil
	case "missing":
		return false, ErrNotFound
	}
	return false, fmt.Errorf("unexpected script verdict %q", verdict)
}

func verdictErr(verdict string) error {
	switch verdict {
	case "ok":
		return nil
	case "missing":
		return ErrNotFound
	case "state":
		return ErrWrongState
	case "noparticipant":
		return ErrNoParticipant
	}
	return fmt.Errorf("unexpected script verdict %q", verdict)
}

func parseRoom(fields map[string]string) (*models.Room, error) {
	room := &models.Room{
		Code:              fields["code"],
		QuizID:            fields["quizId"],
		HostParticipantID: fields["hostId"],
		Status:            fields["status"],
		Participants:      []models.Participant{},
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("bad createdAt in room document: %w", err)
	}
	room.CreatedAt = createdAt

	if room.StartedAt, err = parseOptionalTime(fields["startedAt"]); err != nil {
		return nil, fmt.Errorf("bad startedAt in room document: %w", err)
	}
	if room.CompletedAt, err = parseOptionalTime(fields["completedAt"]); err != nil {
		return nil, fmt.Errorf("bad completedAt in room document: %w", err)
	}

	for field, raw := range fields {
		if !strings.HasPrefix(field, participantField) {
			continue
		}
		var p models.Participant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("bad participant %s in room document: %w", field, err)
		}
		room.Participants = append(room.Participants, p)
	}
	sort.Slice(room.Participants, func(i, j int) bool {
		return room.Participants[i].Order < room.Participants[j].Order
	})

	return room, nil
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
