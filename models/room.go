package models

import "time"

// Room status values. Transitions are monotonic: waiting -> active -> completed.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Room is one multiplayer session, stored as a single document in the room
// store and addressed by its short code.
type Room struct {
	Code              string        `json:"code"`
	QuizID            string        `json:"quizId"`
	HostParticipantID string        `json:"hostParticipantId"`
	Status            string        `json:"status"`
	Participants      []Participant `json:"participants"`
	CreatedAt         time.Time     `json:"createdAt"`
	StartedAt         *time.Time    `json:"startedAt,omitempty"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
}

// Participant returns the participant with the given ID, or nil.
func (r *Room) Participant(participantID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].ParticipantID == participantID {
			return &r.Participants[i]
		}
	}
	return nil
}

// AllFinished reports whether every participant has submitted a result.
// An empty room never counts as finished.
func (r *Room) AllFinished() bool {
	if len(r.Participants) == 0 {
		return false
	}
	for i := range r.Participants {
		if !r.Participants[i].Finished {
			return false
		}
	}
	return true
}

func statusRank(status string) int {
	switch status {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// StatusAtLeast reports whether a is the same as or later than b in the
// room lifecycle.
func StatusAtLeast(a, b string) bool {
	return statusRank(a) >= statusRank(b)
}
