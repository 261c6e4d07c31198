package models

import "time"

// Participant is one player's identity and result inside a room. It is
// embedded in the room document; Order preserves insertion order (the host
// is always 0).
type Participant struct {
	ParticipantID  string     `json:"participantId"`
	Name           string     `json:"name"`
	IsHost         bool       `json:"isHost"`
	Score          int        `json:"score"`
	CorrectAnswers int        `json:"correctAnswers"`
	TotalQuestions int        `json:"totalQuestions"`
	Finished       bool       `json:"finished"`
	Order          int        `json:"order"`
	JoinedAt       time.Time  `json:"joinedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}
