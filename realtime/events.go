package realtime

import (
	"strings"

	"quizroom/models"
)

// Event kinds published on a room's channel. Delivery is at-most-once and
// best-effort; the client's polling loop is the correctness backstop.
const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventQuizStarted       = "quiz_started"
)

// Event is the wire form of a room notification. Membership events carry
// the current participant list; quiz_started carries nothing and clients
// re-fetch the room.
type Event struct {
	Type         string               `json:"type"`
	Participants []models.Participant `json:"participants,omitempty"`
}

const channelPrefix = "rooms.events."

// ChannelFor returns the pub/sub channel for a room code.
func ChannelFor(code string) string {
	return channelPrefix + code
}

func codeFromChannel(channel string) string {
	return strings.TrimPrefix(channel, channelPrefix)
}
