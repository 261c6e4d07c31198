package models

import (
	"time"

	"gorm.io/gorm"
)

// RoomRecord is the durable copy of a completed room, written once when the
// room reaches its terminal state. The live room document expires from the
// store; history is served from here.
type RoomRecord struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	Code              string         `json:"code" gorm:"index;not null"`
	QuizID            string         `json:"quizId" gorm:"not null"`
	HostParticipantID string         `json:"hostParticipantId" gorm:"not null"`
	RoomCreatedAt     time.Time      `json:"roomCreatedAt"`
	StartedAt         *time.Time     `json:"startedAt"`
	RoomCompletedAt   time.Time      `json:"roomCompletedAt"`
	CreatedAt         time.Time      `json:"-"`
	UpdatedAt         time.Time      `json:"-"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`

	Participants []ParticipantRecord `json:"participants" gorm:"foreignKey:RoomRecordID"`
}

type ParticipantRecord struct {
	ID             uint           `json:"-" gorm:"primaryKey"`
	RoomRecordID   uint           `json:"-" gorm:"index;not null"`
	ParticipantID  string         `json:"participantId" gorm:"not null"`
	Name           string         `json:"name" gorm:"not null"`
	IsHost         bool           `json:"isHost"`
	Score          int            `json:"score" gorm:"not null;default:0"`
	CorrectAnswers int            `json:"correctAnswers" gorm:"not null;default:0"`
	TotalQuestions int            `json:"totalQuestions" gorm:"not null;default:0"`
	JoinedAt       time.Time      `json:"joinedAt"`
	FinishedAt     *time.Time     `json:"finishedAt"`
	CreatedAt      time.Time      `json:"-"`
	UpdatedAt      time.Time      `json:"-"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}
