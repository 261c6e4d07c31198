package services

import (
	"errors"
	"fmt"
	"log"

	"quizroom/models"

	"gorm.io/gorm"
)

// ArchiveService writes a durable copy of completed rooms to Postgres. The
// live room document expires from the store; history outlives it here.
type ArchiveService struct {
	db *gorm.DB
}

func NewArchiveService(db *gorm.DB) *ArchiveService {
	return &ArchiveService{db: db}
}

// ArchiveRoom persists the final room. Failures are logged, never
// propagated: archiving is best-effort and must not affect the submission
// path that triggered it.
func (s *ArchiveService) ArchiveRoom(room *models.Room) {
	if room.CompletedAt == nil {
		log.Printf("refusing to archive room %s: not completed", room.Code)
		return
	}

	record := models.RoomRecord{
		Code:              room.Code,
		QuizID:            room.QuizID,
		HostParticipantID: room.HostParticipantID,
		RoomCreatedAt:     room.CreatedAt,
		StartedAt:         room.StartedAt,
		RoomCompletedAt:   *room.CompletedAt,
	}
	for _, p := range room.Participants {
		record.Participants = append(record.Participants, models.ParticipantRecord{
			ParticipantID:  p.ParticipantID,
			Name:           p.Name,
			IsHost:         p.IsHost,
			Score:          p.Score,
			CorrectAnswers: p.CorrectAnswers,
			TotalQuestions: p.TotalQuestions,
			JoinedAt:       p.JoinedAt,
			FinishedAt:     p.FinishedAt,
		})
	}

	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("failed to archive room %s: %v", room.Code, err)
		return
	}
	log.Printf("archived room %s with %d participants", room.Code, len(record.Participants))
}

// RoomHistory returns the archived record of a completed room.
func (s *ArchiveService) RoomHistory(code string) (*models.RoomRecord, error) {
	var record models.RoomRecord
	err := s.db.Where("code = ?", NormalizeCode(code)).
		Preload("Participants").
		Order("room_completed_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no archived room with code %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("%w: reading archive: %v", ErrUnavailable, err)
	}
	return &record, nil
}
