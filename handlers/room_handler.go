package handlers

import (
	"errors"
	"net/http"

	"quizroom/realtime"
	"quizroom/services"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	rooms    *services.RoomService
	archive  *services.ArchiveService
	notifier *realtime.Notifier
}

func NewRoomHandler(rooms *services.RoomService, archive *services.ArchiveService, notifier *realtime.Notifier) *RoomHandler {
	return &RoomHandler{
		rooms:    rooms,
		archive:  archive,
		notifier: notifier,
	}
}

type CreateRoomRequest struct {
	QuizID   string `json:"quizId" binding:"required"`
	HostName string `json:"hostName" binding:"required"`
}

type JoinRoomRequest struct {
	PlayerName string `json:"playerName" binding:"required"`
}

type StartQuizRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

type SubmitResultRequest struct {
	ParticipantID  string `json:"participantId" binding:"required"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalQuestions int    `json:"totalQuestions"`
}

type LeaveRoomRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), req.QuizID, req.HostName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"room":          room,
		"participantId": room.HostParticipantID,
	})
}

// GetRoom handles GET /rooms/:code. This is the endpoint the client
// synchronizer polls as its correctness backstop.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.rooms.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// JoinRoom handles POST /rooms/:code/join.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, participantID, err := h.rooms.JoinRoom(c.Request.Context(), c.Param("code"), req.PlayerName)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notifier.Publish(c.Request.Context(), room.Code, realtime.EventParticipantJoined, room.Participants)

	c.JSON(http.StatusOK, gin.H{
		"room":          room,
		"participantId": participantID,
	})
}

// StartQuiz handles POST /rooms/:code/start. Host-only.
func (h *RoomHandler) StartQuiz(c *gin.Context) {
	var req StartQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.StartQuiz(c.Request.Context(), c.Param("code"), req.ParticipantID)
	if err != nil {
		respondError(c, err)
		return
	}

	// No payload: clients re-fetch the room on quiz_started.
	h.notifier.Publish(c.Request.Context(), room.Code, realtime.EventQuizStarted, nil)

	c.JSON(http.StatusOK, gin.H{"status": room.Status})
}

// SubmitResult handles POST /rooms/:code/submit.
func (h *RoomHandler) SubmitResult(c *gin.Context) {
	var req SubmitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, allFinished, err := h.rooms.SubmitResult(c.Request.Context(), c.Param("code"),
		req.ParticipantID, req.Score, req.CorrectAnswers, req.TotalQuestions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"allFinished":  allFinished,
		"participants": room.Participants,
	})
}

// LeaveRoom handles POST /rooms/:code/leave. Idempotent.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	var req LeaveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.LeaveRoom(c.Request.Context(), c.Param("code"), req.ParticipantID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notifier.Publish(c.Request.Context(), room.Code, realtime.EventParticipantLeft, room.Participants)

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"participants": room.Participants,
	})
}

// RoomHistory handles GET /history/:code, serving archived results after
// the live room document has expired.
func (h *RoomHandler) RoomHistory(c *gin.Context) {
	record, err := h.archive.RoomHistory(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrFailedPrecondition):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
