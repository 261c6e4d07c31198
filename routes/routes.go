package routes

import (
	"log"
	"net/http"

	"quizroom/handlers"
	"quizroom/realtime"
	"quizroom/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients connect from app origins we do not control.
	},
}

func SetupRoutes(router *gin.Engine, roomHandler *handlers.RoomHandler, hub *realtime.Hub) {
	rooms := router.Group("/rooms")
	{
		rooms.POST("", roomHandler.CreateRoom)
		rooms.GET("/:code", roomHandler.GetRoom)
		rooms.POST("/:code/join", roomHandler.JoinRoom)
		rooms.POST("/:code/start", roomHandler.StartQuiz)
		rooms.POST("/:code/submit", roomHandler.SubmitResult)
		rooms.POST("/:code/leave", roomHandler.LeaveRoom)
	}

	router.GET("/history/:code", roomHandler.RoomHistory)

	// Best-effort push channel, one logical topic per room code. There is
	// no auth layer: knowing the code is the bar for watching the lobby,
	// same as for joining it.
	router.GET("/ws/rooms/:code", func(c *gin.Context) {
		code := services.NormalizeCode(c.Param("code"))
		participantID := c.Query("participantId")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed for room %s: %v", code, err)
			return
		}

		hub.RegisterClient(conn, code, participantID)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
