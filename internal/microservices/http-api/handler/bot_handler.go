package handler

import (
	"net/http"
	"time"

	"botrelay/internal/microservices/http-api/dto"
	"botrelay/internal/microservices/http-api/service"
	"botrelay/internal/microservices/rpc"

	"github.com/gin-gonic/gin"
)

type BotHandler struct {
	botService service.BotService
}

func NewBotHandler(botService service.BotService) *BotHandler {
	return &BotHandler{
		botService: botService,
	}
}

// RegisterRoutes registers bot-related routes
func (h *BotHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/", h.ListAll)
}

// ListAll performs one upstream ListAll call per request
// GET /
func (h *BotHandler) ListAll(c *gin.Context) {
	start := time.Now()

	data, err := h.botService.ListAll(c.Request.Context())
	if err != nil {
		// message text stays in the logs
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(rpc.AsCallError(err).CodeName()))
		return
	}

	c.JSON(http.StatusOK, dto.ListAllResponse{
		Success: true,
		Time:    time.Since(start).Milliseconds(),
		Data:    data,
	})
}
