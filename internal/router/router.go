// Package router wires spec §6's HTTP surface onto a Hertz server,
// following the teacher's Dependencies-struct-plus-Setup(h, cfg, deps)
// convention verbatim.
package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/bifshteksex/roombot/internal/config"
	"github.com/bifshteksex/roombot/internal/handler"
	"github.com/bifshteksex/roombot/internal/middleware"
)

// Dependencies holds the handlers Setup wires onto routes.
type Dependencies struct {
	BotHandler *handler.BotHandler
	WSHandler  *handler.WebSocketHandler
}

// Setup configures global middleware and every route spec §6 names.
func Setup(h *server.Hertz, cfg *config.Config, deps *Dependencies) {
	h.Use(middleware.Recovery())
	h.Use(middleware.RequestID())
	h.Use(middleware.Logger())
	h.Use(middleware.CORS(&cfg.CORS))

	h.GET("/health", deps.BotHandler.Health)
	h.GET("/bot", deps.BotHandler.Get)
	h.POST("/bot", deps.BotHandler.Post)
	h.DELETE("/bot", deps.BotHandler.Delete)
	h.GET("/bot/ws", deps.WSHandler.Handle)
}
