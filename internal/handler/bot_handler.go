// Package handler implements spec §6's HTTP surface: GET /health,
// GET/POST/DELETE /bot, WS /bot/ws. Grounded on
// original_source/api/handlers.py's FastAPI router (the validate_session_id
// dependency, the bot_get/bot_post/bot_delete/bot_ws_session bodies) and
// the teacher's Handler-struct-wrapping-a-service + ctx.JSON(status, map)
// idiom (auth_handler.go).
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/bifshteksex/roombot/internal/apierr"
	"github.com/bifshteksex/roombot/internal/model"
	"github.com/bifshteksex/roombot/internal/signedtoken"
)

// botService is the narrow surface BotHandler needs from internal/service.
type botService interface {
	CreateBot(ctx context.Context, sid, userName, botName, roomURL string, hidden bool) error
	DeleteBot(ctx context.Context, sid string) error
}

// sessionReader is the narrow surface BotHandler needs to answer
// GET /bot and to drive WS /bot/ws (spec §4.1 "Session read for
// UI/WebSocket").
type sessionReader interface {
	GetSession(ctx context.Context, sid string) (*model.Session, error)
}

// BotHandler implements GET/POST/DELETE /bot (spec §6).
type BotHandler struct {
	service  botService
	sessions sessionReader
	signer   *signedtoken.Signer
}

// NewBotHandler constructs a BotHandler.
func NewBotHandler(service botService, sessions sessionReader, signer *signedtoken.Signer) *BotHandler {
	return &BotHandler{service: service, sessions: sessions, signer: signer}
}

// createBotRequest is the POST /bot body, ported from
// original_source/api/models.py's BotInfo.
type createBotRequest struct {
	UserName string `json:"user_name"`
	BotName  string `json:"bot_name"`
	RoomURL  string `json:"room_url"`
	Hidden   bool   `json:"hidden"`
}

// sessionIDFromQuery validates the session_id query parameter the way
// original_source's validate_session_id dependency does, returning the
// raw (unsigned) value on success.
func (h *BotHandler) sessionIDFromQuery(c *app.RequestContext) (string, bool) {
	token := c.Query("session_id")
	value, ok := h.signer.Verify(signedtoken.SessionSalt, token)
	return value, ok
}

// Health implements GET /health.
func (h *BotHandler) Health(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, map[string]interface{}{"message": "OK"})
}

// Get implements GET /bot: returns the session's `$.bot` slice, or a 303
// "No bot" response if the session has expired or never existed.
func (h *BotHandler) Get(ctx context.Context, c *app.RequestContext) {
	sid, ok := h.sessionIDFromQuery(c)
	if !ok {
		c.JSON(http.StatusForbidden, map[string]interface{}{"status": http.StatusForbidden, "message": "Invalid session id"})
		return
	}

	session, err := h.sessions.GetSession(ctx, sid)
	if err != nil {
		hlog.CtxErrorf(ctx, "handler: GetSession failed for sid %s: %v", sid, err)
		c.JSON(http.StatusInternalServerError, map[string]interface{}{"status": http.StatusInternalServerError, "message": "Internal service error"})
		return
	}
	if session == nil {
		c.JSON(http.StatusSeeOther, map[string]interface{}{"status": http.StatusSeeOther, "message": "No bot", "session": map[string]interface{}{}})
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{"status": http.StatusOK, "message": "Bot is running", "session": session.Bot})
}

// Post implements POST /bot: mints a session id, then calls
// Service.CreateBot (spec §4.1).
func (h *BotHandler) Post(ctx context.Context, c *app.RequestContext) {
	var req createBotRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, map[string]interface{}{"status": http.StatusBadRequest, "message": "Invalid request body"})
		return
	}

	sid, err := h.signer.NewSessionID()
	if err != nil {
		hlog.CtxErrorf(ctx, "handler: failed to mint session id: %v", err)
		c.JSON(http.StatusInternalServerError, map[string]interface{}{"status": http.StatusInternalServerError, "message": "Internal service error"})
		return
	}

	if err := h.service.CreateBot(ctx, sid, req.UserName, req.BotName, req.RoomURL, req.Hidden); err != nil {
		status := apierr.Status(err)
		c.JSON(status, map[string]interface{}{"status": status, "message": apierr.Message(err), "session_id": nil})
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{"status": http.StatusOK, "message": "Bot created", "session_id": sid})
}

// Delete implements DELETE /bot (spec §4.1 delete_bot).
func (h *BotHandler) Delete(ctx context.Context, c *app.RequestContext) {
	sid, ok := h.sessionIDFromQuery(c)
	if !ok {
		c.JSON(http.StatusForbidden, map[string]interface{}{"status": http.StatusForbidden, "message": "Invalid session id"})
		return
	}

	if err := h.service.DeleteBot(ctx, sid); err != nil {
		status := apierr.Status(err)
		c.JSON(status, map[string]interface{}{"status": status, "message": apierr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{"status": http.StatusOK, "message": "Bot successfully disconnected"})
}

const botPushInterval = 5 * time.Second
