package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/hertz-contrib/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/bifshteksex/roombot/internal/model"
)

// sessionSubscriber is the narrow surface WS /bot/ws needs: one read of
// the current session plus a live feed of bot-profile updates, so a
// published update reaches the client without waiting for the push
// loop's next poll (spec §4.3 `update` signal fans out through
// sessionstore.Store.UpdateBot's publish).
type sessionSubscriber interface {
	sessionReader
	SubscribeBotUpdates(ctx context.Context, sid string) *redis.PubSub
}

// WebSocketHandler implements WS /bot/ws (spec §6), grounded on
// original_source/api/handlers.py's bot_ws_session (accept, then every
// 5s push `$.bot` or close(1000) once the session is gone) with a Redis
// subscription added alongside the 5s polling loop so updates land
// immediately instead of on the next tick, same as the teacher's own
// Hub.Publish/PSubscribe fan-out shape. The poll still runs, and it is
// what closes the connection once the session is gone.
type WebSocketHandler struct {
	sessions sessionSubscriber
	signer   interface {
		Verify(salt, token string) (string, bool)
	}
	upgrader websocket.HertzUpgrader
}

// NewWebSocketHandler constructs a WebSocketHandler that accepts any
// origin (CheckOrigin always true), matching original_source's "no
// chat-service auth" scope — the only gate here is the signed session_id.
func NewWebSocketHandler(sessions sessionSubscriber, signer interface {
	Verify(salt, token string) (string, bool)
}) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		signer:   signer,
		upgrader: websocket.HertzUpgrader{
			CheckOrigin: func(ctx *app.RequestContext) bool { return true },
		},
	}
}

// Handle upgrades the connection and pushes bot-profile updates until the
// session disappears or the client disconnects.
func (h *WebSocketHandler) Handle(ctx context.Context, c *app.RequestContext) {
	token := c.Query("session_id")
	sid, ok := h.signer.Verify("session", token)
	if !ok {
		c.AbortWithStatus(403)
		return
	}

	err := h.upgrader.Upgrade(c, func(conn *websocket.Conn) {
		h.serve(ctx, conn, sid)
	})
	if err != nil {
		hlog.CtxErrorf(ctx, "handler: websocket upgrade failed for sid %s: %v", sid, err)
	}
}

func (h *WebSocketHandler) serve(ctx context.Context, conn *websocket.Conn, sid string) {
	defer conn.Close()

	sub := h.sessions.SubscribeBotUpdates(ctx, sid)
	defer sub.Close()
	updates := sub.Channel()

	if err := h.pushCurrentBot(ctx, conn, sid); err != nil {
		return
	}

	ticker := time.NewTicker(botPushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-updates:
			if !open {
				return
			}
			var profile model.BotProfile
			if err := json.Unmarshal([]byte(msg.Payload), &profile); err != nil {
				hlog.CtxErrorf(ctx, "handler: bad bot update for sid %s: %v", sid, err)
				continue
			}
			if err := conn.WriteJSON(profile); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.pushCurrentBot(ctx, conn, sid); err != nil {
				return
			}
		}
	}
}

// pushCurrentBot sends the session's current bot profile, or closes the
// connection with code 1000 if the session no longer exists
// (original_source: "return await websocket.close(code=1000, reason=
// 'Bot disconnected')").
func (h *WebSocketHandler) pushCurrentBot(ctx context.Context, conn *websocket.Conn, sid string) error {
	session, err := h.sessions.GetSession(ctx, sid)
	if err != nil {
		hlog.CtxErrorf(ctx, "handler: GetSession failed for sid %s: %v", sid, err)
		return err
	}
	if session == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Bot disconnected"),
			time.Now().Add(time.Second))
		return errSessionGone
	}
	return conn.WriteJSON(session.Bot)
}
