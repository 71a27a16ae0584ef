// Package service implements spec §4.1's front-end core: create_bot and
// delete_bot, the two operations the HTTP handler layer calls into.
// Grounded directly on original_source/service/main.py's Service class
// (the exact 6-step create_bot sequence: idempotence check, validation,
// chat-service tripcode/room resolution, Postgres upsert, Redis session
// write, Router publish with rollback-on-publish-error). The narrow
// `chatResolver`/`userStore` interfaces follow the same minimal-surface-
// for-testing idiom used by dispatch.publisher and balancer.replier
// (itself modeled on the teacher's health.SFUChecker).
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bifshteksex/roombot/internal/apierr"
	"github.com/bifshteksex/roombot/internal/chatclient"
	"github.com/bifshteksex/roombot/internal/model"
	"github.com/bifshteksex/roombot/internal/userrepo"
	"github.com/bifshteksex/roombot/internal/validation"
)

// chatResolver is the narrow chat-service surface create_bot needs: log
// in with the raw "name#passcode" string and read back the lounge
// snapshot used to resolve the caller's tripcode and verify room
// membership.
type chatResolver interface {
	LoginFullName(ctx context.Context, fullName string) (string, error)
	GetLounge(ctx context.Context, token string) (chatclient.Lounge, error)
}

// userStore is the narrow Postgres surface create_bot needs.
type userStore interface {
	GetOrCreateUser(ctx context.Context, name, tripcode, passcodeHash string) (*model.UserIdentity, error)
	GetOrCreateBot(ctx context.Context, userID, botName, passcodeHash string) (*model.BotProfile, error)
}

// sessionStore is the narrow Redis surface create_bot/delete_bot need.
type sessionStore interface {
	SessionExists(ctx context.Context, sid string) (bool, error)
	CreateSession(ctx context.Context, session *model.Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, sid string) error
}

// router is the narrow broker-dispatch surface create_bot/delete_bot
// need.
type router interface {
	Create(ctx context.Context, sid string) error
	Delete(ctx context.Context, sid string) error
}

// Service wires validation, chat-service resolution, Postgres and Redis
// persistence, and broker dispatch into the two operations spec §4.1
// names.
type Service struct {
	chat      chatResolver
	users     userStore
	sessions  sessionStore
	router    router
	sessionTTL time.Duration
}

// New constructs a Service. sessionTTL is spec §6's SESSION_TTL.
func New(chat chatResolver, users userStore, sessions sessionStore, router router, sessionTTL time.Duration) *Service {
	return &Service{chat: chat, users: users, sessions: sessions, router: router, sessionTTL: sessionTTL}
}

// CreateBot implements spec §4.1's create_bot: idempotence check,
// validation, chat-service resolution, Postgres upsert, Redis session
// write, Router publish — unwinding the Redis write if the publish
// fails, exactly as original_source's create_bot does.
func (s *Service) CreateBot(ctx context.Context, sid, userName, botName, roomURL string, hidden bool) error {
	exists, err := s.sessions.SessionExists(ctx, sid)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}
	if exists {
		return apierr.ErrAlreadyCreated
	}

	cmd, err := validation.ValidateCreateCommand(userName, botName, roomURL, hidden)
	if err != nil {
		return err
	}

	token, err := s.chat.LoginFullName(ctx, userName)
	if err != nil {
		return err
	}
	lounge, err := s.chat.GetLounge(ctx, token)
	if err != nil {
		return err
	}
	userTripcode, roomName, err := chatclient.ResolveUserInfo(lounge, cmd.Bot.Name, cmd.RoomID, cmd.Hidden)
	if err != nil {
		return err
	}

	userPasscodeHash, err := userrepo.HashPasscode(cmd.User.Passcode)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}
	user, err := s.users.GetOrCreateUser(ctx, cmd.User.Name, userTripcode, userPasscodeHash)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}

	botPasscodeHash, err := userrepo.HashPasscode(cmd.Bot.Passcode)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}
	bot, err := s.users.GetOrCreateBot(ctx, user.ID, cmd.Bot.Name, botPasscodeHash)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}

	session := &model.Session{
		SID:  sid,
		Room: model.Room{ID: cmd.RoomID, URL: roomURL, Name: roomName, Hidden: cmd.Hidden},
		User: *user,
		Bot:  *bot,
	}
	if err := s.sessions.CreateSession(ctx, session, s.sessionTTL); err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}

	if err := s.router.Create(ctx, sid); err != nil {
		_ = s.sessions.DeleteSession(ctx, sid)
		return err
	}
	return nil
}

// DeleteBot implements spec §4.1's delete_bot: existence check, Router
// publish.
func (s *Service) DeleteBot(ctx context.Context, sid string) error {
	exists, err := s.sessions.SessionExists(ctx, sid)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}
	if !exists {
		return apierr.ErrNoBot
	}
	return s.router.Delete(ctx, sid)
}
