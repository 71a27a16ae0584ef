package userrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bifshteksex/roombot/internal/model"
)

// Repository persists users and their bot profiles, implementing the
// Postgres side of spec §4.1 step 4 ("Upsert user and bot rows") and the
// durable write-backs the Balancer performs on session close and every
// heartbeat (spec §4.3). Grounded on the teacher's UserRepository (pgx
// QueryRow/Exec, pgx.ErrNoRows -> nil,nil) and WorkspaceRepository
// (JSONB columns marshaled with encoding/json, transactional upserts).
type Repository struct {
	db *pgxpool.Pool
}

// New creates a Repository over an open pool.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetOrCreateUser looks up a user by (name, tripcode), inserting one with
// passcodeHash if absent. Called from Service.create_bot step 4 after the
// chat-service tripcode lookup, mirroring the original's
// `postgres.get_or_create_user(user_name, user_tripcode, user_passcode)`.
// An existing row's passcode hash is left untouched — a user's passcode is
// set once, at first creation.
func (r *Repository) GetOrCreateUser(ctx context.Context, name, tripcode, passcodeHash string) (*model.UserIdentity, error) {
	const selectQuery = `
		SELECT id, name, tripcode, passcode_hash
		FROM users
		WHERE name = $1 AND tripcode = $2
	`
	var u model.UserIdentity
	err := r.db.QueryRow(ctx, selectQuery, name, tripcode).Scan(&u.ID, &u.Name, &u.Tripcode, &u.PasscodeHash)
	if err == nil {
		return &u, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	const insertQuery = `
		INSERT INTO users (id, name, tripcode, passcode_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, tripcode) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, tripcode, passcode_hash
	`
	id := uuid.New().String()
	err = r.db.QueryRow(ctx, insertQuery, id, name, tripcode, passcodeHash).Scan(&u.ID, &u.Name, &u.Tripcode, &u.PasscodeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

// GetOrCreateBot loads the bot profile owned by userID, creating a
// default one (prefix "-", empty whitelist/blacklist/groups) with
// passcodeHash if absent, mirroring the original's
// `postgres.get_or_create_bot(bot_name, bot_passcode, user_id)`. The
// bot's own tripcode is left blank: original_source never resolves one
// at create time either — only the user's tripcode is read from the
// chat-service lounge — so the bot's tripcode is whatever the Worker's
// own chat-service login later reports (spec §4.4 createInstance).
func (r *Repository) GetOrCreateBot(ctx context.Context, userID, botName, passcodeHash string) (*model.BotProfile, error) {
	profile, err := r.GetBotByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	profile = &model.BotProfile{
		Name:          botName,
		PasscodeHash:  passcodeHash,
		Icon:          "",
		Language:      "en",
		CommandPrefix: "-",
		Whitelist:     map[string]int64{},
		Blacklist:     map[string]model.BlacklistEntry{},
		Groups:        map[string]model.Group{},
		UserID:        userID,
	}
	if err := r.UpsertBot(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// GetBotByUserID returns the bot profile for a user, or nil if none
// exists yet.
func (r *Repository) GetBotByUserID(ctx context.Context, userID string) (*model.BotProfile, error) {
	const query = `
		SELECT name, tripcode, passcode, icon, language, command_prefix,
		       whitelist, blacklist, groups, user_id
		FROM bots
		WHERE user_id = $1
	`
	var (
		p                                    model.BotProfile
		whitelistJSON, blacklistJSON, groups []byte
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.Name, &p.Tripcode, &p.PasscodeHash, &p.Icon, &p.Language, &p.CommandPrefix,
		&whitelistJSON, &blacklistJSON, &groups, &p.UserID,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}
	if err := unmarshalBotJSON(&p, whitelistJSON, blacklistJSON, groups); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertBot inserts or overwrites a bot's full profile. This is the
// write-back path invoked by the Balancer on `deleted`, `disconnected`,
// and `update` signals (spec §4.3), and on bot creation.
func (r *Repository) UpsertBot(ctx context.Context, p *model.BotProfile) error {
	whitelistJSON, err := json.Marshal(p.Whitelist)
	if err != nil {
		return fmt.Errorf("failed to marshal whitelist: %w", err)
	}
	blacklistJSON, err := json.Marshal(p.Blacklist)
	if err != nil {
		return fmt.Errorf("failed to marshal blacklist: %w", err)
	}
	groupsJSON, err := json.Marshal(p.Groups)
	if err != nil {
		return fmt.Errorf("failed to marshal groups: %w", err)
	}

	const query = `
		INSERT INTO bots (id, user_id, name, tripcode, passcode, icon, language,
		                   command_prefix, whitelist, blacklist, groups)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			tripcode = EXCLUDED.tripcode,
			passcode = EXCLUDED.passcode,
			icon = EXCLUDED.icon,
			language = EXCLUDED.language,
			command_prefix = EXCLUDED.command_prefix,
			whitelist = EXCLUDED.whitelist,
			blacklist = EXCLUDED.blacklist,
			groups = EXCLUDED.groups,
			updated_at = NOW()
	`
	_, err = r.db.Exec(ctx, query,
		uuid.New().String(), p.UserID, p.Name, p.Tripcode, p.PasscodeHash, p.Icon, p.Language,
		p.CommandPrefix, whitelistJSON, blacklistJSON, groupsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert bot: %w", err)
	}
	return nil
}

func unmarshalBotJSON(p *model.BotProfile, whitelist, blacklist, groups []byte) error {
	if err := json.Unmarshal(whitelist, &p.Whitelist); err != nil {
		return fmt.Errorf("failed to unmarshal whitelist: %w", err)
	}
	if err := json.Unmarshal(blacklist, &p.Blacklist); err != nil {
		return fmt.Errorf("failed to unmarshal blacklist: %w", err)
	}
	if err := json.Unmarshal(groups, &p.Groups); err != nil {
		return fmt.Errorf("failed to unmarshal groups: %w", err)
	}
	if p.Whitelist == nil {
		p.Whitelist = map[string]int64{}
	}
	if p.Blacklist == nil {
		p.Blacklist = map[string]model.BlacklistEntry{}
	}
	if p.Groups == nil {
		p.Groups = map[string]model.Group{}
	}
	return nil
}
