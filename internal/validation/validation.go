// Package validation implements the create_bot request checks from
// original_source/service/validation.py: the "name#passcode" combined
// string format shared by user_name and bot_name, and the drrr.com room
// URL shape. spec.md §6 names the POST /bot body fields only at the
// wire level; original_source resolves the exact parsing and length
// rules. Grounded on the teacher's preference for stdlib string/regexp
// handling over a validation framework for request-shape checks.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bifshteksex/roombot/internal/apierr"
)

const (
	maxNameLen    = 20
	minPasscodeLen = 6
)

// roomURLPattern mirrors original_source's ROOM_URL_PATTERN: an optional
// scheme, the drrr.com room path, and a 10-character room id.
var roomURLPattern = regexp.MustCompile(`^(?:https?://)?drrr\.com/room/\?id=(?P<id>.{10})$`)

const roomURLBase = "drrr.com/room/?id="

// Identity is a parsed "name#passcode" string: the portion before the
// first '#' is the display name, the portion from '#' onward (including
// the '#' itself) is the raw passcode.
type Identity struct {
	Name     string
	Passcode string
}

// ParseIdentity splits a combined "name#passcode" string and validates
// both halves, matching validate_user_name/validate_bot_name's shared
// rules: name non-empty and at most 20 characters, passcode present and
// at least 6 characters including its leading '#'.
func ParseIdentity(raw string) (Identity, error) {
	name, passcode, found := strings.Cut(raw, "#")
	if !found {
		return Identity{}, fmt.Errorf("%w: missing passcode separator", apierr.ErrValidation)
	}
	passcode = "#" + passcode

	if name == "" {
		return Identity{}, fmt.Errorf("%w: name must not be empty", apierr.ErrValidation)
	}
	if len(name) > maxNameLen {
		return Identity{}, fmt.Errorf("%w: name exceeds %d characters", apierr.ErrValidation, maxNameLen)
	}
	if len(passcode) < minPasscodeLen {
		return Identity{}, fmt.Errorf("%w: passcode must be at least %d characters", apierr.ErrValidation, minPasscodeLen)
	}

	return Identity{Name: name, Passcode: passcode}, nil
}

// ValidateUserName parses and validates the create_bot request's
// user_name field.
func ValidateUserName(raw string) (Identity, error) {
	id, err := ParseIdentity(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid user_name: %w", err)
	}
	return id, nil
}

// ValidateBotName parses and validates the create_bot request's
// bot_name field.
func ValidateBotName(raw string) (Identity, error) {
	id, err := ParseIdentity(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid bot_name: %w", err)
	}
	return id, nil
}

// ValidateRoomURL checks a room_url against the drrr.com room pattern,
// accepting either a full URL or a bare room id, and returns the room id
// captured from it.
func ValidateRoomURL(raw string) (string, error) {
	if m := roomURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if m := roomURLPattern.FindStringSubmatch(roomURLBase + raw); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: invalid room_url", apierr.ErrValidation)
}

// CreateCommand is the fully parsed, validated POST /bot request.
type CreateCommand struct {
	User    Identity
	Bot     Identity
	RoomID  string
	RoomURL string
	Hidden  bool
}

// ValidateCreateCommand runs every create_bot validation rule: both
// identities parse, the room URL resolves to a room id, and the user and
// bot names are distinct (original_source: "user_name != bot_name").
func ValidateCreateCommand(userName, botName, roomURL string, hidden bool) (CreateCommand, error) {
	user, err := ValidateUserName(userName)
	if err != nil {
		return CreateCommand{}, err
	}
	bot, err := ValidateBotName(botName)
	if err != nil {
		return CreateCommand{}, err
	}
	if user.Name == bot.Name {
		return CreateCommand{}, fmt.Errorf("%w: user_name and bot_name must differ", apierr.ErrValidation)
	}
	roomID, err := ValidateRoomURL(roomURL)
	if err != nil {
		return CreateCommand{}, err
	}

	return CreateCommand{
		User:    user,
		Bot:     bot,
		RoomID:  roomID,
		RoomURL: roomURL,
		Hidden:  hidden,
	}, nil
}
