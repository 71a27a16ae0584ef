// Permit/group resolution, carried into SPEC_FULL.md from
// original_source/bot/mods/profile/groups.py beyond spec §4.5's one-line
// summary.
package bot

import "github.com/bifshteksex/roombot/internal/model"

// Permits resolves a user's effective permit level against a bot's
// configured groups and blacklist (spec §4.5 "Groups and
// permits").
type Permits struct {
	OwnerName string
	Groups    map[string]model.Group
	Blacklist map[string]model.BlacklistEntry
}

// NewPermits builds a Permits resolver over a bot profile's group table.
func NewPermits(ownerName string, groups map[string]model.Group, blacklist map[string]model.BlacklistEntry) *Permits {
	return &Permits{OwnerName: ownerName, Groups: groups, Blacklist: blacklist}
}

// Effective returns the caller's effective permit rank: the admin
// identity short-circuits to PermitAdmin, otherwise it is the minimum
// rank across every group the (name, tripcode) pair belongs to, or
// PermitUser if they belong to none.
func (p *Permits) Effective(name, tripcode string) int {
	if name == p.OwnerName {
		return model.PermitAdmin
	}

	best := model.PermitUser
	for _, group := range p.Groups {
		if !p.isMember(group, name, tripcode) {
			continue
		}
		if group.Permit < best {
			best = group.Permit
		}
	}
	return best
}

func (p *Permits) isMember(group model.Group, name, tripcode string) bool {
	tripcodes, ok := group.Members[name]
	if !ok {
		return false
	}
	if !group.RequireTripcode {
		return true
	}
	if len(tripcodes) == 0 {
		return true // empty list = accept any tripcode
	}
	for _, tc := range tripcodes {
		if tc == tripcode {
			return true
		}
	}
	return false
}

// IsBanned reports whether name is on the blacklist.
func (p *Permits) IsBanned(name string) bool {
	_, banned := p.Blacklist[name]
	return banned
}
