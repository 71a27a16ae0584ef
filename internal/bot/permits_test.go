package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bifshteksex/roombot/internal/model"
)

func TestEffectiveOwnerShortCircuitsToAdmin(t *testing.T) {
	p := NewPermits("root", nil, nil)
	assert.Equal(t, model.PermitAdmin, p.Effective("root", "anytripcode"))
}

func TestEffectiveDefaultsToUserWithNoGroups(t *testing.T) {
	p := NewPermits("root", nil, nil)
	assert.Equal(t, model.PermitUser, p.Effective("stranger", ""))
}

func TestEffectiveTakesMinimumRankAcrossGroups(t *testing.T) {
	groups := map[string]model.Group{
		"mods": {Name: "mods", Permit: model.PermitModer, Members: map[string][]string{"alice": nil}},
		"djs":  {Name: "djs", Permit: model.PermitDJ, Members: map[string][]string{"alice": nil}},
	}
	p := NewPermits("root", groups, nil)
	assert.Equal(t, model.PermitModer, p.Effective("alice", ""))
}

func TestEffectiveRequiresTripcodeWhenGroupDemandsIt(t *testing.T) {
	groups := map[string]model.Group{
		"djs": {
			Name:            "djs",
			Permit:          model.PermitDJ,
			RequireTripcode: true,
			Members:         map[string][]string{"alice": {"abc123"}},
		},
	}
	p := NewPermits("root", groups, nil)

	assert.Equal(t, model.PermitDJ, p.Effective("alice", "abc123"))
	assert.Equal(t, model.PermitUser, p.Effective("alice", "wrong"))
}

func TestEffectiveEmptyTripcodeListAcceptsAny(t *testing.T) {
	groups := map[string]model.Group{
		"djs": {
			Name:            "djs",
			Permit:          model.PermitDJ,
			RequireTripcode: true,
			Members:         map[string][]string{"alice": {}},
		},
	}
	p := NewPermits("root", groups, nil)
	assert.Equal(t, model.PermitDJ, p.Effective("alice", "whatever"))
}

func TestIsBannedReportsBlacklistMembership(t *testing.T) {
	p := NewPermits("root", nil, map[string]model.BlacklistEntry{"spammer": {Status: "banned", Reason: "spam"}})
	assert.True(t, p.IsBanned("spammer"))
	assert.False(t, p.IsBanned("alice"))
}
