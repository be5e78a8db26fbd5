package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sankalp/sankalp/internal/model"
)

func TestMergeAwards(t *testing.T) {
	held := []string{"streak_3"}
	awards := []model.BadgeAward{
		{BadgeID: "streak_3", XP: 25},
		{BadgeID: "streak_7", XP: 50},
		{BadgeID: "streak_7", XP: 50},
		{BadgeID: "journal_10", XP: 75},
	}

	granted, badges, xp := MergeAwards(held, awards)

	assert.Equal(t, []model.BadgeAward{{BadgeID: "streak_7", XP: 50}, {BadgeID: "journal_10", XP: 75}}, granted)
	assert.Equal(t, []string{"streak_3", "streak_7", "journal_10"}, badges)
	assert.Equal(t, 125, xp)
	assert.Equal(t, []string{"streak_3"}, held, "input must not be modified")
}

func TestMergeAwards_NothingNew(t *testing.T) {
	granted, badges, xp := MergeAwards([]string{"a"}, []model.BadgeAward{{BadgeID: "a", XP: 10}})
	assert.Empty(t, granted)
	assert.Equal(t, []string{"a"}, badges)
	assert.Zero(t, xp)
}
