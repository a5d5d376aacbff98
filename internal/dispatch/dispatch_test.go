package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatrix(t *testing.T) {
	raw := []byte(`[
		{"level": 0, "contact_ids": [1, 2], "channels": ["sms"]},
		{"level": 1, "contact_ids": [3], "channels": ["sms", "call"]}
	]`)

	tiers, err := ParseMatrix(raw)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, []uint{1, 2}, tiers[0].ContactIDs)
	assert.Equal(t, []string{"sms", "call"}, tiers[1].Channels)
}

func TestParseMatrix_Empty(t *testing.T) {
	tiers, err := ParseMatrix(nil)
	require.NoError(t, err)
	assert.Nil(t, tiers)

	tiers, err = ParseMatrix([]byte{})
	require.NoError(t, err)
	assert.Nil(t, tiers)
}

func TestParseMatrix_Malformed(t *testing.T) {
	_, err := ParseMatrix([]byte(`{"level": 0}`))
	assert.Error(t, err)
}

func TestTierForLevel(t *testing.T) {
	tiers := []Tier{
		{Level: 0, ContactIDs: []uint{1}},
		{Level: 1, ContactIDs: []uint{2}},
		{Level: 2, ContactIDs: []uint{3}},
	}

	tier, ok := TierForLevel(tiers, 1)
	require.True(t, ok)
	assert.Equal(t, []uint{2}, tier.ContactIDs)

	// Levels past the matrix clamp to the last tier.
	tier, ok = TierForLevel(tiers, 9)
	require.True(t, ok)
	assert.Equal(t, []uint{3}, tier.ContactIDs)
}

func TestTierForLevel_InitialDispatchOneBasedMatrix(t *testing.T) {
	// Companies configure tiers starting at level 1; the initial dispatch
	// at creation passes level 0 and must reach the first tier, never the
	// most escalated one.
	tiers := []Tier{
		{Level: 1, ContactIDs: []uint{10}, Channels: []string{"sms"}},
		{Level: 2, ContactIDs: []uint{20}, Channels: []string{"sms", "call"}},
		{Level: 3, ContactIDs: []uint{30}, Channels: []string{"call"}},
	}

	tier, ok := TierForLevel(tiers, 0)
	require.True(t, ok)
	assert.Equal(t, 1, tier.Level)
	assert.Equal(t, []uint{10}, tier.ContactIDs)
}

func TestTierForLevel_NoMatrix(t *testing.T) {
	_, ok := TierForLevel(nil, 0)
	assert.False(t, ok)
}
