package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	cases := []struct {
		in     string
		want   Intent
		wantOK bool
	}{
		{"GENERAL", IntentGeneral, true},
		{"clothing", IntentClothing, true},
		{" Outfit_Analysis ", IntentOutfitAnalysis, true},
		{"", "", false},
		{"SHOPPING", "", false},
	}

	for _, tc := range cases {
		got, ok := ParseIntent(tc.in)
		require.Equal(t, tc.wantOK, ok, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestDefaultTaskFor(t *testing.T) {
	require.Equal(t, TaskItemSearch, DefaultTaskFor(IntentClothing))
	require.Equal(t, TaskOutfitComparison, DefaultTaskFor(IntentOutfitAnalysis))
	require.Equal(t, TaskGeneralChat, DefaultTaskFor(IntentGeneral))
}

func TestFallbackIntent(t *testing.T) {
	got := FallbackIntent("classifier unreachable")

	require.Equal(t, IntentClothing, got.Intent)
	require.Equal(t, TaskItemSearch, got.TaskType)
	require.Zero(t, got.Confidence)
	require.True(t, got.Fallback)
}
