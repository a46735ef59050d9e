package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juhd/internal/domain"
)

func TestDecodeCompletions(t *testing.T) {
	raw := []byte(`{"1":[true,false],"2":true,"3":[true,true,true,true,true,true,true,true],"13":[true],"x":[true]}`)

	daily, err := domain.DecodeCompletions(domain.TacticDaily, raw)
	require.NoError(t, err)
	assert.Len(t, daily, 2)
	assert.Equal(t, domain.DailyCompletion{true, false, false, false, false, false, false}, daily[1])
	assert.Len(t, daily[3], domain.DaysPerWeek)
	assert.NotContains(t, daily, 2, "boolean dropped for daily tactic")

	weekly, err := domain.DecodeCompletions(domain.TacticWeekly, raw)
	require.NoError(t, err)
	assert.Equal(t, domain.Completions{2: domain.WeeklyCompletion(true)}, weekly)
}

func TestDecodeCompletions_Empty(t *testing.T) {
	for _, raw := range []string{"", "null", "{}"} {
		c, err := domain.DecodeCompletions(domain.TacticDaily, []byte(raw))
		require.NoError(t, err)
		assert.Empty(t, c)
	}
	_, err := domain.DecodeCompletions(domain.TacticDaily, []byte(`[true]`))
	assert.Error(t, err)
}

func TestTacticJSON(t *testing.T) {
	in := domain.Tactic{
		ID: "t1", GoalID: "g1", Name: "Outreach", Type: domain.TacticDaily,
		AssignedWeeks: []int{1, 2},
		Completions:   domain.Completions{2: domain.NormalizeDaily([]bool{true})},
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"completions":{"2":[true,false,false,false,false,false,false]}`)

	var out domain.Tactic
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestChangeType(t *testing.T) {
	empty := domain.Tactic{Type: domain.TacticDaily, Completions: domain.Completions{1: domain.NormalizeDaily(nil)}}
	got, err := domain.ChangeType(empty, domain.TacticWeekly, false)
	require.NoError(t, err)
	assert.Equal(t, domain.TacticWeekly, got.Type)
	assert.Empty(t, got.Completions)

	withData := domain.Tactic{Type: domain.TacticWeekly, Completions: domain.Completions{4: domain.WeeklyCompletion(true)}}
	unchanged, err := domain.ChangeType(withData, domain.TacticDaily, false)
	assert.True(t, errors.Is(err, domain.ErrConfirmationRequired))
	assert.Equal(t, domain.TacticWeekly, unchanged.Type)
	assert.Len(t, unchanged.Completions, 1)

	confirmed, err := domain.ChangeType(withData, domain.TacticDaily, true)
	require.NoError(t, err)
	assert.Equal(t, domain.TacticDaily, confirmed.Type)
	assert.Empty(t, confirmed.Completions)

	_, err = domain.ChangeType(withData, "monthly", true)
	_, isValidation := domain.AsValidation(err)
	assert.True(t, isValidation)
}

func TestNormalizeWeeks(t *testing.T) {
	got, err := domain.NormalizeWeeks([]int{5, 1, 5, 12})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 12}, got)

	_, err = domain.NormalizeWeeks([]int{0})
	assert.Error(t, err)
	_, err = domain.NormalizeWeeks([]int{13})
	assert.Error(t, err)
}

func TestCheckPermutation(t *testing.T) {
	cur := []string{"a", "b", "c"}
	assert.NoError(t, domain.CheckPermutation(cur, []string{"c", "a", "b"}))
	assert.Error(t, domain.CheckPermutation(cur, []string{"a", "b"}))
	assert.Error(t, domain.CheckPermutation(cur, []string{"a", "a", "b"}))
	assert.Error(t, domain.CheckPermutation(cur, []string{"a", "b", "d"}))
}
