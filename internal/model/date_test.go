package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("plain day", func(t *testing.T) {
		d, err := ParseDate("2025-01-10")
		require.NoError(t, err)
		assert.Equal(t, "2025-01-10", d.String())
	})

	t.Run("timestamp keeps the calendar day", func(t *testing.T) {
		d, err := ParseDate("2025-01-10T23:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, NewDate(2025, time.January, 10), d)
	})

	t.Run("empty is zero", func(t *testing.T) {
		d, err := ParseDate("  ")
		require.NoError(t, err)
		assert.True(t, d.IsZero())
		assert.Equal(t, "", d.String())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseDate("tomorrow")
		assert.Error(t, err)
	})
}

func TestDateOrdering(t *testing.T) {
	a := NewDate(2025, time.March, 1)
	b := a.AddDays(1)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(DateOf(time.Date(2025, time.March, 1, 18, 0, 0, 0, time.UTC))))
}

func TestDateJSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-02-15"`), &d))
	assert.Equal(t, NewDate(2025, time.February, 15), d)

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())

	b, err := json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, `""`, string(b))
}

func TestStageStateCompletionLockStep(t *testing.T) {
	s := StageState{Person: "Alice"}
	at := time.Date(2025, time.January, 9, 10, 0, 0, 0, time.UTC)

	s.SetCompleted(true, at)
	require.NotNil(t, s.CompletedAt)
	assert.True(t, s.Completed)

	s.SetCompleted(false, at)
	assert.False(t, s.Completed)
	assert.Nil(t, s.CompletedAt)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), NotCompletedMarker)
}

func TestStageStateInUse(t *testing.T) {
	assert.False(t, StageState{Person: "   "}.InUse())
	assert.True(t, StageState{Person: " Bob "}.InUse())
}

func TestProjectCloneIsDeep(t *testing.T) {
	at := time.Now()
	p := Project{ID: "1", Stages: map[StageID]StageState{"design": {Person: "A", Completed: true, CompletedAt: &at}}}
	c := p.Clone()
	st := c.Stages["design"]
	st.Person = "B"
	c.Stages["design"] = st

	assert.Equal(t, "A", p.Stages["design"].Person)
	assert.NotSame(t, p.Stages["design"].CompletedAt, c.Stages["design"].CompletedAt)
}
