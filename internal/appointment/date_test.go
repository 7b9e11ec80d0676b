package appointment

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.May, 1), d)

	legacy, err := ParseDate("01/05/2025")
	require.NoError(t, err)
	assert.Equal(t, d, legacy)

	_, err = ParseDate("2025-13-01")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestDateOfUsesLocation(t *testing.T) {
	kl, err := time.LoadLocation("Asia/Kuala_Lumpur")
	require.NoError(t, err)

	// 20:00 UTC on the 30th is already the 1st in Kuala Lumpur.
	at := time.Date(2025, time.April, 30, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, NewDate(2025, time.April, 30), DateOf(at))
	assert.Equal(t, NewDate(2025, time.May, 1), DateOf(at.In(kl)))
}

func TestDateArithmetic(t *testing.T) {
	assert.Equal(t, time.Monday, monday.Weekday())
	assert.Equal(t, tuesday, monday.AddDays(1))
	assert.Equal(t, NewDate(2025, time.March, 1), NewDate(2025, time.February, 28).AddDays(1))
	assert.True(t, monday.Before(tuesday))
	assert.False(t, tuesday.Before(monday))
	assert.True(t, Date{}.IsZero())
}

func TestDateJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Date Date `json:"date"`
	}{monday})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-04-28"}`, string(raw))

	var back struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, monday, back.Date)

	assert.Error(t, json.Unmarshal([]byte(`{"date":"28 April"}`), &back))
}
