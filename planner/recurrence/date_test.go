package recurrence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_Arithmetic(t *testing.T) {
	assert.Equal(t, d("2024-03-01"), d("2024-02-29").AddDays(1))
	assert.Equal(t, d("2023-12-31"), d("2024-01-01").AddDays(-1))
	assert.Equal(t, 366, d("2024-01-01").DaysUntil(d("2025-01-01")))
	assert.Equal(t, -3, d("2024-01-04").DaysUntil(d("2024-01-01")))
	assert.Equal(t, 137331, d("2024-01-01").DaysUntil(d("2400-01-01")))
	assert.Equal(t, -137331, d("2400-01-01").DaysUntil(d("2024-01-01")))
	assert.Equal(t, 14, d("2023-11-15").MonthsUntil(d("2025-01-01")))
	assert.Equal(t, time.Monday, d("2024-01-01").Weekday())
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2100, time.February))
}

func TestDate_DaysUntilAcrossDST(t *testing.T) {
	// The European spring-forward night is 23 hours long in local time.
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	before := DateOf(time.Date(2024, 3, 30, 23, 30, 0, 0, loc))
	after := DateOf(time.Date(2024, 3, 31, 23, 30, 0, 0, loc))
	assert.Equal(t, 1, before.DaysUntil(after))
}

func TestDate_Compare(t *testing.T) {
	assert.True(t, d("2024-01-01").Before(d("2024-01-02")))
	assert.True(t, d("2024-02-01").After(d("2024-01-31")))
	assert.True(t, d("2024-01-01").Equal(NewDate(2024, time.January, 1)))
	assert.Equal(t, d("2024-01-01"), MinDate(d("2024-01-05"), d("2024-01-01")))
}

func TestDate_ParseAndValidity(t *testing.T) {
	_, err := ParseDate("2024-02-30")
	assert.Error(t, err)
	_, err = ParseDate("15/03/2024")
	assert.Error(t, err)

	assert.True(t, Date{Year: 2024, Month: time.February, Day: 29}.Valid())
	assert.False(t, Date{Year: 2023, Month: time.February, Day: 29}.Valid())
	assert.True(t, Date{}.IsZero())
	assert.Equal(t, "", Date{}.String())
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		When Date  `json:"when"`
		Opt  *Date `json:"opt,omitempty"`
	}

	out, err := json.Marshal(payload{When: d("2024-03-15")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"when":"2024-03-15"}`, string(out))

	var in payload
	require.NoError(t, json.Unmarshal([]byte(`{"when":"2024-01-07","opt":"2024-02-01"}`), &in))
	assert.Equal(t, d("2024-01-07"), in.When)
	require.NotNil(t, in.Opt)
	assert.Equal(t, d("2024-02-01"), *in.Opt)

	assert.Error(t, json.Unmarshal([]byte(`{"when":"tomorrow"}`), &in))
}
