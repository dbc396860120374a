package schoolyear

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseAcceptedFormats(t *testing.T) {
	for _, label := range []string{"2024/25", "2024-25", "2024-2025"} {
		year, err := Parse(label)
		require.NoError(t, err, label)
		assert.Equal(t, "2024/25", year.String(), label)
	}
}

func TestParseRejectsMalformedLabels(t *testing.T) {
	for _, label := range []string{"", "2024", "24/25", "2024/26", "2024-2026", "2024/255", "abcd/ef", "2024 25"} {
		_, err := Parse(label)
		require.Error(t, err, label)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidYearLabel), label)
	}
}

func TestParseCenturyRollover(t *testing.T) {
	year, err := Parse("2099/00")
	require.NoError(t, err)
	assert.Equal(t, 2099, year.StartYear())
}

func TestForDateBoundaries(t *testing.T) {
	assert.Equal(t, "2024/25", ForDate(date(2024, time.August, 1)).String())
	assert.Equal(t, "2023/24", ForDate(date(2024, time.July, 31)).String())
	assert.Equal(t, "2024/25", ForDate(date(2025, time.July, 31)).String())
	assert.Equal(t, "2025/26", ForDate(date(2025, time.August, 1)).String())
	assert.Equal(t, "2024/25", ForDate(date(2024, time.December, 24)).String())
	assert.Equal(t, "2023/24", ForDate(date(2024, time.March, 15)).String())
}

func TestBounds(t *testing.T) {
	year, err := Parse("2024/25")
	require.NoError(t, err)

	start, end := year.Bounds()
	assert.Equal(t, date(2024, time.August, 1), start)
	assert.Equal(t, date(2025, time.July, 31), end)
}

func TestBoundsContainRoundTrip(t *testing.T) {
	// Every date maps to a year whose bounds contain it.
	for _, d := range []time.Time{
		date(2024, time.January, 1),
		date(2024, time.July, 31),
		date(2024, time.August, 1),
		date(2024, time.December, 31),
		date(2025, time.February, 28),
	} {
		year := ForDate(d)
		start, end := year.Bounds()
		assert.False(t, d.Before(start), "%s not before start of %s", d, year)
		assert.False(t, d.After(end), "%s not after end of %s", d, year)
		assert.True(t, year.Contains(d))
	}
}

func TestOrderingAndNeighbours(t *testing.T) {
	year := FromStartYear(2024)
	assert.Equal(t, "2025/26", year.Next().String())
	assert.Equal(t, "2023/24", year.Prev().String())
	assert.True(t, year.Before(year.Next()))
	assert.True(t, year.After(year.Prev()))
	assert.False(t, year.Before(year))
}

func TestTextRoundTrip(t *testing.T) {
	year := FromStartYear(2024)
	text, err := year.MarshalText()
	require.NoError(t, err)

	var decoded Year
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, year, decoded)
}
