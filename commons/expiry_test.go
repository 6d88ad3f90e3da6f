package commons

import (
	"testing"
	"time"

	irodsfs_common_utils "github.com/cyverse/irodsfs-common/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiryResolve(t *testing.T) {
	now := time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)
	date := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, NeverExpireTime, NewExpiryNever().Resolve(now))
	assert.Equal(t, NeverExpireTime, Expiry{}.Resolve(now))
	assert.Equal(t, date, NewExpiryDate(date).Resolve(now))
	assert.Equal(t, now.Add(90*time.Second), NewExpirySeconds(90*time.Second).Resolve(now))

	// pure function of now
	expiry := NewExpirySeconds(time.Minute)
	assert.Equal(t, expiry.Resolve(now), expiry.Resolve(now))
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)

	assert.False(t, IsExpired(now.Add(time.Nanosecond), now))
	assert.True(t, IsExpired(now, now))
	assert.True(t, IsExpired(now.Add(-time.Second), now))
	assert.False(t, IsExpired(NeverExpireTime, now))
}

func TestParseExpiry(t *testing.T) {
	expiry, err := ParseExpiry("never")
	require.NoError(t, err)
	assert.Equal(t, ExpiryTypeNever, expiry.GetType())

	expiry, err = ParseExpiry("")
	require.NoError(t, err)
	assert.Equal(t, ExpiryTypeNever, expiry.GetType())

	expiry, err = ParseExpiry("1h30m")
	require.NoError(t, err)
	assert.Equal(t, ExpiryTypeSeconds, expiry.GetType())
	assert.Equal(t, "seconds(1h30m0s)", expiry.String())

	expiry, err = ParseExpiry("2030-06-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, ExpiryTypeDate, expiry.GetType())
	assert.Equal(t, "date(2030-06-01T00:00:00Z)", expiry.String())

	_, err = ParseExpiry("-5m")
	assert.Error(t, err)

	_, err = ParseExpiry("tomorrow")
	assert.Error(t, err)
}

func TestExpiryConfig(t *testing.T) {
	expiry, err := ExpiryConfig{}.ToExpiry()
	require.NoError(t, err)
	assert.Equal(t, ExpiryTypeNever, expiry.GetType())

	expiry, err = ExpiryConfig{Type: "SECONDS", Duration: irodsfs_common_utils.Duration(time.Hour)}.ToExpiry()
	require.NoError(t, err)
	assert.Equal(t, ExpiryTypeSeconds, expiry.GetType())

	_, err = ExpiryConfig{Type: ExpiryTypeSeconds}.ToExpiry()
	assert.Error(t, err)

	_, err = ExpiryConfig{Type: ExpiryTypeDate, Date: "not a date"}.ToExpiry()
	assert.Error(t, err)

	_, err = ExpiryConfig{Type: "monthly"}.ToExpiry()
	assert.Error(t, err)

	for _, original := range []Expiry{
		NewExpiryNever(),
		NewExpirySeconds(45 * time.Second),
		NewExpiryDate(time.Date(2031, time.March, 3, 3, 3, 3, 0, time.UTC)),
	} {
		converted, err := NewExpiryConfig(original).ToExpiry()
		require.NoError(t, err)
		assert.Equal(t, original.String(), converted.String())
	}
}
