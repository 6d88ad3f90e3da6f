package commons

import (
	"fmt"
	"strings"
	"time"

	irodsfs_common_utils "github.com/cyverse/irodsfs-common/utils"
	"github.com/cyverse/objcache/utils"
	"golang.org/x/xerrors"
)

// ExpiryType is the kind of an expiry policy
type ExpiryType string

const (
	// ExpiryTypeNever never expires
	ExpiryTypeNever ExpiryType = "never"
	// ExpiryTypeDate expires at a fixed date
	ExpiryTypeDate ExpiryType = "date"
	// ExpiryTypeSeconds expires a duration after the write
	ExpiryTypeSeconds ExpiryType = "seconds"
)

// NeverExpireTime is the instant an entry with ExpiryTypeNever resolves to
var NeverExpireTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Expiry is an expiry policy, resolved to an absolute instant at write time
type Expiry struct {
	expiryType ExpiryType
	date       time.Time
	duration   time.Duration
}

// NewExpiryNever creates an Expiry that never expires
func NewExpiryNever() Expiry {
	return Expiry{
		expiryType: ExpiryTypeNever,
	}
}

// NewExpiryDate creates an Expiry that expires at the given date
func NewExpiryDate(date time.Time) Expiry {
	return Expiry{
		expiryType: ExpiryTypeDate,
		date:       date,
	}
}

// NewExpirySeconds creates an Expiry that expires the given duration after the write
func NewExpirySeconds(duration time.Duration) Expiry {
	return Expiry{
		expiryType: ExpiryTypeSeconds,
		duration:   duration,
	}
}

// GetType returns the kind of the expiry
func (expiry Expiry) GetType() ExpiryType {
	if len(expiry.expiryType) == 0 {
		return ExpiryTypeNever
	}
	return expiry.expiryType
}

// Resolve returns the absolute expiration instant for a write at now
func (expiry Expiry) Resolve(now time.Time) time.Time {
	switch expiry.GetType() {
	case ExpiryTypeDate:
		return expiry.date
	case ExpiryTypeSeconds:
		return now.Add(expiry.duration)
	default:
		return NeverExpireTime
	}
}

// IsExpired tells if an entry expiring at expiresAt has expired at now
func IsExpired(expiresAt time.Time, now time.Time) bool {
	return !now.Before(expiresAt)
}

// String stringifies the expiry
func (expiry Expiry) String() string {
	switch expiry.GetType() {
	case ExpiryTypeDate:
		return fmt.Sprintf("date(%s)", utils.MakeTimeToString(expiry.date))
	case ExpiryTypeSeconds:
		return fmt.Sprintf("seconds(%s)", expiry.duration.String())
	default:
		return "never"
	}
}

// ExpiryConfig is a serializable form of Expiry
type ExpiryConfig struct {
	Type     ExpiryType                    `yaml:"type" json:"type"`
	Date     string                        `yaml:"date,omitempty" json:"date,omitempty"`
	Duration irodsfs_common_utils.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// NewExpiryConfig converts Expiry to its serializable form
func NewExpiryConfig(expiry Expiry) ExpiryConfig {
	switch expiry.GetType() {
	case ExpiryTypeDate:
		return ExpiryConfig{
			Type: ExpiryTypeDate,
			Date: utils.MakeTimeToString(expiry.date),
		}
	case ExpiryTypeSeconds:
		return ExpiryConfig{
			Type:     ExpiryTypeSeconds,
			Duration: irodsfs_common_utils.Duration(expiry.duration),
		}
	default:
		return ExpiryConfig{
			Type: ExpiryTypeNever,
		}
	}
}

// ToExpiry converts ExpiryConfig to Expiry
func (config ExpiryConfig) ToExpiry() (Expiry, error) {
	switch ExpiryType(strings.ToLower(string(config.Type))) {
	case "", ExpiryTypeNever:
		return NewExpiryNever(), nil
	case ExpiryTypeDate:
		date, err := utils.ParseTime(config.Date)
		if err != nil {
			return Expiry{}, xerrors.Errorf("failed to parse expiry date %q: %w", config.Date, err)
		}
		return NewExpiryDate(date), nil
	case ExpiryTypeSeconds:
		duration := time.Duration(config.Duration)
		if duration <= 0 {
			return Expiry{}, xerrors.Errorf("expiry duration must be positive, got %s", duration.String())
		}
		return NewExpirySeconds(duration), nil
	default:
		return Expiry{}, xerrors.Errorf("unknown expiry type %q", config.Type)
	}
}

// ParseExpiry parses a command-line expiry: "never", an RFC3339 date, or a duration such as "1h"
func ParseExpiry(value string) (Expiry, error) {
	value = strings.TrimSpace(value)
	if len(value) == 0 || strings.EqualFold(value, string(ExpiryTypeNever)) {
		return NewExpiryNever(), nil
	}

	if duration, err := time.ParseDuration(value); err == nil {
		if duration <= 0 {
			return Expiry{}, xerrors.Errorf("expiry duration must be positive, got %s", value)
		}
		return NewExpirySeconds(duration), nil
	}

	date, err := utils.ParseTime(value)
	if err != nil {
		return Expiry{}, xerrors.Errorf("failed to parse expiry %q, expected never, a duration or an RFC3339 date", value)
	}
	return NewExpiryDate(date), nil
}
