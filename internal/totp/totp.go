// Package totp computes time-based one-time passwords for entries that
// carry an otpauth:// URI or a raw seed.
package totp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultPeriod = 30 // seconds
	DefaultDigits = 6
)

var ErrNoSeed = errors.New("no totp seed configured")

// Settings describes how to compute a code for one entry.
type Settings struct {
	Key    string `json:"key"` // base32 seed, no padding
	Digits int    `json:"digits"`
	Period int    `json:"period"` // seconds
}

// Parse reads TOTP settings from an attribute value: either a full
// otpauth:// URI or a bare base32 seed with default parameters.
func Parse(value string) (*Settings, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrNoSeed
	}

	if strings.HasPrefix(value, "otpauth://") {
		key, err := otp.NewKeyFromURL(value)
		if err != nil {
			return nil, fmt.Errorf("invalid otpauth url: %w", err)
		}
		settings := &Settings{
			Key:    key.Secret(),
			Digits: int(key.Digits().Length()),
			Period: int(key.Period()),
		}
		if settings.Digits == 0 {
			settings.Digits = DefaultDigits
		}
		if settings.Period == 0 {
			settings.Period = DefaultPeriod
		}
		return settings, nil
	}

	// Bare seed with defaults
	return &Settings{
		Key:    strings.ToUpper(strings.ReplaceAll(value, " ", "")),
		Digits: DefaultDigits,
		Period: DefaultPeriod,
	}, nil
}

// Generate computes the code for the given time.
func Generate(settings *Settings, at time.Time) (string, error) {
	if settings == nil || settings.Key == "" {
		return "", ErrNoSeed
	}

	period := settings.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	digits := otp.Digits(settings.Digits)
	if settings.Digits <= 0 {
		digits = otp.Digits(DefaultDigits)
	}

	code, err := totp.GenerateCodeCustom(settings.Key, at, totp.ValidateOpts{
		Period:    uint(period),
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return code, nil
}

// Equals compares two settings; either side may be nil.
func (s *Settings) Equals(other *Settings) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Key == other.Key && s.Digits == other.Digits && s.Period == other.Period
}

// Clone returns an independent copy; nil clones to nil.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
