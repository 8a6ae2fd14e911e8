package interfaces

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrAkillNotFound is returned when deleting an unknown akill.
	ErrAkillNotFound = errors.New("store: akill not found")

	// ErrAkillExists is returned when the mask is already banned.
	ErrAkillExists = errors.New("store: akill already exists")
)

// Akill is a network-wide ban on a user@host mask.
type Akill struct {
	ID      int64
	Setter  string
	Mask    string
	Reason  string
	TimeSet time.Time
	// Duration of zero means permanent.
	Duration time.Duration
}

// Permanent reports whether the akill never expires.
func (a Akill) Permanent() bool {
	return a.Duration <= 0
}

// Expired reports whether the akill has run out at now.
func (a Akill) Expired(now time.Time) bool {
	return !a.Permanent() && !now.Before(a.TimeSet.Add(a.Duration))
}

// Remaining returns the time left at now, or zero for permanent akills.
func (a Akill) Remaining(now time.Time) time.Duration {
	if a.Permanent() {
		return 0
	}
	if d := a.TimeSet.Add(a.Duration).Sub(now); d > 0 {
		return d
	}
	return 0
}

// UserHost splits the mask into its user and host parts. A mask without
// '@' bans any user on that host.
func (a Akill) UserHost() (user, host string) {
	if i := strings.LastIndexByte(a.Mask, '@'); i >= 0 {
		return a.Mask[:i], a.Mask[i+1:]
	}
	return "*", a.Mask
}

// DataStore is the persistence collaborator.
type DataStore interface {
	ListAkills(ctx context.Context) ([]Akill, error)
	ExpiredAkills(ctx context.Context, now time.Time) ([]Akill, error)
	AddAkill(ctx context.Context, a Akill) (int64, error)
	DeleteAkill(ctx context.Context, id int64) error
	Close() error
}
