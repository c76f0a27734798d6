package model

import (
	"time"
)

// RefreshSession is one active refresh token, embedded in the user document.
// Only the SHA-256 digest of the token is stored, never the raw value.
type RefreshSession struct {
	TokenHash string    `bson:"token_hash"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// RefreshSessionList is a bounded FIFO queue of refresh sessions. Pushing
// beyond the cap evicts the oldest entry by list position, never the newest.
type RefreshSessionList []RefreshSession

// Push appends a session and evicts from the front while the list exceeds
// limit. Eviction is strictly by insertion order, not by nearest expiry.
func (l RefreshSessionList) Push(session RefreshSession, limit int) RefreshSessionList {
	l = append(l, session)
	for len(l) > limit {
		l = l[1:]
	}

	return l
}

// Remove deletes the entry with the given token hash, if present. Removing an
// absent hash is not an error.
func (l RefreshSessionList) Remove(tokenHash string) RefreshSessionList {
	out := l[:0]
	for _, s := range l {
		if s.TokenHash != tokenHash {
			out = append(out, s)
		}
	}

	return out
}

// Contains reports whether an entry with the given token hash exists.
func (l RefreshSessionList) Contains(tokenHash string) bool {
	for _, s := range l {
		if s.TokenHash == tokenHash {
			return true
		}
	}

	return false
}
