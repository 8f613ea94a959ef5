package auth

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionCache keeps recently validated sessions in memory so most requests
// skip the database. Entries leave the cache after ttl, when evicted by
// size, or once the session itself expires.
type SessionCache struct {
	entries *expirable.LRU[string, *Session]
}

// NewSessionCache creates a cache holding up to size sessions for ttl each.
func NewSessionCache(size int, ttl time.Duration) *SessionCache {
	if size <= 0 {
		size = 1024
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &SessionCache{entries: expirable.NewLRU[string, *Session](size, nil, ttl)}
}

// Get retrieves a session from the cache
func (c *SessionCache) Get(token string) (*Session, bool) {
	session, ok := c.entries.Get(token)
	if !ok {
		return nil, false
	}
	if time.Now().After(session.ExpiresAt) {
		c.entries.Remove(token)
		return nil, false
	}
	return session, true
}

// Set stores a session in the cache
func (c *SessionCache) Set(session *Session) {
	if session == nil {
		return
	}
	c.entries.Add(session.Token, session)
}

// Delete removes a session from the cache
func (c *SessionCache) Delete(token string) {
	c.entries.Remove(token)
}

// DeleteByUserID removes all sessions for a specific user
func (c *SessionCache) DeleteByUserID(userID string) {
	for _, token := range c.entries.Keys() {
		if session, ok := c.entries.Peek(token); ok && session.UserID == userID {
			c.entries.Remove(token)
		}
	}
}

// Size returns the number of cached sessions
func (c *SessionCache) Size() int {
	return c.entries.Len()
}
