package domain

import "time"

// IdempotencyRecord is a cached response for one (key, actor) pair.
type IdempotencyRecord struct {
	Key          string
	Actor        string
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
