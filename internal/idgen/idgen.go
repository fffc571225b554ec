// Package idgen generates bean, listener and message identifiers.
package idgen

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var sequence uint64

// New returns a random UUID
func New() string {
	return uuid.New().String()
}

// Sortable returns an ID whose lexical order follows creation order
func Sortable(at time.Time) string {
	seq := atomic.AddUint64(&sequence, 1) % 1000000
	return fmt.Sprintf("%019d-%06d-%s", at.UnixNano(), seq, New())
}
