package models

import (
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

func NewID(prefix string) string {
	t := time.Now()
	entropy := ulid.Monotonic(mrand.New(mrand.NewSource(t.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return fmt.Sprintf("%s_%s", prefix, id.String())
}

// EventID builds the wire-level purchase event id. It embeds the order id
// and a unix timestamp so the tracking platform can dedupe on it.
func EventID(orderID int64, at time.Time) string {
	return fmt.Sprintf("purchase_%d_%d", orderID, at.Unix())
}
