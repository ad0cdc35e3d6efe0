package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShipmentDetailIsFresh(t *testing.T) {
	now := time.Now()
	ttl := 10 * time.Minute

	fresh := &ShipmentDetail{FetchedAt: now.Add(-9 * time.Minute)}
	assert.True(t, fresh.IsFresh(now, ttl))

	stale := &ShipmentDetail{FetchedAt: now.Add(-11 * time.Minute)}
	assert.False(t, stale.IsFresh(now, ttl))

	boundary := &ShipmentDetail{FetchedAt: now.Add(-ttl)}
	assert.False(t, boundary.IsFresh(now, ttl))
}
