package repository

import (
	"context"
	"errors"
	"fmt"
)

var ErrSlotEmpty = errors.New("slot is empty")

const (
	slotKeyPrefix       = "ecozbite_cart"
	generationKeyPrefix = "ecozbite_cart_gen"
)

// CartSlot is the durable key-value slot the serialized cart lives in.
// Set is a full overwrite; last write wins.
type CartSlot interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SlotKey is the slot key for a session's cart.
func SlotKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", slotKeyPrefix, sessionID)
}

// GenerationKey is the slot key holding the nonce of a session's current cart
// generation.
func GenerationKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", generationKeyPrefix, sessionID)
}
