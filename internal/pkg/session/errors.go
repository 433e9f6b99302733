package session

import "github.com/pkg/errors"

// ErrSlotBound indicates a bind attempt on a slot that has not been released.
var ErrSlotBound = errors.New("slot already bound")

// ErrSlotFree indicates an operation on a slot with no connection.
var ErrSlotFree = errors.New("slot is free")
