package inventory

import "errors"

var (
	// ErrDuplicateLot is returned by Insert when a lot with the same
	// expiry date already exists. The tree is left unchanged.
	ErrDuplicateLot = errors.New("inventory: lot with this expiry already exists")

	ErrLotNotFound   = errors.New("inventory: lot not found")
	ErrOrderNotFound = errors.New("inventory: no matching order in queue")
	ErrNoInventory   = errors.New("inventory: no lots in inventory")

	// ErrInsufficientStock is returned by PlaceOrder before any mutation
	// when the requested quantity exceeds the lot's available stock.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")

	// ErrAllocation is returned when the order pool is exhausted.
	ErrAllocation = errors.New("inventory: order pool exhausted")
)
