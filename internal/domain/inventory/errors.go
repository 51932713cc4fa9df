package inventory

import "errors"

var (
	ErrItemNotFound        = errors.New("inventory item not found")
	ErrTransactionNotFound = errors.New("inventory transaction not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrDuplicateSKU        = errors.New("an item with this SKU already exists")
)
