package cart

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidProduct  = errors.New("invalid product reference")
	ErrCorruptState    = errors.New("corrupt cart state")
)
