package service

import "errors"

var (
	ErrOutOfStock             = errors.New("not enough stock for product")
	ErrConcurrentModification = errors.New("cart was modified concurrently, retries exhausted")
	ErrPaymentProvider        = errors.New("payment provider error")
	ErrOrderAlreadyPaid       = errors.New("order is already paid")
)
