package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrListingNotFound      = errors.New("listing not found")
	ErrListingImageNotFound = errors.New("listing image not found")
	ErrReleaseNotFound      = errors.New("release not found")
	ErrOutOfStock           = errors.New("listing is out of stock")
	ErrInsufficientStock    = errors.New("not enough stock for requested quantity")
	ErrEmptyBasket          = errors.New("basket is empty")
	ErrExternalService      = errors.New("external service unavailable")
	ErrWebhookVerification  = errors.New("webhook signature verification failed")
	ErrOrderNotFound        = errors.New("order not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrThreadAccessDenied   = errors.New("no access to this thread")
	ErrGuestLinkClaimed     = errors.New("thread now belongs to a registered account")
)

// ErrNoBasketSession is a validation failure: an anonymous caller without a session id
var ErrNoBasketSession = fmt.Errorf("%w: no basket session", ErrValidation)
