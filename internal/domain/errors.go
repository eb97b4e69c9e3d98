package domain

import "errors"

var (
	// ErrDealNotFound is returned when no deal has the requested id.
	ErrDealNotFound = errors.New("deal not found")
	// ErrDuplicateDeal is returned when creating a deal whose id is taken.
	ErrDuplicateDeal = errors.New("deal already exists")
	// ErrInvalidTransition is returned for status moves the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrFilterSetNotFound is returned when an investor has no filter set.
	ErrFilterSetNotFound = errors.New("filter set not found")
	// ErrViewNotFound is returned before an investor's first view is published.
	ErrViewNotFound = errors.New("opportunity view not found")
)
