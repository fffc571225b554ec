package processor

import "errors"

var (
	// ErrValidation is returned when a bean fails validation before execution
	ErrValidation = errors.New("processor: validation failed")

	// ErrUnsupportedBean is returned for bean kinds without a processor
	ErrUnsupportedBean = errors.New("processor: unsupported bean")

	// ErrAlreadyBound is returned when binding a processor twice
	ErrAlreadyBound = errors.New("processor: bean already bound")

	// ErrNotBound is returned when executing a processor without a bean
	ErrNotBound = errors.New("processor: bean not bound")

	// ErrAlreadyStarted is returned when executing a processor twice
	ErrAlreadyStarted = errors.New("processor: already started")

	// ErrNotActive is returned when pausing or resuming a concluded bean
	ErrNotActive = errors.New("processor: bean is not active")

	// ErrChildFailed is returned by a composite when a child failed
	ErrChildFailed = errors.New("processor: child failed")

	// ErrDevicePanic wraps a panic raised by a device collaborator
	ErrDevicePanic = errors.New("processor: device panic")
)
