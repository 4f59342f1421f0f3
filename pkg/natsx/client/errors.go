package client

import "errors"

var (
	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client is closed")

	// ErrNotConnected is returned when client is not connected.
	ErrNotConnected = errors.New("client not connected")

	// ErrInvalidSubject is returned when an invalid subject is provided.
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrInvalidKey is returned when an invalid key is provided for KV operations.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidValue is returned when an invalid value is provided for KV operations.
	ErrInvalidValue = errors.New("invalid value")

	// ErrKeyNotFound is returned by KV reads of a missing or deleted key.
	ErrKeyNotFound = errors.New("key not found")
)
