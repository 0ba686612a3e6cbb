package config

import "errors"

// Configuration-related error definitions.
// These errors are returned during configuration validation and flow building.
var (
	// ErrEmptyToken is returned when the bot token is empty or not provided.
	ErrEmptyToken = errors.New("bot token is empty")

	// ErrInvalidCommand is returned when a command is missing its name or flow.
	ErrInvalidCommand = errors.New("invalid command configuration")

	// ErrInvalidFlow is returned when a flow configuration is malformed.
	ErrInvalidFlow = errors.New("invalid flow configuration")

	// ErrInvalidState is returned when a state configuration is malformed.
	ErrInvalidState = errors.New("invalid state configuration")

	// ErrStateNotFound is returned when a referenced state does not exist.
	ErrStateNotFound = errors.New("state not found")

	// ErrHandlerNotFound is returned when a referenced handler function is not registered.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrValidatorNotFound is returned when a referenced validator is not registered.
	ErrValidatorNotFound = errors.New("validator not found")
)
