package main

import (
	"errors"
)

var (
	ERR_INVALID_CONFIG      error = errors.New("Invalid configuration")
	ERR_INTERRUPTED_BY_USER error = errors.New("Interrupted by user")
	ERR_BUSY                error = errors.New("A detection job is already running")
)
