package models

import "errors"

// Общие ошибки доменной модели
var (
	// ErrUnknownOperationType indicates an operation type outside the closed set
	ErrUnknownOperationType = errors.New("unknown operation type")

	// ErrUnknownFlag indicates a protection flag name outside the known set
	ErrUnknownFlag = errors.New("unknown protection flag")
)
