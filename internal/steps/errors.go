package steps

import "errors"

// Ошибки стадий.
var (
	// ErrHandlerNotFound — обработчик стадии не зарегистрирован.
	ErrHandlerNotFound = errors.New("stage handler not found")

	// ErrDuplicateHandler — два обработчика с одинаковым именем.
	ErrDuplicateHandler = errors.New("duplicate stage handler")

	// ErrInvalidConfig — невалидная конфигурация стадии.
	ErrInvalidConfig = errors.New("invalid stage config")

	// ErrExecutionFault — непредвиденный сбой при выполнении стадии.
	ErrExecutionFault = errors.New("stage execution fault")
)
