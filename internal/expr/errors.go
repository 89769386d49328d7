package expr

import "errors"

// Ошибки выражений.
var (
	// ErrParse — выражение не удалось разобрать.
	ErrParse = errors.New("expression parse failed")

	// ErrEval — ошибка вычисления выражения.
	ErrEval = errors.New("expression evaluation failed")

	// ErrNotBool — условие вернуло не булево значение.
	ErrNotBool = errors.New("condition is not a bool")

	// ErrUnsupportedValue — значение нельзя перевести в cty.
	ErrUnsupportedValue = errors.New("unsupported value")
)
