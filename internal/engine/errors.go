package engine

import "errors"

// Ошибки разбора описания flows.
var (
	// ErrEmptyFlows — описание не содержит flows.
	ErrEmptyFlows = errors.New("definition has no flows")

	// ErrEmptyFlowID — flow не имеет ID.
	ErrEmptyFlowID = errors.New("flow has empty ID")

	// ErrDuplicateFlowID — несколько flows с одинаковым ID.
	ErrDuplicateFlowID = errors.New("duplicate flow ID")

	// ErrDuplicatePath — несколько flows с одинаковым входящим путём.
	ErrDuplicatePath = errors.New("duplicate incoming path")

	// ErrEmptyStages — flow не содержит стадий.
	ErrEmptyStages = errors.New("flow has no stages")

	// ErrEmptyStageID — стадия не имеет ID.
	ErrEmptyStageID = errors.New("stage has empty ID")

	// ErrDuplicateStageID — несколько стадий с одинаковым ID.
	ErrDuplicateStageID = errors.New("duplicate stage ID")

	// ErrUnknownStageType — неизвестный тип стадии.
	ErrUnknownStageType = errors.New("unknown stage type")

	// ErrInvalidStage — не заполнены параметры стадии.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrUnknownTarget — ребро ссылается на несуществующую стадию.
	ErrUnknownTarget = errors.New("edge targets unknown stage")

	// ErrUnknownFlow — ссылка на несуществующий flow.
	ErrUnknownFlow = errors.New("unknown flow")
)

// Ошибки выполнения.
var (
	// ErrMaxDepth — превышена глубина вложенности flows.
	ErrMaxDepth = errors.New("flow nesting too deep")

	// ErrNotCompiled — вложенный граф не был скомпилирован при загрузке.
	ErrNotCompiled = errors.New("graph not compiled")
)

// ValidationError — ошибка описания с контекстом.
type ValidationError struct {
	FlowID  string // ID flow
	StageID string // ID стадии, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	msg := e.Message
	if e.StageID != "" {
		msg = "stage " + e.StageID + ": " + msg
	}
	if e.FlowID != "" {
		msg = "flow " + e.FlowID + ": " + msg
	}
	return msg
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(flowID, stageID, field, message string, err error) *ValidationError {
	return &ValidationError{
		FlowID:  flowID,
		StageID: stageID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
