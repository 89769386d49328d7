package domain

// StateStatus — статус выполнения одного вызова стадии.
//
// Жизненный цикл:
//
//	PENDING → SUCCESS
//	        ↘ ERROR
//
// SUCCESS и ERROR финальные: переход между ними запрещён.
type StateStatus string

const (
	// StatusPending — snapshot создан, стадия ещё не завершилась.
	StatusPending StateStatus = "PENDING"

	// StatusSuccess — стадия завершилась с кодом 200.
	StatusSuccess StateStatus = "SUCCESS"

	// StatusError — стадия завершилась ошибкой (любой код кроме 200 или сбой).
	StatusError StateStatus = "ERROR"
)

// IsTerminal возвращает true, если статус финальный.
func (s StateStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusError:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление StateStatus.
func (s StateStatus) String() string {
	return string(s)
}

// StageKind — вид стадии графа.
type StageKind string

const (
	// KindRemoteCall — вызов внешнего сервиса (API, DATASERVICE, FAAS).
	KindRemoteCall StageKind = "REMOTE_CALL"

	// KindTransform — преобразование тела по маппингам.
	KindTransform StageKind = "TRANSFORM"

	// KindSubflow — композиция дочерних flows (parallel или sequential).
	KindSubflow StageKind = "SUBFLOW"

	// KindIteration — вложенный flow по элементам (foreach или reduce).
	KindIteration StageKind = "ITERATION"
)

// RemoteTarget — способ определения адреса удалённого вызова.
type RemoteTarget string

const (
	// TargetAPI — статический endpoint из описания стадии.
	TargetAPI RemoteTarget = "API"

	// TargetDataService — endpoint из зарегистрированного data service.
	TargetDataService RemoteTarget = "DATASERVICE"

	// TargetFaaS — endpoint из зарегистрированной функции.
	TargetFaaS RemoteTarget = "FAAS"
)

// SubflowMode — режим композиции дочерних flows.
type SubflowMode string

const (
	SubflowParallel   SubflowMode = "parallel"
	SubflowSequential SubflowMode = "sequential"
)

// IterationMode — режим итерации.
type IterationMode string

const (
	IterationForEach IterationMode = "foreach"
	IterationReduce  IterationMode = "reduce"
)

// Типы стадий в формате описания flow.
const (
	StageTypeAPI         = "API"
	StageTypeDataService = "DATASERVICE"
	StageTypeFaaS        = "FAAS"
	StageTypeTransform   = "TRANSFORM"
	StageTypeFlow        = "FLOW"
	StageTypeForEach     = "FOREACH"
	StageTypeReduce      = "REDUCE"
)

// FailureKind — класс неуспешного результата стадии.
//
// Только FailureUpstream может быть обработан error-ребром.
type FailureKind int

const (
	// FailureNone — результат успешный или неуспешность не классифицирована.
	FailureNone FailureKind = iota

	// FailureUpstream — удалённый сервис ответил кодом ≥400 или транспорт упал.
	FailureUpstream

	// FailureTransform — формула маппинга завершилась ошибкой.
	FailureTransform

	// FailureFault — сбой выполнения стадии.
	FailureFault
)

// Recoverable возвращает true, если ошибку можно передать в error-ребро.
func (k FailureKind) Recoverable() bool {
	return k == FailureUpstream
}
