// Package state строит и сохраняет snapshots вызовов стадий.
//
// Жизненный цикл snapshot:
//
//	Snapshot (PENDING) → стадия (SUCCESS | ERROR) → Recorder.Record
//
// Recorder работает с глубокой копией: маскирует тела, считает статистику
// и записывает две записи по ключу (flowId, stageId, interactionId):
//
//	b2b.node.state      — статус, статистика, флаги маскирования
//	b2b.node.state.data — замаскированные тела и batch list
//
// Ошибки сохранения только логируются. Статус ERROR ставит задачу
// обновления взаимодействия в очередь notify.
package state
