// Package notify сообщает внешнему трекеру статус взаимодействий.
//
// Notifier — очередь с приоритетом и ровно одним обработчиком.
// Enqueue не блокирует вызывающего: запрос не ждёт трекер.
// Ошибка задачи логируется и не влияет на следующие задачи.
//
// Очередь живёт в памяти процесса; задачи, оставшиеся при Stop, теряются.
package notify
