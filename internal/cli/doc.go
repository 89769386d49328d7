// Package cli реализует инструмент командной строки Conduit.
//
// # Обзор
//
// Команды делятся на две группы:
//   - локальные (serve, validate, plan, events) работают с файлом
//     описания и внутренними пакетами напрямую;
//   - flow работает с запущенным сервером через HTTP и не импортирует
//     internal/api.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Conduit API: список flows, описание flow с порядком
// обхода и вызов flow по его HTTP пути.
//
//	client := cli.NewClient("http://localhost:31000")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (sonic) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conduit flow list --json | jq .
//
// ## Commands
//
//   - serve: HTTP сервер flows (настройки из окружения)
//   - validate: проверка файла описания
//   - plan: скомпилированный порядок обхода
//   - events: события взаимодействий из RabbitMQ
//   - flow: list, show, invoke
//
// Команды flow создаются через NewFlowCmd, принимающую clientFn и outputFn —
// замыкания для ленивого создания Client и Output после парсинга PersistentFlags.
package cli
