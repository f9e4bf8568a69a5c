// Package cli реализует инструмент командной строки flowrunner.
//
// # Обзор
//
// CLI умеет две вещи: выполнять описание графа локально (run, validate)
// и управлять каталогом flows и расписаний через HTTP API (flow, schedule).
// Команда events tail читает шину событий RabbitMQ.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для flowrunner API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок. internal/api не импортирует.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter): по умолчанию
//   - JSON: с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error): в stderr.
// Это позволяет использовать pipe: flowrunner flow list --json | jq .
//
// ## Commands
//
//   - run -f graph.json: локальный запуск через orchestrator
//   - validate -f graph.json: проверка графа (локально или --remote)
//   - flow: list, create, show, update, delete, run
//   - schedule: list, create, show, update, delete, enable, disable
//   - events tail: поток событий из RabbitMQ
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn: замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
