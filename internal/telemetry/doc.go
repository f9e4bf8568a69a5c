// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go: structured logging через slog
//   - observer.go: наблюдатель движка, пишущий события в лог
//   - metrics.go: Prometheus метрики и наблюдатель движка
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
