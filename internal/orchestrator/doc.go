// Package orchestrator связывает движок с окружением.
//
// Orchestrator создаёт Engine на каждый запуск, подключает наблюдатели
// (лог, метрики, внешние шины событий), определяет узлы входа и
// собирает сводку запуска. Семантику обхода он не меняет.
//
// Используется API, scheduler'ом и CLI.
package orchestrator
