// Package mq пересылает события движка в RabbitMQ и читает их обратно.
//
// Структура:
//   - connection.go: соединение с reconnect
//   - topology.go: обменник flowrunner.events и очередь events.tail
//   - publisher.go: конверт Message и публикация
//   - sink.go: EventSink: наблюдатель движка → обменник
//   - consumer.go: чтение очереди (команда events tail)
//
// Типы сообщений (они же ключи маршрутизации):
//   - node.started: eval:start
//   - node.dispatched: событие узла
//   - run.completed: сводка запуска
package mq
