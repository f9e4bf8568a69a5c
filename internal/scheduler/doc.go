// Package scheduler запускает сохранённые графы по расписанию.
//
// Структура:
//   - scheduler.go: Tick: выбор due-расписаний, запуск, сдвиг next_due_at
//   - cron.go: разбор cron-выражений и вычисление следующего времени
//   - leader.go: выбор лидера через pg_try_advisory_lock
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleRepo,
//	    Flows:     flowRepo,
//	    Runner:    orch,
//	    Logger:    logger,
//	})
//
//	// раз в SCHED_TICK, только на лидере
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Контекст прошлых запусков (previous_runs) хранится в расписании
// и передаётся движку как есть.
package scheduler
