package telemetry

import (
	"log/slog"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
)

// LogObserver возвращает наблюдатель, который пишет события движка в лог.
//
// Здесь же выполняется эффект узла log: движок его не логирует,
// это работа наблюдателей.
func LogObserver(logger *slog.Logger) engine.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ev engine.Event) {
		l := WithNodeID(WithRunID(logger, ev.RunID.String()), ev.Node.ID)

		if ev.IsStart() {
			l.Debug("node started", "type", ev.Node.Type)
			return
		}

		switch ev.Node.Type {
		case domain.NodeTypeLog:
			l.Info("log node", "name", ev.Node.Name)

		case domain.NodeTypeTerminate:
			reason := ""
			if cfg := ev.Node.Terminate(); cfg != nil {
				reason = cfg.Reason
			}
			l.Info("terminate reached", "reason", reason)

		case domain.NodeTypeEnd:
			l.Info("end reached")

		case domain.NodeTypeHTTPRequest:
			if ev.Result.IsFail() {
				l.Warn("http request failed", "error", ev.Result.Fail)
			} else {
				l.Info("http request succeeded")
			}

		default:
			l.Debug("node dispatched", "type", ev.Node.Type)
		}
	}
}
