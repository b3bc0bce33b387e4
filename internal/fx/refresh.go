package fx

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskRateRefresh is the asynq task type for periodic rate refresh. The
// worker keeps the shared cache warm so renders rarely hit the fallback.
const TaskRateRefresh = "fx:rate:refresh"

// NewRefreshTask builds the (payload-less) refresh task.
func NewRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskRateRefresh, nil)
}

// RefreshHandler adapts Service.Refresh to the asynq handler contract.
type RefreshHandler struct {
	Service *Service
	Logger  zerolog.Logger
}

// ProcessTask fetches a fresh rate and stores it in the shared cache.
// Failures are retried by asynq; the serving path keeps its own fallback.
func (h RefreshHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if h.Service == nil {
		return nil
	}
	if err := h.Service.Refresh(ctx); err != nil {
		h.Logger.Warn().Err(err).Msg("scheduled rate refresh failed")
		return err
	}
	h.Logger.Debug().
		Str("source", h.Service.Source).
		Str("target", h.Service.Target).
		Msg("rate cache refreshed")
	return nil
}
