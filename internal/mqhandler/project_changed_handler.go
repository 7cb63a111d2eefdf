package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "projecttracker/contracts/mq"
	"projecttracker/pkg/logger"
	"projecttracker/pkg/mq"
)

type Invalidator interface {
	Invalidate()
}

// ProjectChangedHandler drops the local project cache whenever any instance
// reports a change. The next read reloads from the store.
type ProjectChangedHandler struct {
	cache  Invalidator
	logger *zap.Logger
}

func NewProjectChangedHandler(cache Invalidator, logger *zap.Logger) *ProjectChangedHandler {
	return &ProjectChangedHandler{cache: cache, logger: logger}
}

// Handle is idempotent; invalidating twice costs one extra reload.
func (h *ProjectChangedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.ProjectChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: project.changed: %v", mq.ErrMalformed, err)
	}

	h.cache.Invalidate()
	logger.WithTrace(ctx, h.logger).Debug("Project cache invalidated",
		zap.String("project_id", p.ProjectID),
		zap.String("action", p.Action),
	)
	return nil
}
