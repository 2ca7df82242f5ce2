package table

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Delete removes a record after confirmation. It reports whether the delete
// actually ran: a declined confirmation returns false with no error and no
// network call. On success every cached page of the model is invalidated so
// the next load reflects the removal.
func (v *View) Delete(ctx context.Context, id any, confirm Confirmer) (bool, error) {
	if confirm != nil {
		prompt := fmt.Sprintf("Delete this %s? This cannot be undone.", v.schema.Title())
		ok, err := confirm.Confirm(ctx, prompt)
		if err != nil {
			return false, fmt.Errorf("table: confirm delete: %w", err)
		}
		if !ok {
			return false, nil
		}
	}

	path := fmt.Sprintf("%s%v/", v.schema.APIURL, id)
	if _, err := v.engine.client.Request(ctx, http.MethodDelete, path, nil); err != nil {
		return false, fmt.Errorf("table: delete %s %v: %w", v.schema.ModelName, id, err)
	}

	if err := v.engine.cache.InvalidateModel(ctx, v.schema.ModelName); err != nil {
		v.engine.logger.Warn("cache invalidation failed after delete",
			zap.String("model", v.schema.ModelName), zap.Error(err))
	}
	v.engine.logger.Info("record deleted",
		zap.String("model", v.schema.ModelName), zap.Any("id", id))
	return true, nil
}
