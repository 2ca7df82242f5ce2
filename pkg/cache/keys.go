package cache

import (
	"context"
	"fmt"
)

// Key layout: "admin:<kind>:<modelKey>[...]". Record lists are keyed per page
// under a shared model prefix so a single mutation can invalidate every page
// at once.

// ModelConfigKey identifies the cached schema descriptor for a model.
func ModelConfigKey(modelKey string) string {
	return "admin:config:" + modelKey
}

// RecordListKey identifies one cached page of a model's record list.
func RecordListKey(modelKey string, page int) string {
	return fmt.Sprintf("%s%d", RecordListPrefix(modelKey), page)
}

// RecordListPrefix covers every cached page of a model's record list.
func RecordListPrefix(modelKey string) string {
	return "admin:list:" + modelKey + ":"
}

// InvalidateModel drops both the record-list pages and the admin-config entry
// for a model. Every mutation path (create, update, delete, import) funnels
// through this: list counts shown elsewhere must reflect the change.
func (s *Service) InvalidateModel(ctx context.Context, modelKey string) error {
	if err := s.Invalidate(ctx, RecordListPrefix(modelKey)); err != nil {
		return err
	}
	return s.Invalidate(ctx, ModelConfigKey(modelKey))
}
