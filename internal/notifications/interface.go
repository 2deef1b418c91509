package notifications

import (
	"context"

	"github.com/findora/tool-radar/internal/models"
)

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendReport(ctx context.Context, report *models.Report) error
}
