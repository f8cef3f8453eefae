package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

// Issuer creates and acknowledges behavior alerts. Creation is idempotent:
// issuing the same (user, day, type) twice while the first alert is still open
// returns the existing alert unchanged, with no metadata merge.
type Issuer struct {
	alerts repository.AlertRepo
}

func NewIssuer(ar repository.AlertRepo) *Issuer {
	return &Issuer{alerts: ar}
}

// EnsureAlert gets or creates the open alert for (userID, dateKey, alertType).
func (i *Issuer) EnsureAlert(ctx context.Context, userID int64, dateKey, alertType, severity, message string, meta models.Metadata) (*models.BehaviorAlert, error) {
	a := &models.BehaviorAlert{
		UserID:       userID,
		SnapshotDate: dateKey,
		Type:         alertType,
		Severity:     severity,
		Status:       models.AlertOpen,
		Message:      message,
		Metadata:     meta,
		Created:      time.Now().UTC().UnixMilli(),
	}
	out, err := i.alerts.EnsureOpenAlert(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("ensure alert %s for user %d on %s: %w", alertType, userID, dateKey, err)
	}
	return out, nil
}

// Acknowledge transitions an alert from open to acknowledged, stamping the
// acknowledgement time. Returns repository.ErrNotFound when the alert does not
// exist.
func (i *Issuer) Acknowledge(ctx context.Context, id int64) (*models.BehaviorAlert, error) {
	return i.alerts.AcknowledgeAlert(ctx, id, time.Now().UTC().UnixMilli())
}
