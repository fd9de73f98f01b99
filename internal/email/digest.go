package email

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/transitdash/internal/metrics"
)

const digestEmailTimeout = 10 * time.Second

// AlertDigest emails the danger alerts of a snapshot to an operations
// recipient. A digest is sent only when the set of danger alert codes differs
// from the last one delivered, so a persisting condition is reported once.
type AlertDigest struct {
	sender    EmailSender
	recipient string

	mu       sync.Mutex
	lastSent string
}

func NewAlertDigest(sender EmailSender, recipient string) *AlertDigest {
	return &AlertDigest{sender: sender, recipient: strings.TrimSpace(recipient)}
}

// Notify sends a digest for snapshot when its danger alerts changed. It
// reports whether an email was sent. A failed send is retried on the next
// call.
func (d *AlertDigest) Notify(ctx context.Context, snapshot metrics.Snapshot) (bool, error) {
	if d == nil || d.sender == nil || d.recipient == "" {
		return false, nil
	}
	logger := log.Ctx(ctx)

	var danger []metrics.Alert
	if snapshot.HasSeverity(metrics.SeverityDanger) {
		for _, alert := range snapshot.Alerts {
			if alert.Severity == metrics.SeverityDanger {
				danger = append(danger, alert)
			}
		}
	}
	key := digestKey(danger)

	d.mu.Lock()
	defer d.mu.Unlock()

	if key == d.lastSent {
		return false, nil
	}
	if key == "" {
		logger.Info().Str("scope", snapshot.Scope.String()).Msg("Critical alerts cleared")
		d.lastSent = ""
		return false, nil
	}

	message := BuildAlertDigest(snapshot, danger)
	sendCtx, cancel := newEmailContext(ctx, digestEmailTimeout)
	defer cancel()
	if err := d.sender.Send(sendCtx, d.recipient, message.Subject, message.Body); err != nil {
		logger.Error().Err(err).Str("scope", snapshot.Scope.String()).Msg("Failed to send alert digest")
		return false, err
	}

	d.lastSent = key
	logger.Info().
		Str("scope", snapshot.Scope.String()).
		Str("alerts", key).
		Msg("Alert digest sent")
	return true, nil
}

func digestKey(alerts []metrics.Alert) string {
	codes := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		codes = append(codes, alert.Code)
	}
	slices.Sort(codes)
	return strings.Join(codes, ",")
}
