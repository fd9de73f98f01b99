package email

import (
	"fmt"
	"strings"

	"github.com/codr1/transitdash/internal/metrics"
)

type Message struct {
	Subject string
	Body    string
}

// BuildAlertDigest renders the danger alerts of a snapshot as a plain-text
// message.
func BuildAlertDigest(snapshot metrics.Snapshot, alerts []metrics.Alert) Message {
	scope := "all companies"
	if snapshot.Scope.IsCompany() {
		scope = snapshot.CompanyName
		if scope == "" {
			scope = snapshot.Scope.String()
		}
	}

	subject := fmt.Sprintf("[Dashboard] %d critical alert(s) for %s", len(alerts), scope)
	if len(alerts) == 1 {
		subject = fmt.Sprintf("[Dashboard] %s for %s", alerts[0].Title, scope)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Critical dashboard alerts for %s\n", scope)
	fmt.Fprintf(&b, "Generated: %s (%s)\n\n", snapshot.GeneratedAt.Format("Monday, Jan 2, 2006 15:04 MST"), snapshot.Timezone)
	for _, alert := range alerts {
		fmt.Fprintf(&b, "- %s: %s\n", alert.Title, alert.Message)
	}
	b.WriteString("\nSummary\n")
	fmt.Fprintf(&b, "Revenue today: %s\n", snapshot.Revenue.Today.StringFixed(2))
	fmt.Fprintf(&b, "Revenue this month: %s\n", snapshot.Revenue.Month.StringFixed(2))
	fmt.Fprintf(&b, "Bookings today: %d\n", snapshot.Bookings.Today)
	fmt.Fprintf(&b, "Unpaid bookings: %d\n", snapshot.Bookings.Unpaid)
	fmt.Fprintf(&b, "Occupancy: %d%%\n", snapshot.OccupancyRate)
	fmt.Fprintf(&b, "Cancellation rate: %d%%\n", snapshot.CancellationRate)
	fmt.Fprintf(&b, "\nSnapshot %s\n", snapshot.ID)

	return Message{Subject: subject, Body: b.String()}
}
