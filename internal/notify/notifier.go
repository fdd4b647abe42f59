// Package notify delivers share notifications to recipients.
package notify

import "context"

// DownloadLink pairs a filename with its download URL.
type DownloadLink struct {
	Filename string
	URL      string
}

// Notifier is the notification gateway contract. Both operations return
// false on delivery failure rather than an error; the lifecycle manager
// treats that as a soft signal, never as the overall operation's failure.
type Notifier interface {
	SendSingleNotice(ctx context.Context, recipient, sampleID string, links []DownloadLink, ttlDays int) bool
	SendMultiNotice(ctx context.Context, recipient string, sampleIDs []string, container string, ttlDays int) bool
}
