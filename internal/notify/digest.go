package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"assetbook/internal/models"
)

// DigestStore is the read surface the digest loop needs.
type DigestStore interface {
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	ListBookingsInRange(ctx context.Context, orgID string, from, to time.Time) ([]models.Booking, error)
}

// DigestSender receives the per-organization daily summary.
type DigestSender interface {
	SendDigest(ctx context.Context, orgName string, bookings []models.Booking)
}

// DigestScheduler sends each organization a morning summary of the day's
// bookings.
type DigestScheduler struct {
	store  DigestStore
	sender DigestSender
	hour   int
	logger *zerolog.Logger
}

func NewDigestScheduler(store DigestStore, sender DigestSender, hour int, logger *zerolog.Logger) *DigestScheduler {
	if hour < 0 || hour > 23 {
		hour = 9
	}
	return &DigestScheduler{store: store, sender: sender, hour: hour, logger: logger}
}

// Start runs the daily loop until the context is cancelled.
func (d *DigestScheduler) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.untilNextRun(time.Now())):
			d.RunOnce(ctx, time.Now())
		}
	}
}

// RunOnce sends the digest for every organization for the given day.
func (d *DigestScheduler) RunOnce(ctx context.Context, day time.Time) {
	orgs, err := d.store.ListOrganizations(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("digest: list organizations failed")
		return
	}

	date := models.DateOnly(day)
	for _, org := range orgs {
		bookings, err := d.store.ListBookingsInRange(ctx, org.ID, date, date)
		if err != nil {
			d.logger.Error().Err(err).Str("org_id", org.ID).Msg("digest: list bookings failed")
			continue
		}
		active := bookings[:0:0]
		for _, b := range bookings {
			if b.Status != models.StatusCancelled {
				active = append(active, b)
			}
		}
		d.sender.SendDigest(ctx, org.Name, active)
	}
}

func (d *DigestScheduler) untilNextRun(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), d.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
