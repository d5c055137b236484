package notify

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"assetbook/internal/models"
)

type mockDigestStore struct {
	mock.Mock
}

func (m *mockDigestStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Organization), args.Error(1)
}

func (m *mockDigestStore) ListBookingsInRange(ctx context.Context, orgID string, from, to time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, orgID, from, to)
	return args.Get(0).([]models.Booking), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendDigest(ctx context.Context, orgName string, bookings []models.Booking) {
	m.Called(ctx, orgName, bookings)
}

func TestDigestRunOnce(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()
	day := time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)
	date := models.DateOnly(day)

	store := new(mockDigestStore)
	sender := new(mockSender)
	sched := NewDigestScheduler(store, sender, 9, &logger)

	bookings := []models.Booking{
		{ID: "b-1", Status: models.StatusConfirmed},
		{ID: "b-2", Status: models.StatusCancelled},
	}

	store.On("ListOrganizations", ctx).Return([]models.Organization{{ID: "org-1", Name: "Harbor"}}, nil).Once()
	store.On("ListBookingsInRange", ctx, "org-1", date, date).Return(bookings, nil).Once()
	sender.On("SendDigest", ctx, "Harbor", mock.MatchedBy(func(bs []models.Booking) bool {
		return len(bs) == 1 && bs[0].ID == "b-1"
	})).Once()

	sched.RunOnce(ctx, day)
	store.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestDigestUntilNextRun(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sched := NewDigestScheduler(nil, nil, 9, &logger)

	morning := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Hour, sched.untilNextRun(morning))

	evening := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 23*time.Hour, sched.untilNextRun(evening))
}
