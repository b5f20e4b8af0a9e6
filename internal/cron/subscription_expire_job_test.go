package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
	"github.com/rentiva/rentiva-backend/pkg/logger"
)

type fakeExpireLister struct {
	subs []models.Subscription
}

func (f *fakeExpireLister) ListActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.Status == enums.SubscriptionStatusActive && sub.EndDate.Before(cutoff) {
			out = append(out, sub)
		}
	}
	return out, nil
}

type fakeExpirer struct {
	statuses map[uuid.UUID]enums.SubscriptionStatus
	failOn   map[uuid.UUID]error
	calls    int
}

func (f *fakeExpirer) Expire(ctx context.Context, sub models.Subscription) (bool, error) {
	f.calls++
	if err := f.failOn[sub.ID]; err != nil {
		return false, err
	}
	if f.statuses[sub.ID] != enums.SubscriptionStatusActive {
		return false, nil
	}
	f.statuses[sub.ID] = enums.SubscriptionStatusExpired
	return true, nil
}

func TestSubscriptionExpireJobTransitionsLapsedOnly(t *testing.T) {
	now := time.Now().UTC()
	lapsed := models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusActive, EndDate: now.Add(-time.Hour)}
	current := models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusActive, EndDate: now.Add(time.Hour)}

	expirer := &fakeExpirer{statuses: map[uuid.UUID]enums.SubscriptionStatus{
		lapsed.ID:  enums.SubscriptionStatusActive,
		current.ID: enums.SubscriptionStatusActive,
	}}
	job, err := NewSubscriptionExpireJob(SubscriptionExpireJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:      &fakeExpireLister{subs: []models.Subscription{lapsed, current}},
		Lifecycle: expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.statuses[lapsed.ID] != enums.SubscriptionStatusExpired {
		t.Fatal("lapsed subscription should be expired")
	}
	if expirer.statuses[current.ID] != enums.SubscriptionStatusActive {
		t.Fatal("current subscription must stay active")
	}
}

func TestSubscriptionExpireJobIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	lapsed := models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusActive, EndDate: now.Add(-time.Hour)}
	expirer := &fakeExpirer{statuses: map[uuid.UUID]enums.SubscriptionStatus{lapsed.ID: enums.SubscriptionStatusActive}}

	job, err := NewSubscriptionExpireJob(SubscriptionExpireJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:      &fakeExpireLister{subs: []models.Subscription{lapsed}},
		Lifecycle: expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if expirer.statuses[lapsed.ID] != enums.SubscriptionStatusExpired {
		t.Fatal("subscription should stay expired")
	}
}

func TestSubscriptionExpireJobIsolatesFailures(t *testing.T) {
	now := time.Now().UTC()
	bad := models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusActive, EndDate: now.Add(-2 * time.Hour)}
	good := models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusActive, EndDate: now.Add(-time.Hour)}

	expirer := &fakeExpirer{
		statuses: map[uuid.UUID]enums.SubscriptionStatus{
			bad.ID:  enums.SubscriptionStatusActive,
			good.ID: enums.SubscriptionStatusActive,
		},
		failOn: map[uuid.UUID]error{bad.ID: errors.New("deadlock")},
	}
	job, err := NewSubscriptionExpireJob(SubscriptionExpireJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:      &fakeExpireLister{subs: []models.Subscription{bad, good}},
		Lifecycle: expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected aggregated error")
	}
	if expirer.statuses[good.ID] != enums.SubscriptionStatusExpired {
		t.Fatal("failure on one subscription must not block the rest")
	}
}
