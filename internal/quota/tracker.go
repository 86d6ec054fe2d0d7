/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package quota

import (
	"context"
	"fmt"
	"time"

	"tradechat-go/internal/clock"
	"tradechat-go/internal/models"
	"tradechat-go/internal/store"

	"go.uber.org/zap"
)

const (
	DefaultFreeDailyLimit = 100
	DefaultProDailyLimit  = 1000
)

// Status is the outcome of a limit check.
type Status struct {
	Allowed   bool
	Remaining int
	Limit     int
	Tier      models.SubscriptionTier
	ResetAt   time.Time
}

// TrackerConfig contains configuration for Tracker
type TrackerConfig struct {
	Store     store.Store
	Clock     clock.Clock
	Location  *time.Location
	FreeLimit int
	ProLimit  int
}

// Tracker enforces the per-day query ceiling. Days are calendar days in the
// configured location; the counter resets on the first check or usage after
// the date changes, however little time has passed.
type Tracker struct {
	store    store.Store
	clock    clock.Clock
	location *time.Location
	limits   map[models.SubscriptionTier]int
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FreeLimit <= 0 {
		cfg.FreeLimit = DefaultFreeDailyLimit
	}
	if cfg.ProLimit <= 0 {
		cfg.ProLimit = DefaultProDailyLimit
	}
	return &Tracker{
		store:    cfg.Store,
		clock:    cfg.Clock,
		location: cfg.Location,
		limits: map[models.SubscriptionTier]int{
			models.TierFree: cfg.FreeLimit,
			models.TierPro:  cfg.ProLimit,
		},
	}
}

// LimitFor returns the daily ceiling for tier. Unknown tiers get the free limit.
func (t *Tracker) LimitFor(tier models.SubscriptionTier) int {
	if limit, ok := t.limits[tier]; ok {
		return limit
	}
	return t.limits[models.TierFree]
}

// CheckLimit reports whether userId may send another query today. The user
// record is only written when the daily counter needs resetting.
func (t *Tracker) CheckLimit(ctx context.Context, userId string) (*Status, error) {
	user, err := t.store.GetUser(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to load user for quota check: %w", err)
	}

	now := t.clock.Now()
	if t.needsReset(user.Usage, now) {
		user, err = t.store.UpdateUser(ctx, userId, func(u *models.User) error {
			t.applyReset(&u.Usage, now)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reset daily quota: %w", err)
		}
		zap.L().Debug("Daily quota reset", zap.String("user_id", userId))
	}

	return t.status(user.Usage, now), nil
}

// RecordUsage counts one processed message against userId. It applies a
// pending daily reset first, in the same update.
func (t *Tracker) RecordUsage(ctx context.Context, userId string) (*Status, error) {
	now := t.clock.Now()
	user, err := t.store.UpdateUser(ctx, userId, func(u *models.User) error {
		t.applyReset(&u.Usage, now)
		u.Usage.DailyQueryCount++
		u.Usage.TotalQueries++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}
	return t.status(user.Usage, now), nil
}

// NextReset returns the start of the calendar day after now.
func (t *Tracker) NextReset(now time.Time) time.Time {
	local := now.In(t.location)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.location)
}

func (t *Tracker) needsReset(usage models.UsageState, now time.Time) bool {
	if usage.DailyQueryResetAt.IsZero() {
		return true
	}
	return !sameDay(usage.DailyQueryResetAt.In(t.location), now.In(t.location))
}

func (t *Tracker) applyReset(usage *models.UsageState, now time.Time) {
	if t.needsReset(*usage, now) {
		usage.DailyQueryCount = 0
		usage.DailyQueryResetAt = now
	}
}

func (t *Tracker) status(usage models.UsageState, now time.Time) *Status {
	tier := usage.Tier
	if tier == "" {
		tier = models.TierFree
	}
	limit := t.LimitFor(tier)
	remaining := limit - usage.DailyQueryCount
	if remaining < 0 {
		remaining = 0
	}
	return &Status{
		Allowed:   usage.DailyQueryCount < limit,
		Remaining: remaining,
		Limit:     limit,
		Tier:      tier,
		ResetAt:   t.NextReset(now),
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
