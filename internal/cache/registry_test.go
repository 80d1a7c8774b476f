// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package cache

import (
	"context"
	"testing"

	"github.com/tomtom215/driftline/internal/models"
)

func TestRegistry(t *testing.T) {
	s := openTestStore(t)
	checkins := New[models.CheckIn](s, models.CollectionCheckIns, nil)
	rewards := New[models.RewardBalance](s, models.CollectionRewards, nil)
	reg := NewRegistry(rewards, checkins)

	names := reg.Names()
	if len(names) != 2 || names[0] != models.CollectionCheckIns || names[1] != models.CollectionRewards {
		t.Errorf("Names() = %v", names)
	}

	ctx := context.Background()
	if _, err := checkins.Upsert(ctx, models.CheckIn{ID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	a, ok := reg.Get(models.CollectionCheckIns)
	if !ok {
		t.Fatal("Get() missed a registered collection")
	}
	data, n, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	items, ok := data.([]models.CheckIn)
	if !ok || n != 1 || items[0].ID != "c1" {
		t.Errorf("Snapshot() = %#v, %d", data, n)
	}

	if _, ok := reg.Get("missing"); ok {
		t.Error("Get() found an unregistered collection")
	}
}
