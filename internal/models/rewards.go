// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package models

import "time"

// CollectionRewards is the cache collection holding reward balances, one per user.
const CollectionRewards = "rewards"

// RewardBalance is a user's points total.
//
// Confirmed is the last total the server reported. Points is what the user
// sees: Confirmed plus the points of reward actions still waiting in the
// mutation queue. Reconciliation recomputes Points from a fresh Confirmed
// value, it never adds to the displayed total.
type RewardBalance struct {
	UserID    string    `json:"user_id"`
	Points    int64     `json:"points"`
	Confirmed int64     `json:"confirmed"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncState SyncState `json:"sync_state,omitempty"`
}

// EntityID implements store.Entity.
func (b RewardBalance) EntityID() string { return b.UserID }

// RewardActionRequest awards (positive) or spends (negative) points.
type RewardActionRequest struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	Action    string `json:"action" validate:"required,max=64"`
	Points    int64  `json:"points" validate:"ne=0,gte=-100000,lte=100000"`
	Reference string `json:"reference,omitempty" validate:"max=128"`
}

// RewardAction is a submitted reward request.
type RewardAction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Points    int64     `json:"points"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	SyncState SyncState `json:"sync_state,omitempty"`
}

// RewardActionResult is returned by a reward submission: the action and the
// balance the user should now see.
type RewardActionResult struct {
	Action  RewardAction  `json:"action"`
	Balance RewardBalance `json:"balance"`
	Queued  bool          `json:"queued"`
}
