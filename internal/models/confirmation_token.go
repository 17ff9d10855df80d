// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ActionType classifies what a confirmation token unlocks.
type ActionType string

const (
	ActionConfirmNewPassword ActionType = "confirm_new_password"
	ActionChangePassword     ActionType = "change_account_password"
	ActionDeleteAccount      ActionType = "delete_user_account"
)

// KnownActionType reports whether t is a supported action type.
func KnownActionType(t ActionType) bool {
	switch t {
	case ActionConfirmNewPassword, ActionChangePassword, ActionDeleteAccount:
		return true
	}
	return false
}

// ConfirmationToken gates a sensitive account mutation behind a one-time
// code delivered out-of-band. AccessCode holds the keyed hash of the raw
// code; the raw value is only ever emailed. There is no expiry column —
// expiry is evaluated lazily against the per-action TTL.
type ConfirmationToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	ActionType  ActionType `db:"action_type" json:"action_type"`
	AccessCode  string     `db:"access_code" json:"-"`
	ContextData *string    `db:"context_data" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
