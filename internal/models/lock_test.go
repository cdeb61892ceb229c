package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLock(t *testing.T) {
	t.Parallel()

	locked := &Flight{ID: 7, Locked: true}
	unlocked := &Flight{ID: 8}

	tests := []struct {
		name    string
		target  Lockable
		action  string
		changed []string
		wantErr bool
	}{
		{name: "unlocked flight write", target: unlocked, action: ActionWrite, changed: []string{"date"}},
		{name: "locked flight write", target: locked, action: ActionWrite, changed: []string{"date"}, wantErr: true},
		{name: "locked flight toggles lock", target: locked, action: ActionWrite, changed: []string{FieldLocked}},
		{name: "locked flight toggles lock with write date", target: locked, action: ActionWrite,
			changed: []string{FieldWriteDate, FieldLocked}},
		{name: "write date alone is not a lock change", target: locked, action: ActionWrite,
			changed: []string{FieldWriteDate}, wantErr: true},
		{name: "lock plus another field", target: locked, action: ActionWrite,
			changed: []string{FieldLocked, "arrival_id"}, wantErr: true},
		{name: "locked flight delete", target: locked, action: ActionDelete, wantErr: true},
		{name: "event of locked flight", target: ParentLock{Flight: locked}, action: ActionCreate, wantErr: true},
		{name: "event of unlocked flight", target: ParentLock{Flight: unlocked}, action: ActionDelete},
		{name: "self lock", target: SelfLock{Locked: true}, action: ActionDelete, wantErr: true},
		{name: "nil parent flight", target: ParentLock{}, action: ActionCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckLock(tt.target, tt.action, KindFlight, 7, tt.changed...)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLocked)
			assert.ErrorIs(t, err, ErrValidation)
			var lockErr *LockError
			assert.True(t, errors.As(err, &lockErr))
		})
	}
}

func TestEventDisplayName(t *testing.T) {
	t.Parallel()

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	sameDay := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)
	nextDay := time.Date(2024, 5, 2, 1, 15, 0, 0, time.UTC)
	dayBefore := time.Date(2024, 4, 30, 23, 50, 0, 0, time.UTC)

	assert.Equal(t, "AOUTT 09:05", (&Event{TimeKind: TimeKindActual, Time: &sameDay}).DisplayName("out", date))
	assert.Equal(t, "SINT 01:15 (+1)", (&Event{TimeKind: TimeKindScheduled, Time: &nextDay}).DisplayName("in", date))
	assert.Equal(t, "23:50 (-1)", (&Event{Time: &dayBefore}).DisplayTime(date))
	assert.Equal(t, "", (&Event{}).DisplayTime(date))
}

func TestFlightDisplayName(t *testing.T) {
	t.Parallel()

	f := &Flight{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2024-05-01 / D-ABCD: EDDF - EGLL",
		f.DisplayName(FlightLabel{Registration: "D-ABCD", Departure: "eddf", Arrival: "egll"}))
	assert.Equal(t, "2024-05-01 / LH400",
		f.DisplayName(FlightLabel{Number: &FlightNumber{Prefix: "LH", Number: "400"}}))
}

func TestParseTimeKind(t *testing.T) {
	t.Parallel()

	k, err := ParseTimeKind("estimated")
	require.NoError(t, err)
	assert.Equal(t, TimeKindEstimated, k)

	k, err = ParseTimeKind("")
	require.NoError(t, err)
	assert.Equal(t, TimeKindActual, k)

	_, err = ParseTimeKind("X")
	assert.ErrorIs(t, err, ErrValidation)
}
