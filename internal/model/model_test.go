package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libcirc/circulation-service/internal/model"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
	return &t
}

func TestDaysOverdue(t *testing.T) {
	t.Parallel()
	today := time.Date(2024, 3, 20, 23, 30, 0, 0, time.UTC)

	var tests = []struct {
		name string
		b    model.Borrowing
		want int
	}{
		{
			name: "no due date",
			b:    model.Borrowing{Status: model.BorrowingActive},
			want: 0,
		},
		{
			name: "due in the future",
			b:    model.Borrowing{DueDate: datePtr(2024, 3, 25), Status: model.BorrowingActive},
			want: 0,
		},
		{
			name: "due today counts as zero",
			b:    model.Borrowing{DueDate: datePtr(2024, 3, 20), Status: model.BorrowingActive},
			want: 0,
		},
		{
			name: "five whole days, time of day ignored",
			b:    model.Borrowing{DueDate: datePtr(2024, 3, 15), Status: model.BorrowingActive},
			want: 5,
		},
		{
			name: "returned stops the clock",
			b: model.Borrowing{
				DueDate:    datePtr(2024, 3, 1),
				ReturnDate: datePtr(2024, 3, 10),
				Status:     model.BorrowingReturned,
			},
			want: 0,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, model.DaysOverdue(tt.b, today))
		})
	}
}

func TestCanRenew(t *testing.T) {
	t.Parallel()
	today := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	var tests = []struct {
		name       string
		b          model.Borrowing
		want       bool
		wantReason string
	}{
		{
			name: "ok",
			b:    model.Borrowing{DueDate: datePtr(2024, 3, 25), Status: model.BorrowingActive},
			want: true,
		},
		{
			name: "ok at exactly seven days overdue",
			b:    model.Borrowing{DueDate: datePtr(2024, 3, 13), Status: model.BorrowingActive},
			want: true,
		},
		{
			name:       "max renewals reached",
			b:          model.Borrowing{DueDate: datePtr(2024, 3, 25), RenewalCount: 2, Status: model.BorrowingActive},
			want:       false,
			wantReason: "max renewals reached",
		},
		{
			name: "already returned",
			b: model.Borrowing{
				DueDate:    datePtr(2024, 3, 25),
				ReturnDate: datePtr(2024, 3, 18),
				Status:     model.BorrowingReturned,
			},
			want:       false,
			wantReason: "already returned",
		},
		{
			name:       "return requested",
			b:          model.Borrowing{DueDate: datePtr(2024, 3, 25), Status: model.BorrowingReturnPending},
			want:       false,
			wantReason: "return already requested",
		},
		{
			name:       "eight days overdue",
			b:          model.Borrowing{DueDate: datePtr(2024, 3, 12), Status: model.BorrowingActive},
			want:       false,
			wantReason: "too overdue to renew",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ok, reason := model.CanRenew(tt.b, today)
			require.Equal(t, tt.want, ok)
			require.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestReservationStatusTerminal(t *testing.T) {
	t.Parallel()
	require.False(t, model.ReservationPending.Terminal())
	require.False(t, model.ReservationAssigned.Terminal())
	require.True(t, model.ReservationPickedUp.Terminal())
	require.True(t, model.ReservationExpired.Terminal())
	require.True(t, model.ReservationCanceled.Terminal())
}

func TestConditionValid(t *testing.T) {
	t.Parallel()
	for _, c := range []model.Condition{
		model.ConditionNew, model.ConditionGood, model.ConditionFair,
		model.ConditionPoor, model.ConditionLost,
	} {
		require.True(t, c.Valid())
	}
	require.False(t, model.Condition("mint").Valid())
}
