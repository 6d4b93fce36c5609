package model

import (
	"time"
)

type Book struct {
	ID              int64   `json:"id" db:"id"`
	Title           string  `json:"title" db:"title"`
	Author          *string `json:"author,omitempty" db:"author"`
	PublicationYear *int    `json:"publicationYear,omitempty" db:"publication_year"`
	Genre           *string `json:"genre,omitempty" db:"genre"`
	ISBN            *string `json:"isbn,omitempty" db:"isbn"`
}

type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionGood Condition = "good"
	ConditionFair Condition = "fair"
	ConditionPoor Condition = "poor"
	ConditionLost Condition = "lost"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor, ConditionLost:
		return true
	}
	return false
}

// Copy is a single physical instance of a Book. Location is globally unique
// in the shelf-section-number format ("1-A-12").
type Copy struct {
	ID         int64      `json:"id" db:"id"`
	BookID     int64      `json:"bookId" db:"book_id"`
	Location   string     `json:"location" db:"location"`
	Condition  Condition  `json:"condition" db:"condition"`
	LostDate   *time.Time `json:"lostDate,omitempty" db:"lost_date"`
	LostReason *string    `json:"lostReason,omitempty" db:"lost_reason"`
}

func (c Copy) Lost() bool {
	return c.Condition == ConditionLost
}

type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "pending"
	ReservationAssigned ReservationStatus = "assigned"
	ReservationPickedUp ReservationStatus = "picked_up"
	ReservationExpired  ReservationStatus = "expired"
	ReservationCanceled ReservationStatus = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationPickedUp, ReservationExpired, ReservationCanceled:
		return true
	}
	return false
}

type Reservation struct {
	ID              int64             `json:"-" db:"id"`
	ReservationUid  string            `json:"reservationUid" db:"reservation_uid"`
	Username        string            `json:"username" db:"username"`
	BookID          int64             `json:"bookId" db:"book_id"`
	CopyID          *int64            `json:"copyId,omitempty" db:"copy_id"`
	Status          ReservationStatus `json:"status" db:"status"`
	ReservationDate time.Time         `json:"reservationDate" db:"reservation_date"`
	ExpirationDate  *time.Time        `json:"expirationDate,omitempty" db:"expiration_date"`
}

type BorrowingStatus string

const (
	BorrowingActive        BorrowingStatus = "active"
	BorrowingReturnPending BorrowingStatus = "return_pending"
	BorrowingReturned      BorrowingStatus = "returned"
)

type Borrowing struct {
	ID           int64           `json:"id" db:"id"`
	Username     string          `json:"username" db:"username"`
	CopyID       int64           `json:"copyId" db:"copy_id"`
	BorrowDate   time.Time       `json:"borrowDate" db:"borrow_date"`
	DueDate      *time.Time      `json:"dueDate,omitempty" db:"due_date"`
	ReturnDate   *time.Time      `json:"returnDate,omitempty" db:"return_date"`
	RenewalCount int             `json:"renewalCount" db:"renewal_count"`
	Status       BorrowingStatus `json:"status" db:"status"`
}

func (b Borrowing) Open() bool {
	return b.ReturnDate == nil
}

const (
	// MaxRenewals caps renewal_count.
	MaxRenewals = 2
	// RenewalExtensionDays is added to the due date on each renewal.
	RenewalExtensionDays = 14
	// MaxOverdueRenewDays is how far past due a borrowing may be and still renew.
	MaxOverdueRenewDays = 7
)

// DaysOverdue is 0 for returned borrowings and those without a due date,
// otherwise the whole days elapsed since the due date (never negative).
func DaysOverdue(b Borrowing, today time.Time) int {
	if b.ReturnDate != nil || b.DueDate == nil {
		return 0
	}
	days := int(civilDay(today).Sub(civilDay(*b.DueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// civilDay drops the time-of-day part, comparing calendar dates only.
func civilDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CanRenew reports whether the borrowing may be renewed, with the refusal
// reason when it may not.
func CanRenew(b Borrowing, today time.Time) (bool, string) {
	if b.RenewalCount >= MaxRenewals {
		return false, "max renewals reached"
	}
	if b.Status == BorrowingReturned || b.ReturnDate != nil {
		return false, "already returned"
	}
	if b.Status == BorrowingReturnPending {
		return false, "return already requested"
	}
	if DaysOverdue(b, today) > MaxOverdueRenewDays {
		return false, "too overdue to renew"
	}
	return true, ""
}

// Availability is the oracle's answer for one book. Lost copies are outside
// the circulating pool and count toward neither total nor unavailable.
type Availability struct {
	Total       int `json:"total" db:"total"`
	Unavailable int `json:"unavailable" db:"unavailable"`
	Available   int `json:"available" db:"available"`
}

type LogEntry struct {
	ID            int64     `json:"id" db:"id"`
	ReservationID *int64    `json:"reservationId,omitempty" db:"reservation_id"`
	Action        string    `json:"action" db:"action"`
	ActionDate    time.Time `json:"actionDate" db:"action_date"`
	Details       string    `json:"details" db:"details"`
}

// Audit actions, matching the trail the circulation engine writes.
const (
	ActionCreated          = "created"
	ActionAssigned         = "assigned"
	ActionCanceled         = "canceled"
	ActionExpired          = "expired"
	ActionAutoAssigned     = "auto_assigned_on_expiration"
	ActionPickedUp         = "picked_up"
	ActionBorrowingSkipped = "borrowing_skipped"
	ActionReturnRequested  = "return_requested"
	ActionReturned         = "returned"
	ActionBookMarkedLost   = "book_marked_lost"
	ActionNotifiedBookLost = "notified_book_lost"
	ActionLostBookRestored = "lost_book_restored"
)
