package model

type CreateBookRequest struct {
	Title           string  `json:"title" validate:"required"`
	Author          *string `json:"author,omitempty"`
	PublicationYear *int    `json:"publicationYear,omitempty"`
	Genre           *string `json:"genre,omitempty"`
	ISBN            *string `json:"isbn,omitempty" validate:"omitempty,isbn"`
}

type CreateCopyRequest struct {
	BookID    int64     `json:"bookId" validate:"required"`
	Location  string    `json:"location" validate:"required,location"`
	Condition Condition `json:"condition" validate:"required,oneof=new good fair poor"`
}

type ImportBookRequest struct {
	ISBN string `json:"isbn" validate:"required,isbn"`
}

type CreateReservationRequest struct {
	BookID   int64  `json:"bookId" validate:"required"`
	Username string `json:"-" validate:"required"`
}

type RestoreCopyRequest struct {
	Location  string    `json:"location" validate:"required,location"`
	Condition Condition `json:"condition" validate:"required,oneof=new good fair poor"`
}

type RenewResponse struct {
	Renewed   bool       `json:"renewed"`
	Message   string     `json:"message,omitempty"`
	Borrowing *Borrowing `json:"borrowing,omitempty"`
}

type BookWithAvailability struct {
	Book
	Availability Availability `json:"availability"`
}

type ListBooks struct {
	Paging `json:",inline"`
	Items  []BookWithAvailability `json:"items"`
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

// SweepReport summarizes one expiration sweep pass.
type SweepReport struct {
	Expired    int `json:"expired"`
	Reassigned int `json:"reassigned"`
}

// LostReport summarizes one lost-book escalation pass.
type LostReport struct {
	DryRun     bool `json:"dryRun"`
	MarkedLost int  `json:"markedLost"`
	Notified   int  `json:"notified"`
}

// ReminderReport summarizes one due-reminder pass.
type ReminderReport struct {
	DryRun  bool `json:"dryRun"`
	DueSoon int  `json:"dueSoon"`
	Overdue int  `json:"overdue"`
}
