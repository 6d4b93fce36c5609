package service_test

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/internal/repository"
)

// fakeRepo is an in-memory Repository with the same selection semantics as
// the SQL layer. Tests run single-goroutine, so WithinTx needs no locking and
// no rollback: an error simply propagates.
type fakeRepo struct {
	books        map[int64]model.Book
	copies       map[int64]model.Copy
	reservations map[int64]model.Reservation
	borrowings   map[int64]model.Borrowing
	logs         []model.LogEntry

	nextBookID        int64
	nextCopyID        int64
	nextReservationID int64
	nextBorrowingID   int64
}

var _ repository.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		books:        map[int64]model.Book{},
		copies:       map[int64]model.Copy{},
		reservations: map[int64]model.Reservation{},
		borrowings:   map[int64]model.Borrowing{},
	}
}

func (f *fakeRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	f.nextBookID++
	book.ID = f.nextBookID
	f.books[book.ID] = book
	return book, nil
}

func (f *fakeRepo) GetBook(ctx context.Context, id int64) (model.Book, error) {
	book, ok := f.books[id]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	return book, nil
}

func (f *fakeRepo) ListBooks(ctx context.Context, page, size int) ([]model.Book, error) {
	out := make([]model.Book, 0, len(f.books))
	for _, b := range f.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	if page != 0 && size != 0 {
		lo := (page - 1) * size
		if lo >= len(out) {
			return nil, nil
		}
		hi := lo + size
		if hi > len(out) {
			hi = len(out)
		}
		out = out[lo:hi]
	}
	return out, nil
}

func (f *fakeRepo) Availability(ctx context.Context, bookIDs []int64) (map[int64]model.Availability, error) {
	out := make(map[int64]model.Availability, len(bookIDs))
	for _, id := range bookIDs {
		var a model.Availability
		for _, cp := range f.copies {
			if cp.BookID != id || cp.Lost() {
				continue
			}
			a.Total++
			if f.copyUnavailable(cp.ID) {
				a.Unavailable++
			}
		}
		a.Available = a.Total - a.Unavailable
		out[id] = a
	}
	return out, nil
}

// copyUnavailable mirrors the oracle filter: an open active borrowing or an
// assigned reservation holds the copy.
func (f *fakeRepo) copyUnavailable(copyID int64) bool {
	for _, b := range f.borrowings {
		if b.CopyID == copyID && b.ReturnDate == nil && b.Status == model.BorrowingActive {
			return true
		}
	}
	for _, res := range f.reservations {
		if res.CopyID != nil && *res.CopyID == copyID && res.Status == model.ReservationAssigned {
			return true
		}
	}
	return false
}

func (f *fakeRepo) CreateCopy(ctx context.Context, copy model.Copy) (model.Copy, error) {
	f.nextCopyID++
	copy.ID = f.nextCopyID
	f.copies[copy.ID] = copy
	return copy, nil
}

func (f *fakeRepo) GetCopy(ctx context.Context, id int64) (model.Copy, error) {
	cp, ok := f.copies[id]
	if !ok {
		return model.Copy{}, errs.ErrNotFound
	}
	return cp, nil
}

func (f *fakeRepo) GetCopyByLocation(ctx context.Context, location string) (model.Copy, error) {
	for _, cp := range f.copies {
		if cp.Location == location {
			return cp, nil
		}
	}
	return model.Copy{}, errs.ErrNotFound
}

func (f *fakeRepo) LockFreeCopy(ctx context.Context, bookID int64) (model.Copy, error) {
	var candidates []model.Copy
	for _, cp := range f.copies {
		if cp.BookID != bookID || cp.Lost() {
			continue
		}
		if f.copyHeld(cp.ID) {
			continue
		}
		candidates = append(candidates, cp)
	}
	if len(candidates) == 0 {
		return model.Copy{}, errs.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Location != candidates[j].Location {
			return candidates[i].Location < candidates[j].Location
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], nil
}

// copyHeld mirrors the free-copy search: any open borrowing blocks the copy,
// regardless of its status, as does an assigned reservation.
func (f *fakeRepo) copyHeld(copyID int64) bool {
	for _, b := range f.borrowings {
		if b.CopyID == copyID && b.ReturnDate == nil {
			return true
		}
	}
	for _, res := range f.reservations {
		if res.CopyID != nil && *res.CopyID == copyID && res.Status == model.ReservationAssigned {
			return true
		}
	}
	return false
}

func (f *fakeRepo) UpdateCopy(ctx context.Context, copy model.Copy) error {
	if _, ok := f.copies[copy.ID]; !ok {
		return errs.ErrNotFound
	}
	f.copies[copy.ID] = copy
	return nil
}

func (f *fakeRepo) CreateReservation(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	f.nextReservationID++
	res.ID = f.nextReservationID
	if res.ReservationUid == "" {
		res.ReservationUid = uuid.NewString()
	}
	if res.Status == "" {
		res.Status = model.ReservationPending
	}
	f.reservations[res.ID] = res
	return res, nil
}

func (f *fakeRepo) GetReservation(ctx context.Context, uid string) (model.Reservation, error) {
	for _, res := range f.reservations {
		if res.ReservationUid == uid {
			return res, nil
		}
	}
	return model.Reservation{}, errs.ErrNotFound
}

func (f *fakeRepo) CountActiveReservations(ctx context.Context, username string) (int, error) {
	n := 0
	for _, res := range f.reservations {
		if res.Username == username &&
			(res.Status == model.ReservationPending || res.Status == model.ReservationAssigned) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) HasOpenReservationForBook(ctx context.Context, username string, bookID int64) (bool, error) {
	for _, res := range f.reservations {
		if res.Username == username && res.BookID == bookID {
			switch res.Status {
			case model.ReservationPending, model.ReservationAssigned, model.ReservationPickedUp:
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeRepo) HasOpenBorrowingForBook(ctx context.Context, username string, bookID int64) (bool, error) {
	for _, b := range f.borrowings {
		if b.Username != username || b.ReturnDate != nil {
			continue
		}
		if cp, ok := f.copies[b.CopyID]; ok && cp.BookID == bookID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) LockOldestPending(ctx context.Context, bookID int64) (model.Reservation, error) {
	var candidates []model.Reservation
	for _, res := range f.reservations {
		if res.BookID == bookID && res.Status == model.ReservationPending {
			candidates = append(candidates, res)
		}
	}
	if len(candidates) == 0 {
		return model.Reservation{}, errs.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ReservationDate.Equal(candidates[j].ReservationDate) {
			return candidates[i].ReservationDate.Before(candidates[j].ReservationDate)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], nil
}

func (f *fakeRepo) UpdateReservation(ctx context.Context, res model.Reservation) error {
	if _, ok := f.reservations[res.ID]; !ok {
		return errs.ErrNotFound
	}
	f.reservations[res.ID] = res
	return nil
}

func (f *fakeRepo) ListExpiredAssigned(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range f.reservations {
		if res.Status == model.ReservationAssigned &&
			res.ExpirationDate != nil && res.ExpirationDate.Before(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ListReservationsByUser(ctx context.Context, username string) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range f.reservations {
		if res.Username == username {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ListPendingForBook(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range f.reservations {
		if res.BookID == bookID && res.Status == model.ReservationPending {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReservationDate.Equal(out[j].ReservationDate) {
			return out[i].ReservationDate.Before(out[j].ReservationDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeRepo) CreateBorrowing(ctx context.Context, b model.Borrowing) (model.Borrowing, error) {
	f.nextBorrowingID++
	b.ID = f.nextBorrowingID
	if b.Status == "" {
		b.Status = model.BorrowingActive
	}
	f.borrowings[b.ID] = b
	return b, nil
}

func (f *fakeRepo) GetBorrowing(ctx context.Context, id int64) (model.Borrowing, error) {
	b, ok := f.borrowings[id]
	if !ok {
		return model.Borrowing{}, errs.ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) OpenBorrowingForUserAndCopy(ctx context.Context, username string, copyID int64) (model.Borrowing, error) {
	for _, b := range f.borrowings {
		if b.Username == username && b.CopyID == copyID && b.ReturnDate == nil {
			return b, nil
		}
	}
	return model.Borrowing{}, errs.ErrNotFound
}

func (f *fakeRepo) UpdateBorrowing(ctx context.Context, b model.Borrowing) error {
	if _, ok := f.borrowings[b.ID]; !ok {
		return errs.ErrNotFound
	}
	f.borrowings[b.ID] = b
	return nil
}

func (f *fakeRepo) ListBorrowingsByUser(ctx context.Context, username string) ([]model.Borrowing, error) {
	var out []model.Borrowing
	for _, b := range f.borrowings {
		if b.Username == username {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ListOverdueOpen(ctx context.Context, asOf time.Time) ([]model.Borrowing, error) {
	var out []model.Borrowing
	for _, b := range f.borrowings {
		if b.ReturnDate == nil && b.Status == model.BorrowingActive &&
			b.DueDate != nil && b.DueDate.Before(asOf) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ListDueOn(ctx context.Context, day time.Time) ([]model.Borrowing, error) {
	y, m, d := day.UTC().Date()
	var out []model.Borrowing
	for _, b := range f.borrowings {
		if b.ReturnDate != nil || b.DueDate == nil {
			continue
		}
		dy, dm, dd := b.DueDate.UTC().Date()
		if dy == y && dm == m && dd == d {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) AppendLog(ctx context.Context, entry model.LogEntry) error {
	entry.ID = int64(len(f.logs) + 1)
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeRepo) ListLogs(ctx context.Context, reservationID int64) ([]model.LogEntry, error) {
	var out []model.LogEntry
	for _, e := range f.logs {
		if e.ReservationID != nil && *e.ReservationID == reservationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) actions(reservationID int64) []string {
	var out []string
	for _, e := range f.logs {
		if e.ReservationID != nil && *e.ReservationID == reservationID {
			out = append(out, e.Action)
		}
	}
	return out
}

func (f *fakeRepo) allActions() []string {
	out := make([]string, 0, len(f.logs))
	for _, e := range f.logs {
		out = append(out, e.Action)
	}
	return out
}

// recordingNotifier captures emitted event names in order.
type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) ReservationConfirmed(ctx context.Context, res model.Reservation) error {
	n.events = append(n.events, "reservation_confirmed")
	return nil
}

func (n *recordingNotifier) ReservationAssigned(ctx context.Context, res model.Reservation, cp model.Copy) error {
	n.events = append(n.events, "reservation_assigned")
	return nil
}

func (n *recordingNotifier) PickupConfirmed(ctx context.Context, res model.Reservation, b model.Borrowing) error {
	n.events = append(n.events, "pickup_confirmed")
	return nil
}

func (n *recordingNotifier) ReturnConfirmed(ctx context.Context, b model.Borrowing) error {
	n.events = append(n.events, "return_confirmed")
	return nil
}

func (n *recordingNotifier) DueSoon(ctx context.Context, b model.Borrowing) error {
	n.events = append(n.events, "due_soon")
	return nil
}

func (n *recordingNotifier) Overdue(ctx context.Context, b model.Borrowing) error {
	n.events = append(n.events, "overdue")
	return nil
}
