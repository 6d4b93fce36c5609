package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/handler"
	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/pkg/validate"

	service_mocks "github.com/libcirc/circulation-service/internal/handler/mocks"
)

func TestHandler_GetBook(t *testing.T) {
	t.Parallel()
	type input struct {
		bookID string
	}
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockCirculationService, inp input)

	author := "Leo Tolstoy"
	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		input        input
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockCirculationService, inp input) {
				r.EXPECT().
					GetBook(gomock.Any(), int64(42)).
					Return(model.BookWithAvailability{
						Book: model.Book{
							ID:     42,
							Title:  "War and Peace",
							Author: &author,
						},
						Availability: model.Availability{Total: 3, Unavailable: 1, Available: 2},
					}, nil)
			},
			input: input{bookID: "42"},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":42,"title":"War and Peace","author":"Leo Tolstoy","availability":{"total":3,"unavailable":1,"available":2}}`,
			},
		},
		{
			name:         "err. bad id",
			mockBehavior: func(r *service_mocks.MockCirculationService, inp input) {},
			input:        input{bookID: "abc"},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid bookId"}`,
			},
		},
		{
			name: "err. not found",
			mockBehavior: func(r *service_mocks.MockCirculationService, inp input) {
				r.EXPECT().
					GetBook(gomock.Any(), int64(7)).
					Return(model.BookWithAvailability{}, errors.Wrap(errs.ErrNotFound, "book 7"))
			},
			input: input{bookID: "7"},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book 7: not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockCirculationService(c)
			h := handler.New(svc, zap.NewExample().Named("test"))

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.GET("/api/v1/books/:bookId", h.GetBook)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/books/"+tt.input.bookID, http.NoBody)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc, tt.input)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CreateReservation(t *testing.T) {
	t.Parallel()
	reservationDate := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	type input struct {
		username string
		body     string
	}
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockCirculationService, inp input)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		input        input
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockCirculationService, inp input) {
				r.EXPECT().
					CreateReservation(gomock.Any(), model.CreateReservationRequest{
						BookID:   1,
						Username: inp.username,
					}).
					Return(model.Reservation{
						ReservationUid:  "f7cdc58f-2caf-4b15-9727-f89dcc629b27",
						Username:        inp.username,
						BookID:          1,
						Status:          model.ReservationPending,
						ReservationDate: reservationDate,
					}, nil)
			},
			input: input{username: "reader-1", body: `{"bookId":1}`},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"reservationUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","username":"reader-1","bookId":1,"status":"pending","reservationDate":"2024-03-01T12:00:00Z"}`,
			},
		},
		{
			name:         "err. no username",
			mockBehavior: func(r *service_mocks.MockCirculationService, inp input) {},
			input:        input{username: "", body: `{"bookId":1}`},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"username is required"}`,
			},
		},
		{
			name: "err. reservation cap",
			mockBehavior: func(r *service_mocks.MockCirculationService, inp input) {
				r.EXPECT().
					CreateReservation(gomock.Any(), gomock.Any()).
					Return(model.Reservation{}, errs.Precondition("active reservation limit %d reached", 3))
			},
			input: input{username: "reader-1", body: `{"bookId":1}`},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"active reservation limit 3 reached"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockCirculationService(c)
			h := handler.New(svc, zap.NewExample().Named("test"))

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/api/v1/reservations", h.CreateReservation)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(tt.input.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.input.username != "" {
				r.Header.Set(handler.XUserNameHeader, tt.input.username)
			}
			w := httptest.NewRecorder()

			tt.mockBehavior(svc, tt.input)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ConfirmPickup(t *testing.T) {
	t.Parallel()
	borrowDate := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	dueDate := borrowDate.AddDate(0, 0, 14)

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockCirculationService)

	var tests = []struct {
		name           string
		reservationUid string
		mockBehavior   mockBehavior
		response       response
	}{
		{
			name:           "ok",
			reservationUid: "83575e12-7ce0-48ee-9931-51919ff3c9ee",
			mockBehavior: func(r *service_mocks.MockCirculationService) {
				r.EXPECT().
					ConfirmPickup(gomock.Any(), "83575e12-7ce0-48ee-9931-51919ff3c9ee").
					Return(model.Borrowing{
						ID:         5,
						Username:   "reader-1",
						CopyID:     9,
						BorrowDate: borrowDate,
						DueDate:    &dueDate,
						Status:     model.BorrowingActive,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":5,"username":"reader-1","copyId":9,"borrowDate":"2024-03-02T10:00:00Z","dueDate":"2024-03-16T10:00:00Z","renewalCount":0,"status":"active"}`,
			},
		},
		{
			name:           "err. not assigned",
			reservationUid: "83575e12-7ce0-48ee-9931-51919ff3c9ee",
			mockBehavior: func(r *service_mocks.MockCirculationService) {
				r.EXPECT().
					ConfirmPickup(gomock.Any(), gomock.Any()).
					Return(model.Borrowing{}, errs.Precondition("reservation is %s, pickup needs assigned", "pending"))
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"reservation is pending, pickup needs assigned"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockCirculationService(c)
			h := handler.New(svc, zap.NewExample().Named("test"))

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/api/v1/reservations/:reservationUid/pickup", h.ConfirmPickup)

			r := httptest.NewRequest(http.MethodPost,
				fmt.Sprintf("/api/v1/reservations/%s/pickup", tt.reservationUid), http.NoBody)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_Renew(t *testing.T) {
	t.Parallel()
	dueDate := time.Date(2024, 3, 30, 10, 0, 0, 0, time.UTC)

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockCirculationService)

	var tests = []struct {
		name         string
		borrowingID  string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:        "ok",
			borrowingID: "5",
			mockBehavior: func(r *service_mocks.MockCirculationService) {
				r.EXPECT().
					Renew(gomock.Any(), int64(5)).
					Return(model.RenewResponse{
						Renewed: true,
						Borrowing: &model.Borrowing{
							ID:           5,
							Username:     "reader-1",
							CopyID:       9,
							BorrowDate:   time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
							DueDate:      &dueDate,
							RenewalCount: 1,
							Status:       model.BorrowingActive,
						},
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"renewed":true,"borrowing":{"id":5,"username":"reader-1","copyId":9,"borrowDate":"2024-03-02T10:00:00Z","dueDate":"2024-03-30T10:00:00Z","renewalCount":1,"status":"active"}}`,
			},
		},
		{
			name:        "refused, not an error",
			borrowingID: "5",
			mockBehavior: func(r *service_mocks.MockCirculationService) {
				r.EXPECT().
					Renew(gomock.Any(), int64(5)).
					Return(model.RenewResponse{Renewed: false, Message: "max renewals reached"}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"renewed":false,"message":"max renewals reached"}`,
			},
		},
		{
			name:         "err. bad id",
			borrowingID:  "x",
			mockBehavior: func(r *service_mocks.MockCirculationService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid borrowing id"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockCirculationService(c)
			h := handler.New(svc, zap.NewExample().Named("test"))

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/api/v1/borrowings/:id/renew", h.Renew)

			r := httptest.NewRequest(http.MethodPost,
				fmt.Sprintf("/api/v1/borrowings/%s/renew", tt.borrowingID), http.NoBody)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_SweepExpirations(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()
	svc := service_mocks.NewMockCirculationService(c)
	h := handler.New(svc, zap.NewExample().Named("test"))

	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	e.POST("/api/v1/jobs/sweep", h.SweepExpirations)

	svc.EXPECT().
		SweepExpirations(gomock.Any(), gomock.Any()).
		Return(model.SweepReport{Expired: 2, Reassigned: 1}, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/sweep", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"expired":2,"reassigned":1}`, w.Body.String())
}

func TestHandler_MarkLostOverdue(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()
	svc := service_mocks.NewMockCirculationService(c)
	h := handler.New(svc, zap.NewExample().Named("test"))

	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	e.POST("/api/v1/jobs/mark-lost", h.MarkLostOverdue)

	svc.EXPECT().
		MarkLostOverdue(gomock.Any(), 21, true).
		Return(model.LostReport{DryRun: true, MarkedLost: 3, Notified: 2}, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/mark-lost?thresholdDays=21&dryRun=true", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"dryRun":true,"markedLost":3,"notified":2}`, w.Body.String())
}

func TestHandler_CreateCopy_Validation(t *testing.T) {
	t.Parallel()
	var tests = []struct {
		name         string
		body         string
		expectedCode int
	}{
		{
			name:         "bad location format",
			body:         `{"bookId":1,"location":"shelf-12","condition":"good"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "lost is not creatable",
			body:         `{"bookId":1,"location":"1-A-12","condition":"lost"}`,
			expectedCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockCirculationService(c)
			h := handler.New(svc, zap.NewExample().Named("test"))

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/api/v1/copies", h.CreateCopy)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/copies", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
		})
	}
}
