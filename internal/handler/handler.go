package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	_ "github.com/libcirc/circulation-service/docs"
	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/pkg/validate"
)

// XUserNameHeader carries the caller identity set by the upstream gateway;
// authentication itself happens there.
const XUserNameHeader = "X-User-Name"

type Handler struct {
	svc CirculationService
	log *zap.Logger
}

func New(svc CirculationService, log *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(h.requestLoggerConfig()),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
	)

	api.GET("/books", h.ListBooks)
	api.POST("/books", h.CreateBook)
	api.GET("/books/:bookId", h.GetBook)
	api.POST("/books/import-isbn", h.ImportBookByISBN)

	api.POST("/copies", h.CreateCopy)
	api.POST("/copies/restore", h.RestoreLostCopy)

	api.GET("/reservations", h.ListReservations)
	api.POST("/reservations", h.CreateReservation)
	api.POST("/reservations/:reservationUid/cancel", h.CancelReservation)
	api.POST("/reservations/:reservationUid/pickup", h.ConfirmPickup)

	api.GET("/borrowings", h.ListBorrowings)
	api.POST("/borrowings/:id/renew", h.Renew)
	api.POST("/borrowings/:id/return-request", h.RequestReturn)
	api.POST("/borrowings/:id/return", h.ProcessReturn)

	api.POST("/jobs/sweep", h.SweepExpirations)
	api.POST("/jobs/mark-lost", h.MarkLostOverdue)
	api.POST("/jobs/reminders", h.SendDueReminders)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	book, err := h.svc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) ImportBookByISBN(c echo.Context) error {
	var req model.ImportBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	book, err := h.svc.ImportBookByISBN(c.Request().Context(), req.ISBN)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("bookId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bookId")
	}
	book, err := h.svc.GetBook(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) ListBooks(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	books, err := h.svc.ListBooks(c.Request().Context(), page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) CreateCopy(c echo.Context) error {
	var req model.CreateCopyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	cp, err := h.svc.CreateCopy(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cp)
}

func (h *Handler) RestoreLostCopy(c echo.Context) error {
	var req model.RestoreCopyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	cp, err := h.svc.RestoreLostCopy(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cp)
}

func (h *Handler) CreateReservation(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return err
	}
	var req model.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Username = userName
	if err := c.Validate(req); err != nil {
		return err
	}
	res, err := h.svc.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListReservations(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListReservations(c.Request().Context(), userName)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CancelReservation(c echo.Context) error {
	uid := c.Param("reservationUid")
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reservationUid is empty")
	}
	res, err := h.svc.CancelReservation(c.Request().Context(), uid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ConfirmPickup(c echo.Context) error {
	uid := c.Param("reservationUid")
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reservationUid is empty")
	}
	b, err := h.svc.ConfirmPickup(c.Request().Context(), uid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBorrowings(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListBorrowings(c.Request().Context(), userName)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Renew(c echo.Context) error {
	id, err := borrowingID(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.Renew(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) RequestReturn(c echo.Context) error {
	id, err := borrowingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.RequestReturn(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ProcessReturn(c echo.Context) error {
	id, err := borrowingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.ProcessReturn(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func borrowingID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid borrowing id")
	}
	return id, nil
}

func getUserName(c echo.Context) (string, error) {
	userName := c.Request().Header.Get(XUserNameHeader)
	if userName == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUserName.Error())
	}
	return userName, nil
}

// httpError maps the engine taxonomy onto status codes.
func httpError(err error) error {
	switch {
	case errs.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errs.IsPrecondition(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrUserName):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func newRateLimiterMW(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func (h *Handler) requestLoggerConfig() middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			h.log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
}
