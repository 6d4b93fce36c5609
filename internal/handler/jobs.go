package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Job endpoints mirror what the in-process scheduler runs daily, so an
// external cron can drive the passes instead.

func (h *Handler) SweepExpirations(c echo.Context) error {
	report, err := h.svc.SweepExpirations(c.Request().Context(), time.Now())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) MarkLostOverdue(c echo.Context) error {
	threshold := 0
	if raw := c.QueryParam("thresholdDays"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid thresholdDays")
		}
		threshold = v
	}
	dryRun, _ := strconv.ParseBool(c.QueryParam("dryRun"))

	report, err := h.svc.MarkLostOverdue(c.Request().Context(), threshold, dryRun)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) SendDueReminders(c echo.Context) error {
	dryRun, _ := strconv.ParseBool(c.QueryParam("dryRun"))
	report, err := h.svc.SendDueReminders(c.Request().Context(), time.Now(), dryRun)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}
