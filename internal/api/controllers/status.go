package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/gopatch/internal/app"
)

type StatusController struct {
	App *app.Context
}

// HandleStatus returns a snapshot of the active run: state, per-unit
// errors and per-step size/progress/speed.
func (ctrl *StatusController) HandleStatus(c *echo.Context) error {
	if ctrl.App.Core == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no run configured"})
	}
	return c.JSON(http.StatusOK, ctrl.App.Core.Snapshot())
}

// HandleRuns lists journaled runs, newest first.
func (ctrl *StatusController) HandleRuns(c *echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	runs, err := ctrl.App.Store.GetRuns(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

// HandleRunPhases returns the per-unit phase records of one run.
func (ctrl *StatusController) HandleRunPhases(c *echo.Context) error {
	records, err := ctrl.App.Store.GetRunPhases(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, records)
}
