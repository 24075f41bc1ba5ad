package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chronoworks/timesheet-system/internal/api/metrics"
	"github.com/chronoworks/timesheet-system/internal/core/ports"
)

// TimesheetHandler handles HTTP requests for the submit and save services.
// Both binaries share the handler; the router decides which endpoints are
// exposed.
type TimesheetHandler struct {
	service ports.TimesheetService
	name    string
}

func NewTimesheetHandler(service ports.TimesheetService, serviceName string) *TimesheetHandler {
	return &TimesheetHandler{service: service, name: serviceName}
}

// Submit upserts one timesheet row keyed by (date, employeeId) and marks
// it Submitted.
//
// @Summary      Submit a timesheet
// @Tags         timesheets
// @Accept       json
// @Produce      json
// @Param        body  body      timesheetRequest  true  "Timesheet entry"
// @Success      201   {object}  timesheetResponse
// @Failure      400   {object}  map[string]string
// @Router       /submit-service/timesheets [post]
func (h *TimesheetHandler) Submit(c echo.Context) error {
	in, err := h.bindTimesheet(c)
	if err != nil {
		return err
	}

	sheet, err := h.service.Submit(c.Request().Context(), in)
	if err != nil {
		return err
	}
	metrics.TimesheetUpsertsTotal.WithLabelValues(sheet.Status).Inc()

	return c.JSON(http.StatusCreated, timesheetResponse{
		Message: "Timesheet submitted successfully",
		Data:    sheet,
		Action:  "submitted",
	})
}

// Save upserts one timesheet row keyed by (date, employeeId, recordType)
// and marks it Saved.
//
// @Summary      Save a timesheet
// @Tags         timesheets
// @Accept       json
// @Produce      json
// @Param        body  body      timesheetRequest  true  "Timesheet entry"
// @Success      201   {object}  timesheetResponse
// @Failure      400   {object}  map[string]string
// @Router       /save-service/timesheets [post]
func (h *TimesheetHandler) Save(c echo.Context) error {
	in, err := h.bindTimesheet(c)
	if err != nil {
		return err
	}

	sheet, err := h.service.Save(c.Request().Context(), in)
	if err != nil {
		return err
	}
	metrics.TimesheetUpsertsTotal.WithLabelValues(sheet.Status).Inc()

	return c.JSON(http.StatusCreated, timesheetResponse{
		Message: "Timesheet saved successfully",
		Data:    sheet,
		Action:  "updated",
	})
}

// SaveWeekly upserts one row per calendar day in the closed interval.
//
// @Summary      Save a week of timesheets
// @Tags         timesheets
// @Accept       json
// @Produce      json
// @Param        body  body      weeklyTimesheetRequest  true  "Week of entries"
// @Success      201   {object}  weeklyTimesheetResponse
// @Failure      400   {object}  map[string]string
// @Router       /save-service/timesheets/weekly [post]
func (h *TimesheetHandler) SaveWeekly(c echo.Context) error {
	var req weeklyTimesheetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.SaveWeekly(c.Request().Context(), ports.WeeklyInput{
		StartDate:  start,
		EndDate:    end,
		Hours:      req.Hours,
		EmployeeID: req.EmployeeID,
		ProjectID:  req.ProjectID,
		TaskID:     req.TaskID,
		RecordType: req.RecordType,
		WFH:        req.WFH,
	})
	if err != nil {
		return err
	}
	metrics.TimesheetUpsertsTotal.WithLabelValues("Saved").Add(float64(len(result.Sheets)))

	return c.JSON(http.StatusCreated, weeklyTimesheetResponse{
		Message:   "Timesheets saved successfully",
		Count:     len(result.Sheets),
		StartDate: result.StartDate.Format(dateLayout),
		EndDate:   result.EndDate.Format(dateLayout),
		Data:      result.Sheets,
		Action:    "bulk_saved",
	})
}

// List returns timesheets filtered by employee and date range.
//
// @Summary      List timesheets
// @Tags         timesheets
// @Produce      json
// @Param        employeeId  query     string  false  "Employee id"
// @Param        startDate   query     string  false  "Range start (YYYY-MM-DD)"
// @Param        endDate     query     string  false  "Range end (YYYY-MM-DD)"
// @Success      200         {object}  timesheetListResponse
// @Router       /save-service/timesheets [get]
func (h *TimesheetHandler) List(c echo.Context) error {
	filter := ports.TimesheetFilter{EmployeeID: c.QueryParam("employeeId")}

	if s := c.QueryParam("startDate"); s != "" {
		start, err := parseDate(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.StartDate = start
	}
	if s := c.QueryParam("endDate"); s != "" {
		end, err := parseDate(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.EndDate = end
	}

	sheets, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, timesheetListResponse{
		Message: "Timesheets retrieved successfully",
		Count:   len(sheets),
		Data:    sheets,
	})
}

// Get returns one timesheet by id.
//
// @Summary      Get a timesheet by id
// @Tags         timesheets
// @Produce      json
// @Param        id   path      string  true  "Timesheet id"
// @Success      200  {object}  timesheetResponse
// @Failure      404  {object}  map[string]string
// @Router       /save-service/timesheets/{id} [get]
func (h *TimesheetHandler) Get(c echo.Context) error {
	sheet, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, struct {
		Message string `json:"message"`
		Data    any    `json:"data"`
	}{Message: "Timesheet retrieved successfully", Data: sheet})
}

// Health reports process liveness.
func (h *TimesheetHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "OK",
		Service:   h.name,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *TimesheetHandler) bindTimesheet(c echo.Context) (ports.TimesheetInput, error) {
	var req timesheetRequest
	if err := c.Bind(&req); err != nil {
		return ports.TimesheetInput{}, echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return ports.TimesheetInput{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return ports.TimesheetInput{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ports.TimesheetInput{
		Date:       date,
		Hours:      req.Hours,
		EmployeeID: req.EmployeeID,
		ProjectID:  req.ProjectID,
		TaskID:     req.TaskID,
		RecordType: req.RecordType,
		WFH:        req.WFH,
	}, nil
}
