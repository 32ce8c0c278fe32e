package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// badRequest is a convenience wrapper naming the offending field,
// mirroring the teacher's mapServiceError single-purpose error mapper.
func badRequest(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func notFoundErr(message string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, message)
}

func internalErr(err error) *echo.HTTPError {
	slog.Error("unexpected internal error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
