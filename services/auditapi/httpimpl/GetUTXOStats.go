package httpimpl

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ordishs/gocore"
)

// GetUTXOStats runs a full audit of the utxo set. Closing the request cancels the scan.
func (h *HTTP) GetUTXOStats(c echo.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		AuditStat.NewStat("GetUTXOStats").AddTime(start)
	}()

	h.logger.Debugf("[AuditAPI_http] GetUTXOStats")

	stats, err := h.auditor.ComputeUTXOStats(c.Request().Context(), h.provider)
	if err != nil {
		prometheusAuditHTTPGetUTXOStats.WithLabelValues("ERROR", "500").Inc()
		return sendErrorFromErr(c, err)
	}

	prometheusAuditHTTPGetUTXOStats.WithLabelValues("OK", "200").Inc()

	return c.JSONPretty(http.StatusOK, stats, "  ")
}
