package httpimpl

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/bsv-blockchain/chainstate/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/labstack/echo/v4"
	"github.com/ordishs/gocore"
)

type registerRequest struct {
	TxID            string `json:"txid"`
	Vout            uint32 `json:"vout"`
	ConflictingTxID string `json:"conflictingTxid"`
	Height          uint32 `json:"height"`
}

type pruneRequest struct {
	Height *uint32 `json:"height"`
}

// GetDoubleSpends lists every double spend record ordered by outpoint.
func (h *HTTP) GetDoubleSpends(c echo.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		AuditStat.NewStat("GetDoubleSpends").AddTime(start)
	}()

	records := h.registry.GetAllRecords()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Outpoint.Compare(records[j].Outpoint) < 0
	})

	prometheusAuditHTTPGetDoubleSpends.WithLabelValues("OK", "200").Inc()

	return c.JSONPretty(http.StatusOK, records, "  ")
}

func (h *HTTP) GetDoubleSpend(c echo.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		AuditStat.NewStat("GetDoubleSpend").AddTime(start)
	}()

	txID, err := chainhash.NewHashFromStr(c.Param("txid"))
	if err != nil {
		prometheusAuditHTTPGetDoubleSpend.WithLabelValues("ERROR", "400").Inc()
		return sendError(c, http.StatusBadRequest, int32(errors.ERR_INVALID_ARGUMENT), errors.NewInvalidArgumentError("invalid txid", err))
	}

	vout, err := strconv.ParseUint(c.Param("vout"), 10, 32)
	if err != nil {
		prometheusAuditHTTPGetDoubleSpend.WithLabelValues("ERROR", "400").Inc()
		return sendError(c, http.StatusBadRequest, int32(errors.ERR_INVALID_ARGUMENT), errors.NewInvalidArgumentError("invalid vout", err))
	}

	outpoint := model.NewOutpoint(*txID, uint32(vout))

	rec := h.registry.GetRecord(outpoint)
	if rec == nil {
		prometheusAuditHTTPGetDoubleSpend.WithLabelValues("ERROR", "404").Inc()
		return sendError(c, http.StatusNotFound, int32(errors.ERR_NOT_FOUND), errors.NewNotFoundError("no double spend record for %s", outpoint))
	}

	prometheusAuditHTTPGetDoubleSpend.WithLabelValues("OK", "200").Inc()

	return c.JSONPretty(http.StatusOK, rec, "  ")
}

// RegisterDoubleSpend records a conflicting transaction and returns the updated record.
func (h *HTTP) RegisterDoubleSpend(c echo.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		AuditStat.NewStat("RegisterDoubleSpend").AddTime(start)
	}()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		prometheusAuditHTTPRegisterDoubleSpend.WithLabelValues("ERROR", "400").Inc()
		return sendError(c, http.StatusBadRequest, int32(errors.ERR_INVALID_ARGUMENT), errors.NewInvalidArgumentError("invalid request body", err))
	}

	if req.TxID == "" || req.ConflictingTxID == "" {
		prometheusAuditHTTPRegisterDoubleSpend.WithLabelValues("ERROR", "400").Inc()
		return sendError(c, http.StatusBadRequest, int32(errors.ERR_INVALID_ARGUMENT), errors.NewInvalidArgumentError("txid and conflictingTxid are required"))
	}

	txID, err := chainhash.NewHashFromStr(req.TxID)
	if err != nil {
		prometheusAuditHTTPRegisterDoubleSpend.WithLabelValues("ERROR", "400").Inc()
		return sendError(c, http.StatusBadRequest, int32(errors.ERR_INVALID_ARGUMENT), errors.NewInvalidArgumentError("invalid txid %q", req.TxID, err))
	}

	conflictingTxID, err := chainhash.NewHashFromStr(req.ConflictingTxID)
	if err != nil {
		prometheusAuditHTTPRegisterDoubleSpend.WithLabelValues("ERROR", "400").Inc()
		return sendError(c, http.StatusBadRequest, int32(errors.ERR_INVALID_ARGUMENT), errors.NewInvalidArgumentError("invalid conflictingTxid %q", req.ConflictingTxID, err))
	}

	outpoint := model.NewOutpoint(*txID, req.Vout)

	if err = h.registry.RegisterDoubleSpendAttempt(c.Request().Context(), outpoint, *conflictingTxID, req.Height); err != nil {
		prometheusAuditHTTPRegisterDoubleSpend.WithLabelValues("ERROR", "500").Inc()
		return sendErrorFromErr(c, err)
	}

	prometheusAuditHTTPRegisterDoubleSpend.WithLabelValues("OK", "200").Inc()

	return c.JSONPretty(http.StatusOK, h.registry.GetRecord(outpoint), "  ")
}

// PruneDoubleSpends deletes the records buried at least six blocks below the given height.
func (h *HTTP) PruneDoubleSpends(c echo.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		AuditStat.NewStat("PruneDoubleSpends").AddTime(start)
	}()

	var req pruneRequest
	if err := c.Bind(&req); err != nil || req.Height == nil {
		prometheusAuditHTTPPruneDoubleSpends.WithLabelValues("ERROR", "400").Inc()
		return sendError(c, http.StatusBadRequest, int32(errors.ERR_INVALID_ARGUMENT), errors.NewInvalidArgumentError("height is required"))
	}

	deleted, remaining, err := h.registry.PruneOldRecords(c.Request().Context(), *req.Height)
	if err != nil {
		prometheusAuditHTTPPruneDoubleSpends.WithLabelValues("ERROR", "500").Inc()
		return sendErrorFromErr(c, err)
	}

	prometheusAuditHTTPPruneDoubleSpends.WithLabelValues("OK", "200").Inc()

	return c.JSON(http.StatusOK, map[string]int{
		"deleted":   deleted,
		"remaining": remaining,
	})
}
