package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/auth"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/httpx"
	"github.com/iaros/commerce-core/internal/money"
	"github.com/iaros/commerce-core/internal/order"
	"github.com/iaros/commerce-core/internal/returns"
)

type handlers struct {
	orders  *order.Service
	returns returns.Repo
	logger  *zap.Logger
}

func (h *handlers) registerRoutes(r *gin.Engine, signer *auth.Signer) {
	v1 := r.Group("/v1")
	v1.Use(auth.RequireBearer(signer))
	{
		v1.POST("/order", h.createOrder)
		v1.PATCH("/order/:oid", h.editOrder)
		v1.PATCH("/order/:oid/return", auth.RequirePerm(auth.PermCanCreateReturnReq), h.requestReturn)
	}

	// Internal, service-to-service surface: payment-service's charge
	// pipeline needs a read of an order's reserved/paid lines and a way to
	// bump its charge counter, without owning the order table itself.
	internal := r.Group("/internal/order")
	{
		internal.GET("/:oid/owner/:owner_id", h.fetchOrderInternal)
		internal.POST("/:oid/increment-charges", h.incrementChargesInternal)
		internal.PATCH("/:oid/payment-sync", h.paymentSyncInternal)
		internal.GET("/:oid/currency", h.currencySnapshotInternal)
	}
	r.GET("/internal/buyer/:buyer_id/rate", h.buyerRateInternal)
	r.GET("/internal/returns/pending", h.pendingReturnsInternal)
}

type internalLine struct {
	Pid         catalog.Pid `json:"pid"`
	ReservedQty int64       `json:"reserved_qty"`
	PaidQty     int64       `json:"paid_qty"`
	PriceLabel  string      `json:"price_label"`
	PriceValue  string      `json:"price_value"`
}

func (h *handlers) fetchOrderInternal(c *gin.Context) {
	id, err := order.DecodeID(c.Param("oid"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	ownerID, err := parseUint64(c.Param("owner_id"))
	if err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}
	ord, err := h.orders.FetchByID(c.Request.Context(), ownerID, id)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	lines := make([]internalLine, 0, len(ord.Lines))
	for _, l := range ord.Lines {
		lines = append(lines, internalLine{
			Pid: l.Pid, ReservedQty: l.ReservedQty, PaidQty: l.PaidQty,
			PriceLabel: l.PriceUnit.Label, PriceValue: l.PriceUnit.Value.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"num_charges": ord.Header.NumCharges, "lines": lines})
}

func (h *handlers) incrementChargesInternal(c *gin.Context) {
	id, err := order.DecodeID(c.Param("oid"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	if err := h.orders.IncrementNumCharges(c.Request.Context(), id); err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type paidQuantityUpdate struct {
	StoreID      uint32 `json:"store_id"`
	ProductID    uint64 `json:"product_id"`
	AttrSetSeq   uint16 `json:"attr_set_seq"`
	PaidQtyDelta int64  `json:"paid_qty_delta"`
	PaidAt       string `json:"paid_at"`
}

// paymentSyncInternal backs the charge pipeline's RestyOrderSyncer: it
// records newly completed charge lines as paid quantities on the order.
func (h *handlers) paymentSyncInternal(c *gin.Context) {
	id, err := order.DecodeID(c.Param("oid"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	var body struct {
		Updates []paidQuantityUpdate `json:"updates"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}
	updates := make([]order.LinePaymentUpdate, 0, len(body.Updates))
	for _, u := range body.Updates {
		at, err := time.Parse(time.RFC3339, u.PaidAt)
		if err != nil {
			httpx.WriteError(c, apperror400(err))
			return
		}
		updates = append(updates, order.LinePaymentUpdate{
			Pid:          catalog.Pid{StoreID: u.StoreID, ProductID: u.ProductID, AttrSetSeq: u.AttrSetSeq},
			PaidQtyDelta: u.PaidQtyDelta, PaidAt: at,
		})
	}
	if err := h.orders.RecordPayment(c.Request.Context(), id, updates); err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type rateEntryDTO struct {
	Label string `json:"label"`
	Rate  string `json:"rate"`
}

// currencySnapshotInternal serves the refund pipeline's currency
// converter: the order's owner id plus its locked exchange-rate snapshot.
func (h *handlers) currencySnapshotInternal(c *gin.Context) {
	id, err := order.DecodeID(c.Param("oid"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	ord, err := h.orders.FetchByIDUnscoped(c.Request.Context(), id)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	snapshot := make(map[uint64]rateEntryDTO, len(ord.Header.CurrencySnapshot))
	for actor, entry := range ord.Header.CurrencySnapshot {
		snapshot[actor] = rateEntryDTO{Label: entry.Label, Rate: entry.Rate.String()}
	}
	c.JSON(http.StatusOK, gin.H{"owner_id": ord.Header.OwnerID, "snapshot": snapshot})
}

// buyerRateInternal serves the payout pipeline's BuyerRateGateway: the
// buyer's locked rate-to-base, read off their most recent order's currency
// snapshot.
func (h *handlers) buyerRateInternal(c *gin.Context) {
	buyerID, err := parseUint64(c.Param("buyer_id"))
	if err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}
	ord, err := h.orders.FetchLatestByOwner(c.Request.Context(), buyerID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	entry, ok := ord.Header.CurrencySnapshot[buyerID]
	if !ok {
		httpx.WriteError(c, apperror.ErrMissingExRate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"label": entry.Label, "rate": entry.Rate.String()})
}

type pendingRefundRequestDTO struct {
	OrderID     string      `json:"order_id"`
	Pid         catalog.Pid `json:"pid"`
	TimeIssued  int64       `json:"time_issued"`
	RequestedQty int64      `json:"requested_qty"`
}

// pendingReturnsInternal serves the refund sync puller: every accepted
// return record, flattened into one entry per (order, pid, rounded time).
func (h *handlers) pendingReturnsInternal(c *gin.Context) {
	models, err := h.returns.FetchAllPending(c.Request.Context())
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	out := make([]pendingRefundRequestDTO, 0, len(models))
	for _, m := range models {
		for roundedTime, entry := range m.Entries {
			out = append(out, pendingRefundRequestDTO{
				OrderID: m.OrderID, Pid: m.Pid, TimeIssued: roundedTime, RequestedQty: entry.Qty,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

type rawLine struct {
	StoreID    uint32 `json:"store_id"`
	ProductID  uint64 `json:"product_id"`
	AttrSetSeq uint16 `json:"attr_set_seq"`
	Qty        int64  `json:"qty"`
}

type rawSnapshotEntry struct {
	Label string `json:"label"`
	Rate  string `json:"rate"`
}

type createOrderBody struct {
	Lines            []rawLine                   `json:"lines"`
	Billing          order.Billing               `json:"billing"`
	Shipping         order.Shipping              `json:"shipping"`
	SellerIDs        []uint64                    `json:"seller_ids"`
	CurrencySnapshot map[uint64]rawSnapshotEntry `json:"currency_snapshot"`
}

func (h *handlers) createOrder(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}

	if limit, ok := claims.QuotaFor(auth.QuotaNumOrderLines); ok && int32(len(body.Lines)) > limit {
		httpx.WriteError(c, quotaExceeded())
		return
	}

	rates := make(map[uint64]money.RawRate, len(body.CurrencySnapshot))
	for actor, entry := range body.CurrencySnapshot {
		rates[actor] = money.RawRate{Label: entry.Label, Rate: entry.Rate}
	}
	snapshot, err := money.TryBuildCurrencySnapshot(claims.Profile, money.RawSnapshotDTO{
		Rates: rates, SellerIDs: body.SellerIDs,
	})
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	req := order.CreateRequest{
		OwnerID: claims.Profile, Billing: body.Billing, Shipping: body.Shipping, CurrencySnapshot: snapshot,
	}
	for _, l := range body.Lines {
		req.Lines = append(req.Lines, order.LineRequest{
			Pid: catalog.Pid{StoreID: l.StoreID, ProductID: l.ProductID, AttrSetSeq: l.AttrSetSeq}, Qty: l.Qty,
		})
	}

	res, err := h.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	if len(res.LineErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"line_errors": res.LineErrors})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": res.Order.Header.OrderID.String()})
}

func (h *handlers) editOrder(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	id, err := order.DecodeID(c.Param("oid"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	var body struct {
		Billing  order.Billing  `json:"billing"`
		Shipping order.Shipping `json:"shipping"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}
	if err := h.orders.UpdateContacts(c.Request.Context(), claims.Profile, id, body.Billing, body.Shipping); err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type returnLineBody struct {
	StoreID       uint32 `json:"store_id"`
	ProductID     uint64 `json:"product_id"`
	AttrSetSeq    uint16 `json:"attr_set_seq"`
	Qty           int64  `json:"qty"`
	RefundPerUnit string `json:"refund_per_unit"`
	Currency      string `json:"currency"`
}

func (h *handlers) requestReturn(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	id, err := order.DecodeID(c.Param("oid"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	var body struct {
		Lines []returnLineBody `json:"lines"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}

	ord, err := h.orders.FetchByID(c.Request.Context(), claims.Profile, id)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	savedLines := make(map[catalog.Pid]returns.SavedLine, len(ord.Lines))
	for _, l := range ord.Lines {
		savedLines[l.Pid] = returns.SavedLine{Pid: l.Pid, WarrantyUntil: l.WarrantyUntil, PaidQty: l.PaidQty}
	}
	savedReturns, err := h.returns.FetchByOrder(c.Request.Context(), id.String())
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	now := time.Now()
	requests := make([]returns.Request, 0, len(body.Lines))
	for _, l := range body.Lines {
		amt, parseErr := parseAmount(l.Currency, l.RefundPerUnit)
		if parseErr != nil {
			httpx.WriteError(c, parseErr)
			return
		}
		requests = append(requests, returns.Request{
			OrderID: id.String(),
			Pid:     catalog.Pid{StoreID: l.StoreID, ProductID: l.ProductID, AttrSetSeq: l.AttrSetSeq},
			Qty:     l.Qty, RequestTime: now, RefundPerUnit: amt,
		})
	}

	accepted, lineErrs := returns.FilterRequests(now, returns.DefaultRoundWindow, id.String(), requests, savedLines, savedReturns)
	if len(lineErrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"line_errors": lineErrs})
		return
	}
	if err := h.returns.Merge(c.Request.Context(), accepted); err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
