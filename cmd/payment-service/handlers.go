package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/auth"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/charge"
	"github.com/iaros/commerce-core/internal/httpx"
	"github.com/iaros/commerce-core/internal/money"
	"github.com/iaros/commerce-core/internal/order"
	"github.com/iaros/commerce-core/internal/payout"
	"github.com/iaros/commerce-core/internal/refund"
)

type handlers struct {
	charges *charge.Service
	payouts *payout.Service
	refunds *refund.Service
	logger  *zap.Logger
}

func (h *handlers) registerRoutes(r *gin.Engine, signer *auth.Signer) {
	v1 := r.Group("/v1")
	v1.Use(auth.RequireBearer(signer))
	{
		v1.POST("/charge", auth.RequirePerm(auth.PermCanCreateCharge), h.createCharge)
		v1.PATCH("/charge/:charge_id", auth.RequirePerm(auth.PermCanUpdateChargeProgress), h.refreshCharge)
		v1.POST("/charge/:charge_id/capture", auth.RequirePerm(auth.PermCanCaptureCharge), h.captureCharge)
		v1.PATCH("/refund/:oid/complete/:store_id", auth.RequirePerm(auth.PermCanFinalizeRefund), h.completeRefund)
	}
}

type chargeLineBody struct {
	StoreID    uint32 `json:"store_id"`
	ProductID  uint64 `json:"product_id"`
	AttrSetSeq uint16 `json:"attr_set_seq"`
	Qty        int64  `json:"qty"`
}

type createChargeBody struct {
	OrderID string           `json:"order_id"`
	Lines   []chargeLineBody `json:"lines"`
}

// createCharge implements `POST /charge`: validates the request and starts
// the create-charge pipeline.
func (h *handlers) createCharge(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var body createChargeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}
	orderID, err := order.DecodeID(body.OrderID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	quota, ok := claims.QuotaFor(auth.QuotaNumChargesPerOrder)
	if !ok {
		httpx.WriteError(c, quotaExceeded())
		return
	}
	req := charge.CreateRequest{OwnerID: claims.Profile, OrderID: orderID, ChargeQuota: quota}
	for _, l := range body.Lines {
		req.Lines = append(req.Lines, struct {
			Pid catalog.Pid
			Qty int64
		}{
			Pid: catalog.Pid{StoreID: l.StoreID, ProductID: l.ProductID, AttrSetSeq: l.AttrSetSeq},
			Qty: l.Qty,
		})
	}

	ch, err := h.charges.CreateCharge(c.Request.Context(), req)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"charge_id": ch.ChargeID.String(), "state": string(ch.State)})
}

// refreshCharge implements `PATCH /charge/{charge_id}`: polls the PSP and
// advances the charge's state machine.
func (h *handlers) refreshCharge(c *gin.Context) {
	id, err := charge.DecodeID(c.Param("charge_id"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	ch, err := h.charges.RefreshCharge(c.Request.Context(), id)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charge_id": ch.ChargeID.String(), "state": string(ch.State)})
}

type captureBody struct {
	MerchantID uint64 `json:"merchant_id"`
	StaffID    uint64 `json:"staff_id"`
}

// captureCharge implements `POST /charge/{charge_id}/capture`: the
// merchant-driven payout pipeline. This maps onto payout.Service.CreatePayout
// rather than a charge.Service method -- capture is the merchant pulling
// proceeds for their lines of a completed charge, not a charge-state
// transition.
func (h *handlers) captureCharge(c *gin.Context) {
	chargeID, err := charge.DecodeID(c.Param("charge_id"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	var body captureBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}
	p, err := h.payouts.CreatePayout(c.Request.Context(), payout.CreatePayoutRequest{
		ChargeID: chargeID, MerchantID: body.MerchantID, StaffID: body.StaffID,
	})
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payout_id": p.PayoutID.String(), "transfer_id": p.TransferID,
		"amount_label": p.AmountLabel, "amount_value": p.AmountValue.String(),
	})
}

type refundRejectBody struct {
	Reason string `json:"reason"`
	Qty    int64  `json:"qty"`
}

type refundApprovalBody struct {
	Qty               int64  `json:"qty"`
	AmountBuyerLabel  string `json:"amount_buyer_label"`
	AmountBuyerValue  string `json:"amount_buyer_value"`
}

type completeRefundBody struct {
	ProductID  uint64             `json:"product_id"`
	AttrSetSeq uint16             `json:"attr_set_seq"`
	TimeIssued int64              `json:"time_issued"`
	Reject     []refundRejectBody `json:"reject"`
	Approval   refundApprovalBody `json:"approval"`
}

// completeRefund implements `PATCH /refund/{oid}/complete/{store_id}`: the
// merchant-driven refund resolution pipeline.
func (h *handlers) completeRefund(c *gin.Context) {
	storeID, err := parseUint64(c.Param("store_id"))
	if err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}
	var body completeRefundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.WriteError(c, apperror400(err))
		return
	}
	amt, err := parseAmount(body.Approval.AmountBuyerLabel, body.Approval.AmountBuyerValue)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}

	req := refund.ResolutionRequest{
		Key: refund.RequestKey{
			OrderID:    c.Param("oid"),
			Pid:        catalog.Pid{StoreID: uint32(storeID), ProductID: body.ProductID, AttrSetSeq: body.AttrSetSeq},
			TimeIssued: time.Unix(body.TimeIssued, 0).UTC(),
		},
		Approval: refund.Approval{Qty: body.Approval.Qty, AmountTotalBuyer: amt},
	}
	for _, rej := range body.Reject {
		req.Reject = append(req.Reject, refund.RejectLine{Reason: rej.Reason, Qty: rej.Qty})
	}

	res, err := h.refunds.ResolveRefund(c.Request.Context(), req)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refund_id": res.RefundID, "approved_qty": res.ApprovedQty,
		"amount_merchant_label": res.AmountMerchant.Label, "amount_merchant_value": res.AmountMerchant.Value.String(),
	})
}
