package bus

import (
	"encoding/json"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
)

// The five routes recognized bit-exact across the bus.
const (
	RouteUpdateStoreProducts    = "update_store_products"
	RouteEditStockLevel         = "edit_stock_level"
	RouteReplicaReservedPayment = "replica/orderline/reserved/payment"
	RouteReplicaReservedInventory = "replica/orderline/reserved/inventory"
	RouteGetProduct             = "rpc.product.get_product"
)

// DeletingSet is the kwargs.deleting shape of update_store_products.
type DeletingSet struct {
	Items    []uint64 `json:"items"`
	Pkgs     []uint64 `json:"pkgs"`
	ItemType string   `json:"item_type"`
	PkgType  string   `json:"pkg_type"`
}

// UpdateStoreProductsKwargs is the kwargs element of the inbound
// update_store_products tuple.
type UpdateStoreProductsKwargs struct {
	SID       uint32      `json:"s_id"`
	RmAll     bool        `json:"rm_all"`
	Currency  string      `json:"currency"`
	Deleting  DeletingSet `json:"deleting"`
	Updating  []catalog.PriceModel `json:"updating"`
	Creating  []catalog.PriceModel `json:"creating"`
}

// UpdateStoreProductsBody is the full inbound tuple [args, kwargs, options].
// It unmarshals from a 3-element JSON array rather than an object, since
// that's the wire shape this route uses.
type UpdateStoreProductsBody struct {
	Args    []interface{}
	Kwargs  UpdateStoreProductsKwargs
	Options map[string]interface{}
}

func (b *UpdateStoreProductsBody) UnmarshalJSON(data []byte) error {
	var tuple [3]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
	}
	if err := json.Unmarshal(tuple[0], &b.Args); err != nil {
		return apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
	}
	if err := json.Unmarshal(tuple[1], &b.Kwargs); err != nil {
		return apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
	}
	if err := json.Unmarshal(tuple[2], &b.Options); err != nil {
		return apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
	}
	return nil
}

// EditStockLevelEntry is one element of the inbound edit_stock_level array.
type EditStockLevelEntry struct {
	QtyAdd      int64  `json:"qty_add"`
	StoreID     uint32 `json:"store_id"`
	ProductType string `json:"product_type"`
	ProductID   uint64 `json:"product_id"`
	Expiry      string `json:"expiry"`
}

// StockLevelPresentation is one element of edit_stock_level's reply.
type StockLevelPresentation struct {
	StoreID   uint32 `json:"store_id"`
	ProductID uint64 `json:"product_id"`
	Total     int64  `json:"total"`
	Booked    int64  `json:"booked"`
}

// ReservedRequest is the shared inbound body of both replica/orderline
// routes.
type ReservedRequest struct {
	OrderID string `json:"order_id"`
}

// ReservedLine is the line shape shared by both replica/orderline replies.
type ReservedLine struct {
	Pid        catalog.Pid `json:"pid"`
	ReservedQty int64      `json:"reserved_qty"`
	PaidQty     int64      `json:"paid_qty"`
}

// ReservedPaymentReply is replica/orderline/reserved/payment's reply.
type ReservedPaymentReply struct {
	Oid      string         `json:"oid"`
	UsrID    uint64         `json:"usr_id"`
	Lines    []ReservedLine `json:"lines"`
	Billing  interface{}    `json:"billing"`
	Currency interface{}    `json:"currency"`
}

// ReservedInventoryReply is replica/orderline/reserved/inventory's reply.
type ReservedInventoryReply struct {
	Oid      string         `json:"oid"`
	UsrID    uint64         `json:"usr_id"`
	Lines    []ReservedLine `json:"lines"`
	Shipping interface{}    `json:"shipping"`
}

// GetProductRequest is rpc.product.get_product's outbound body.
type GetProductRequest struct {
	ItemIDs    []uint64 `json:"item_ids"`
	PkgIDs     []uint64 `json:"pkg_ids"`
	ItemFields []string `json:"item_fields"`
	PkgFields  []string `json:"pkg_fields"`
	Profile    string   `json:"profile"`
}

// GetProductReply is rpc.product.get_product's reply.
type GetProductReply struct {
	Item []map[string]interface{} `json:"item"`
	Pkg  []map[string]interface{} `json:"pkg"`
}
