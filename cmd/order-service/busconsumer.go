package main

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/bus"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/stock"
)

// registerBusRoutes binds the two inbound AMQP routes order-service owns:
// update_store_products maintains the catalog price-model-set,
// edit_stock_level restocks the stock buckets. The other three routes in
// internal/bus/routes.go (the replica/orderline pair and rpc.product.get_product)
// are outbound-only from this service's perspective and have no handler here.
func registerBusRoutes(client *bus.Client, prices catalog.PriceRepo, stockEngine *stock.Engine, logger *zap.Logger) error {
	if err := client.Register(bus.RouteUpdateStoreProducts, updateStoreProductsHandler(prices, logger)); err != nil {
		return err
	}
	if err := client.Register(bus.RouteEditStockLevel, editStockLevelHandler(stockEngine, logger)); err != nil {
		return err
	}
	return nil
}

func updateStoreProductsHandler(prices catalog.PriceRepo, logger *zap.Logger) bus.Handler {
	return func(ctx context.Context, body []byte) ([]byte, error) {
		var msg bus.UpdateStoreProductsBody
		if err := json.Unmarshal(body, &msg); err != nil {
			return nil, err
		}
		kw := msg.Kwargs

		if kw.RmAll {
			if err := prices.DeleteAll(ctx, kw.SID); err != nil {
				return nil, err
			}
			return json.Marshal(ackReply{OK: true})
		}

		// DeletingSet only carries bare product ids, not the full Pid triple;
		// attr_set_seq isn't addressable from this wire shape, so a delete
		// always targets the seq-0 variant.
		var deletePids []catalog.Pid
		for _, id := range kw.Deleting.Items {
			deletePids = append(deletePids, catalog.Pid{StoreID: kw.SID, ProductID: id})
		}
		for _, id := range kw.Deleting.Pkgs {
			deletePids = append(deletePids, catalog.Pid{StoreID: kw.SID, ProductID: id})
		}
		if len(deletePids) > 0 {
			if err := prices.DeleteSubset(ctx, kw.SID, deletePids); err != nil {
				return nil, err
			}
		}

		set := catalog.SaveSet{Updating: kw.Updating, Creating: kw.Creating}
		if err := set.CheckDisjoint(); err != nil {
			return nil, err
		}
		if len(set.Updating) > 0 || len(set.Creating) > 0 {
			if err := prices.Save(ctx, kw.SID, set); err != nil {
				return nil, err
			}
		}

		if logger != nil {
			logger.Info("update_store_products applied",
				zap.Uint32("store_id", kw.SID),
				zap.Int("updating", len(kw.Updating)), zap.Int("creating", len(kw.Creating)),
				zap.Int("deleting", len(deletePids)), zap.Bool("rm_all", kw.RmAll))
		}
		return json.Marshal(ackReply{OK: true})
	}
}

type ackReply struct {
	OK bool `json:"ok"`
}

func editStockLevelHandler(engine *stock.Engine, logger *zap.Logger) bus.Handler {
	return func(ctx context.Context, body []byte) ([]byte, error) {
		var entries []bus.EditStockLevelEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, err
		}
		adjustments := make([]stock.LevelAdjustment, 0, len(entries))
		for _, e := range entries {
			expiry, err := time.Parse(time.RFC3339, e.Expiry)
			if err != nil {
				return nil, err
			}
			adjustments = append(adjustments, stock.LevelAdjustment{
				StoreID: e.StoreID, ProductID: e.ProductID, ExpiresAt: expiry, QtyAdd: e.QtyAdd,
			})
		}
		results, err := engine.AdjustLevel(ctx, adjustments)
		if err != nil {
			return nil, err
		}
		presentations := make([]bus.StockLevelPresentation, 0, len(results))
		for _, r := range results {
			presentations = append(presentations, bus.StockLevelPresentation{
				StoreID: r.StoreID, ProductID: r.ProductID, Total: r.Total, Booked: r.Booked,
			})
		}
		if logger != nil {
			logger.Info("edit_stock_level applied", zap.Int("entries", len(entries)))
		}
		return json.Marshal(presentations)
	}
}
