package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/bus"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/stock"
)

func TestUpdateStoreProductsHandler_Creates(t *testing.T) {
	prices := catalog.NewMemoryPriceRepo()
	handler := updateStoreProductsHandler(prices, nil)

	body, err := json.Marshal([3]interface{}{
		[]interface{}{},
		map[string]interface{}{
			"s_id":   51,
			"rm_all": false,
			"deleting": map[string]interface{}{
				"items": []uint64{}, "pkgs": []uint64{}, "item_type": "item", "pkg_type": "pkg",
			},
			"creating": []catalog.PriceModel{
				{Pid: catalog.Pid{StoreID: 51, ProductID: 168}, Currency: "USD", Price: decimal.NewFromInt(510)},
			},
			"updating": []catalog.PriceModel{},
		},
		map[string]interface{}{},
	})
	require.NoError(t, err)

	reply, err := handler(context.Background(), body)
	require.NoError(t, err)
	assert.Contains(t, string(reply), `"ok":true`)

	models, err := prices.FetchByPids(context.Background(), 51, []catalog.Pid{{StoreID: 51, ProductID: 168}})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.True(t, models[0].Price.Equal(decimal.NewFromInt(510)))
}

func TestUpdateStoreProductsHandler_RmAll(t *testing.T) {
	prices := catalog.NewMemoryPriceRepo()
	require.NoError(t, prices.Save(context.Background(), 51, catalog.SaveSet{
		Creating: []catalog.PriceModel{{Pid: catalog.Pid{StoreID: 51, ProductID: 168}, Currency: "USD", Price: decimal.NewFromInt(510)}},
	}))
	handler := updateStoreProductsHandler(prices, nil)

	body, err := json.Marshal([3]interface{}{
		[]interface{}{},
		map[string]interface{}{"s_id": 51, "rm_all": true},
		map[string]interface{}{},
	})
	require.NoError(t, err)

	_, err = handler(context.Background(), body)
	require.NoError(t, err)

	models, err := prices.FetchByPids(context.Background(), 51, []catalog.Pid{{StoreID: 51, ProductID: 168}})
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestEditStockLevelHandler_RestocksBucket(t *testing.T) {
	repo := stock.NewMemoryRepo()
	engine := stock.NewEngine(repo, stock.NewKeyLockPool())
	handler := editStockLevelHandler(engine, nil)

	entries := []bus.EditStockLevelEntry{
		{QtyAdd: 22, StoreID: 51, ProductID: 168, Expiry: "2099-12-24T00:00:00Z"},
	}
	body, err := json.Marshal(entries)
	require.NoError(t, err)

	reply, err := handler(context.Background(), body)
	require.NoError(t, err)

	var presentations []bus.StockLevelPresentation
	require.NoError(t, json.Unmarshal(reply, &presentations))
	require.Len(t, presentations, 1)
	assert.EqualValues(t, 22, presentations[0].Total)
	assert.EqualValues(t, 0, presentations[0].Booked)
}
