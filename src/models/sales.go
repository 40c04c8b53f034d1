// src/models/sales.go
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FlexibleID accepts identifiers sent either as JSON numbers or as strings.
// Mercado Livre returns order and payment ids as numbers, the legacy backend
// returns them as strings.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	// Large ids come back as 2.000001e+09 from some encoders.
	if f, err := n.Float64(); err == nil && strings.ContainsAny(n.String(), ".eE") && f == float64(int64(f)) {
		*id = FlexibleID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string { return string(id) }

// RawOrder is an order as returned by /orders/search or /vendas_adm.
type RawOrder struct {
	ID          FlexibleID     `json:"id"`
	Status      string         `json:"status"`
	DateCreated string         `json:"date_created"`
	DateClosed  string         `json:"date_closed"`
	OrderItems  []RawOrderItem `json:"order_items"`
	Payments    []RawPayment   `json:"payments"`
}

type RawOrderItem struct {
	Item struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		CategoryID string `json:"category_id"`
	} `json:"item"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type RawPayment struct {
	ID                FlexibleID `json:"id"`
	OrderID           FlexibleID `json:"order_id"`
	TransactionAmount float64    `json:"transaction_amount"`
	Status            string     `json:"status"`
	StatusDetail      string     `json:"status_detail"`
	DateApproved      string     `json:"date_approved"`
	DateCreated       string     `json:"date_created"`
}

// OrderNet is the exact amount received for one order after marketplace fees.
type OrderNet struct {
	OrderID           FlexibleID `json:"order_id"`
	NetReceivedAmount float64    `json:"net_received_amount"`
}

// SettlementTransaction is one aggregated order.
type SettlementTransaction struct {
	Date       time.Time `json:"date"`
	SourceID   string    `json:"sourceId"`
	OrderID    string    `json:"orderId"`
	Group      string    `json:"group"`
	Units      int       `json:"units"`
	GrossValue float64   `json:"grossValue"`
	NetValue   float64   `json:"netValue"`
	NetIsExact bool      `json:"netIsExact"`
	ItemID     string    `json:"itemId"`
	Title      string    `json:"title"`
	IsRefunded bool      `json:"isRefunded"`
}

type SettlementResult struct {
	Transactions    []SettlementTransaction `json:"transactions"`
	TotalGrossSales float64                 `json:"totalGrossSales"`
	TotalNetSales   float64                 `json:"totalNetSales"`
	RefundedCount   int                     `json:"refundedCount"`
	UnpaidOrders    int                     `json:"unpaidOrders"`
}

// ByOrder indexes the settlement transactions by order id. A nil result
// yields an empty index.
func (r *SettlementResult) ByOrder() map[string]SettlementTransaction {
	if r == nil {
		return map[string]SettlementTransaction{}
	}
	byOrder := make(map[string]SettlementTransaction, len(r.Transactions))
	for _, tx := range r.Transactions {
		if tx.OrderID == "" {
			continue
		}
		byOrder[tx.OrderID] = tx
	}
	return byOrder
}
