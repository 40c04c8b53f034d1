package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/hermes/backend/src/models"
)

var ErrPurchaseNotFound = errors.New("purchase not found")

// UpsertInventoryItem creates the item or updates its title. An empty title keeps the stored one.
func UpsertInventoryItem(db *sql.DB, itemID, title string) error {
	now := time.Now()
	_, err := db.Exec(`
	INSERT INTO inventory_items (item_id, title, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(item_id) DO UPDATE SET
		title = CASE WHEN excluded.title = '' THEN inventory_items.title ELSE excluded.title END,
		updated_at = excluded.updated_at`,
		itemID, title, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert inventory item %s: %w", itemID, err)
	}
	return nil
}

// AddPurchase stores a stock movement, creating the item row when needed.
// A missing total cost is derived from quantity and unit cost.
func AddPurchase(db *sql.DB, p *models.Purchase) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(`INSERT OR IGNORE INTO inventory_items (item_id, title, created_at, updated_at) VALUES (?, '', ?, ?)`,
		p.ItemID, now, now); err != nil {
		return fmt.Errorf("failed to ensure inventory item %s: %w", p.ItemID, err)
	}

	if p.TotalCost == 0 {
		p.TotalCost = float64(p.Quantity) * p.UnitCost
	}
	if p.Date.IsZero() {
		p.Date = now
	}

	res, err := tx.Exec(`
	INSERT INTO inventory_purchases (item_id, quantity, unit_cost, total_cost, source_id, purchased_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ItemID, p.Quantity, p.UnitCost, p.TotalCost, p.SourceID, p.Date, now)
	if err != nil {
		return fmt.Errorf("failed to insert purchase for %s: %w", p.ItemID, err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return tx.Commit()
}

func DeletePurchase(db *sql.DB, id int64) error {
	res, err := db.Exec(`DELETE FROM inventory_purchases WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

// ListInventory returns every item with its purchases, newest purchase first.
func ListInventory(db *sql.DB) ([]models.InventoryItem, error) {
	rows, err := db.Query(`
	SELECT i.item_id, i.title, p.id, p.quantity, p.unit_cost, p.total_cost, p.source_id, p.purchased_at
	FROM inventory_items i
	LEFT JOIN inventory_purchases p ON p.item_id = i.item_id
	ORDER BY i.item_id ASC, p.purchased_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var items []models.InventoryItem
	for rows.Next() {
		var itemID, title string
		var purchaseID sql.NullInt64
		var quantity sql.NullInt64
		var unitCost, totalCost sql.NullFloat64
		var sourceID sql.NullString
		var purchasedAt sql.NullTime
		if err := rows.Scan(&itemID, &title, &purchaseID, &quantity, &unitCost, &totalCost, &sourceID, &purchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}

		if len(items) == 0 || items[len(items)-1].ItemID != itemID {
			items = append(items, models.InventoryItem{ItemID: itemID, Title: title, Purchases: []models.Purchase{}})
		}
		if !purchaseID.Valid {
			continue
		}
		item := &items[len(items)-1]
		item.Purchases = append(item.Purchases, models.Purchase{
			ID:        purchaseID.Int64,
			ItemID:    itemID,
			Quantity:  int(quantity.Int64),
			UnitCost:  unitCost.Float64,
			TotalCost: totalCost.Float64,
			SourceID:  sourceID.String,
			Date:      purchasedAt.Time,
		})
		item.TotalQuantity += int(quantity.Int64)
	}
	return items, rows.Err()
}

// InventoryByItem indexes ListInventory by item id.
func InventoryByItem(db *sql.DB) (map[string]models.InventoryItem, error) {
	items, err := ListInventory(db)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.InventoryItem, len(items))
	for _, it := range items {
		out[it.ItemID] = it
	}
	return out, nil
}
