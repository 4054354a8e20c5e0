// Package inventory exposes the dealership's car catalog and records the
// leads each conversation flow produces at its terminal step.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/storage"
)

// Car is one listed vehicle.
type Car struct {
	ID       int64
	Brand    string
	Model    string
	BodyType string
	Fuel     string
	Year     int
	Kms      int
	// Price is in rupees.
	Price int64
}

// Title renders the display name used in result cards and selection menus.
func (c Car) Title() string {
	return fmt.Sprintf("%d %s %s", c.Year, c.Brand, c.Model)
}

// PriceLabel renders the price in lakhs, the way buyers quote it.
func (c Car) PriceLabel() string {
	return fmt.Sprintf("₹%.2f Lakhs", float64(c.Price)/100_000)
}

// Query filters the catalog.  Empty fields match everything; Budget is a
// bracket label from the alias tables.
type Query struct {
	Budget  string
	CarType string
	Brand   string
	Limit   int
}

// Outcome kinds recorded at flow-terminal steps.
const (
	OutcomeTestDrive = "test_drive_booking"
	OutcomeValuation = "valuation_lead"
	OutcomeContact   = "contact_request"
)

// Catalog is the SQLite-backed inventory store.
type Catalog struct {
	db *storage.DB
}

// NewCatalog wraps the shared database handle.
func NewCatalog(db *storage.DB) *Catalog {
	return &Catalog{db: db}
}

// SearchCars returns available cars matching q, cheapest first.
func (c *Catalog) SearchCars(ctx context.Context, q Query) ([]Car, error) {
	where := []string{"available = 1"}
	var args []any

	if q.Brand != "" {
		where = append(where, "brand = ?")
		args = append(args, q.Brand)
	}
	if q.CarType != "" {
		where = append(where, "body_type = ?")
		args = append(args, q.CarType)
	}
	if q.Budget != "" {
		if lo, hi, ok := nlu.BudgetBounds(q.Budget); ok {
			if lo > 0 {
				where = append(where, "price >= ?")
				args = append(args, lo)
			}
			if hi > 0 {
				where = append(where, "price < ?")
				args = append(args, hi)
			}
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(
		"SELECT id, brand, model, body_type, fuel, year, kms, price FROM cars WHERE %s ORDER BY price ASC LIMIT %d",
		strings.Join(where, " AND "), limit,
	)

	rows, err := c.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search cars: %w", err)
	}
	defer rows.Close()

	var cars []Car
	for rows.Next() {
		var car Car
		if err := rows.Scan(&car.ID, &car.Brand, &car.Model, &car.BodyType, &car.Fuel, &car.Year, &car.Kms, &car.Price); err != nil {
			return nil, fmt.Errorf("failed to scan car row: %w", err)
		}
		cars = append(cars, car)
	}
	return cars, rows.Err()
}

// RecordOutcome persists a flow-terminal lead.  Payload is stored as JSON.
func (c *Catalog) RecordOutcome(ctx context.Context, kind, channelID string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode outcome payload: %w", err)
	}
	_, err = c.db.Conn().ExecContext(ctx,
		"INSERT INTO outcomes (id, kind, channel_id, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), kind, channelID, string(body), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}
