// cmd/seed/seeder.go
package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"
)

func seedMaster(c *cli.Context) error {
	db, err := dbFromContext(c)
	if err != nil {
		return err
	}

	dataDir := c.String("data-dir")

	if err := seedCSV(db, filepath.Join(dataDir, "stores.csv"), 3, func(tx *sql.Tx, record []string) error {
		id, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid store id %q: %w", record[0], err)
		}
		_, err = tx.Exec(`
			INSERT INTO stores (id, name, region)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, region = EXCLUDED.region
		`, id, record[1], record[2])
		return err
	}); err != nil {
		return fmt.Errorf("seeding stores: %w", err)
	}

	if err := seedCSV(db, filepath.Join(dataDir, "skus.csv"), 3, func(tx *sql.Tx, record []string) error {
		_, err := tx.Exec(`
			INSERT INTO skus (sku_id, category, region)
			VALUES ($1, $2, $3)
			ON CONFLICT (sku_id) DO UPDATE SET category = EXCLUDED.category, region = EXCLUDED.region
		`, record[0], record[1], record[2])
		return err
	}); err != nil {
		return fmt.Errorf("seeding skus: %w", err)
	}

	if err := seedCSV(db, filepath.Join(dataDir, "unit_costs.csv"), 3, func(tx *sql.Tx, record []string) error {
		storeID, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid store id %q: %w", record[0], err)
		}
		cost, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return fmt.Errorf("invalid unit cost %q: %w", record[2], err)
		}
		_, err = tx.Exec(`
			INSERT INTO unit_costs (store_id, sku_id, unit_cost)
			VALUES ($1, $2, $3)
			ON CONFLICT (store_id, sku_id) DO UPDATE SET unit_cost = EXCLUDED.unit_cost
		`, storeID, record[1], cost)
		return err
	}); err != nil {
		return fmt.Errorf("seeding unit costs: %w", err)
	}

	return nil
}

func seedFacts(c *cli.Context) error {
	db, err := dbFromContext(c)
	if err != nil {
		return err
	}

	if salesFile := c.String("sales-file"); salesFile != "" {
		// date, store_id, sku_id, units_sold, selling_price
		if err := seedCSV(db, salesFile, 5, func(tx *sql.Tx, record []string) error {
			storeID, err := strconv.ParseInt(record[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid store id %q: %w", record[1], err)
			}
			units, err := strconv.ParseFloat(record[3], 64)
			if err != nil {
				return fmt.Errorf("invalid units sold %q: %w", record[3], err)
			}
			price, err := strconv.ParseFloat(record[4], 64)
			if err != nil {
				return fmt.Errorf("invalid selling price %q: %w", record[4], err)
			}
			_, err = tx.Exec(`
				INSERT INTO sales_records (date, store_id, sku_id, units_sold, selling_price)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (date, store_id, sku_id) DO UPDATE SET
					units_sold = EXCLUDED.units_sold,
					selling_price = EXCLUDED.selling_price
			`, record[0], storeID, record[2], units, price)
			return err
		}); err != nil {
			return fmt.Errorf("seeding sales records: %w", err)
		}
	}

	if inventoryFile := c.String("inventory-file"); inventoryFile != "" {
		// snapshot_date, store_id, sku_id, batch_id, expiry_date, on_hand_qty
		if err := seedCSV(db, inventoryFile, 6, func(tx *sql.Tx, record []string) error {
			storeID, err := strconv.ParseInt(record[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid store id %q: %w", record[1], err)
			}
			qty, err := strconv.ParseFloat(record[5], 64)
			if err != nil {
				return fmt.Errorf("invalid on-hand qty %q: %w", record[5], err)
			}
			_, err = tx.Exec(`
				INSERT INTO inventory_batches (snapshot_date, store_id, sku_id, batch_id, expiry_date, on_hand_qty)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (snapshot_date, store_id, sku_id, batch_id) DO UPDATE SET
					expiry_date = EXCLUDED.expiry_date,
					on_hand_qty = EXCLUDED.on_hand_qty
			`, record[0], storeID, record[2], record[3], record[4], qty)
			return err
		}); err != nil {
			return fmt.Errorf("seeding inventory batches: %w", err)
		}
	}

	return nil
}

// seedCSV streams a headered CSV into the database, one transaction per file.
func seedCSV(db *sql.DB, path string, minFields int, insert func(tx *sql.Tx, record []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("skipping %s: file not found", path)
			return nil
		}
		return err
	}
	defer f.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// Skip header row
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to read header: %w", err)
	}

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		if len(record) < minFields {
			return fmt.Errorf("record %d has %d fields, expected %d", count+2, len(record), minFields)
		}

		if err := insert(tx, record); err != nil {
			return err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("seeded %d rows from %s", count, path)
	return nil
}
