// Package dbtest opens isolated in-memory SQLite databases carrying the
// storefront schema so repository and service tests can run without Postgres.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db"
)

// Money columns are TEXT so decimals round-trip exactly; timestamp columns are
// DATETIME so the driver scans them into time.Time.
var schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		price TEXT NOT NULL,
		currency TEXT NOT NULL,
		requires_variation BOOLEAN NOT NULL DEFAULT 0,
		published BOOLEAN NOT NULL DEFAULT 1,
		virtual BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_variations (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		version INTEGER NOT NULL DEFAULT 1,
		description TEXT NOT NULL,
		price TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL,
		published BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE flat_fee_shipping_rates (
		id TEXT PRIMARY KEY,
		country_code TEXT NOT NULL UNIQUE,
		country_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE tax_rates (
		id TEXT PRIMARY KEY,
		country_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		rate TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE discount_codes (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		expires_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE customers (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		first_name TEXT NOT NULL DEFAULT '',
		surname TEXT NOT NULL DEFAULT '',
		password_hash TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT REFERENCES customers(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'cart',
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		currency TEXT NOT NULL,
		subtotal_amount TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL DEFAULT '0',
		ordered_on DATETIME,
		last_active DATETIME NOT NULL,
		receipt_sent BOOLEAN NOT NULL DEFAULT 0,
		notification_sent BOOLEAN NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (status NOT IN ('processing', 'dispatched') OR payment_status = 'paid')
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE RESTRICT,
		object_id TEXT NOT NULL,
		object_type TEXT NOT NULL DEFAULT 'product',
		object_version INTEGER NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		virtual BOOLEAN NOT NULL DEFAULT 0,
		download_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_item_options (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES order_items(id) ON DELETE RESTRICT,
		object_id TEXT NOT NULL,
		object_type TEXT NOT NULL DEFAULT 'variation',
		object_version INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE order_modifications (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE RESTRICT,
		modifier_type TEXT NOT NULL,
		option_ref TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		affects_subtotal BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (order_id, modifier_type)
	)`,
	`CREATE TABLE order_addresses (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE RESTRICT,
		kind TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		surname TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		address_line2 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country_code TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (order_id, kind)
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE RESTRICT,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		method TEXT NOT NULL,
		gateway_reference TEXT UNIQUE,
		payer_reference TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh database with every storefront table created and
// foreign keys enforced. The database disappears when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a db.Client for services that take one.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(Open(t))
}
