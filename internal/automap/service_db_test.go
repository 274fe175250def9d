package automap

import (
	"context"
	"testing"
	"time"

	"github.com/blueoakmerch/merchops-backend/internal/links"
	"github.com/blueoakmerch/merchops-backend/internal/matching"
	"github.com/blueoakmerch/merchops-backend/internal/orderstore"
	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAutoMapTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	providerOrders := `
CREATE TABLE IF NOT EXISTS provider_orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_id TEXT,
  recipient_name TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL,
  provider_created_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	providerOrderItems := `
CREATE TABLE IF NOT EXISTS provider_order_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider_order_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  variant TEXT,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	storefrontOrders := `
CREATE TABLE IF NOT EXISTS storefront_orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_number TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_email TEXT,
  total_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  payment_status TEXT NOT NULL,
  fulfillment_status TEXT NOT NULL,
  placed_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderLinks := `
CREATE TABLE IF NOT EXISTS order_links (
  id TEXT PRIMARY KEY,
  provider_order_id INTEGER NOT NULL,
  storefront_order_id INTEGER,
  link_type TEXT NOT NULL,
  link_status TEXT NOT NULL,
  classification TEXT NOT NULL DEFAULT 'normal',
  confidence NUMERIC,
  linked_by TEXT,
  notes TEXT,
  linked_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	liveIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS uq_order_links_live_provider
  ON order_links (provider_order_id)
  WHERE link_status IN ('active', 'pending_verification');`
	require.NoError(t, conn.Exec(providerOrders).Error)
	require.NoError(t, conn.Exec(providerOrderItems).Error)
	require.NoError(t, conn.Exec(storefrontOrders).Error)
	require.NoError(t, conn.Exec(orderLinks).Error)
	require.NoError(t, conn.Exec(liveIndex).Error)
	return conn
}

func seedProviderOrder(t *testing.T, conn *gorm.DB, recipient, amount string, created time.Time) *models.ProviderOrder {
	t.Helper()

	order := &models.ProviderOrder{
		RecipientName:     recipient,
		TotalAmount:       decimal.RequireFromString(amount),
		Currency:          "USD",
		Status:            "fulfilled",
		ProviderCreatedAt: created,
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func seedStorefrontOrder(t *testing.T, conn *gorm.DB, number, customer, amount string, placed time.Time) *models.StorefrontOrder {
	t.Helper()

	order := &models.StorefrontOrder{
		OrderNumber:       number,
		CustomerName:      customer,
		TotalAmount:       decimal.RequireFromString(amount),
		Currency:          "USD",
		PaymentStatus:     "paid",
		FulfillmentStatus: "fulfilled",
		PlacedAt:          placed,
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func newDBBackedService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()

	orders := orderstore.NewRepository(conn)
	linkSvc, err := links.NewService(links.NewRepository(conn), orders, nil)
	require.NoError(t, err)
	svc, err := NewService(orders, linkSvc, matching.NewMatcher(matching.Config{}), testPolicy(), nil, nil)
	require.NoError(t, err)
	return svc
}

func TestRun_secondRunCreatesNothing(t *testing.T) {
	conn := setupAutoMapTestDB(t)
	svc := newDBBackedService(t, conn)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Clear winner: one candidate matches on amount, name and date, the other
	// on nothing.
	seedProviderOrder(t, conn, "Jane Doe", "42.50", now)
	seedStorefrontOrder(t, conn, "#1001", "Jane Doe", "42.50", now)
	seedStorefrontOrder(t, conn, "#1002", "Bob Smith", "99.99", now.Add(3*24*time.Hour))

	// Ambiguous pair: two near-identical candidates keep the lead under the
	// margin, so the best gets a pending link.
	seedProviderOrder(t, conn, "Alex Lee", "30.00", now)
	seedStorefrontOrder(t, conn, "#1003", "Alex Lee", "30.00", now)
	seedStorefrontOrder(t, conn, "#1004", "Alex Lee", "30.00", now.Add(time.Hour))

	first, err := svc.Run(ctx, Bounds{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Scanned)
	assert.Equal(t, 1, first.AutoLinked)
	assert.Equal(t, 1, first.PendingCreated)
	assert.Equal(t, 0, first.Failed)

	var afterFirst int64
	require.NoError(t, conn.Model(&models.OrderLink{}).Count(&afterFirst).Error)
	require.EqualValues(t, 2, afterFirst)

	second, err := svc.Run(ctx, Bounds{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Scanned)
	assert.Equal(t, 0, second.AutoLinked)
	assert.Equal(t, 0, second.PendingCreated)
	assert.Equal(t, 0, second.Skipped)
	assert.Equal(t, 0, second.Failed)

	var afterSecond int64
	require.NoError(t, conn.Model(&models.OrderLink{}).Count(&afterSecond).Error)
	assert.Equal(t, afterFirst, afterSecond)
}
