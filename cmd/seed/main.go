// Package main seeds a development database with a small book catalog and
// prints access tokens for a customer and an administrator, so the order
// endpoints can be exercised by hand.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obaraelijah/LeafLine-Server/internal/auth"
	"github.com/obaraelijah/LeafLine-Server/internal/config"
	"github.com/obaraelijah/LeafLine-Server/migrations"
	"github.com/obaraelijah/LeafLine-Server/pkg/database"
	"github.com/obaraelijah/LeafLine-Server/pkg/logger"
)

// bookNamespace derives stable book IDs from titles so reruns update rows
// instead of duplicating them.
var bookNamespace = uuid.MustParse("6f1c2a8e-3b7d-4c55-9e0a-4c1d2b3a5f60")

type bookDef struct {
	title       string
	price       string
	shippingFee string
	stock       int
}

var books = []bookDef{
	{title: "The Left Hand of Darkness", price: "14.99", shippingFee: "2.50", stock: 40},
	{title: "Kindred", price: "12.50", shippingFee: "2.50", stock: 25},
	{title: "Things Fall Apart", price: "10.00", shippingFee: "0", stock: 60},
	{title: "Pedro Páramo", price: "11.25", shippingFee: "3.00", stock: 15},
	{title: "The Remains of the Day", price: "13.75", shippingFee: "2.00", stock: 30},
	{title: "Beloved", price: "15.40", shippingFee: "2.50", stock: 3},
	{title: "Out of Print Sampler", price: "0", shippingFee: "0", stock: 100},
}

const upsertBookSQL = `
	INSERT INTO books (id, title, price, shipping_fee, stock)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title,
	    price = EXCLUDED.price,
	    shipping_fee = EXCLUDED.shipping_fee,
	    stock = EXCLUDED.stock,
	    updated_at = NOW()`

func main() {
	log.SetFlags(log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[seed] ")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slogger := logger.New("leafline-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), slogger)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, slogger); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	log.Println("Seeding books...")
	for _, b := range books {
		id := uuid.NewSHA1(bookNamespace, []byte(b.title)).String()
		// Validate amounts before they reach the NUMERIC columns.
		price := decimal.RequireFromString(b.price)
		fee := decimal.RequireFromString(b.shippingFee)

		if _, err := pool.Exec(ctx, upsertBookSQL, id, b.title, price.String(), fee.String(), b.stock); err != nil {
			log.Fatalf("book %q: %v", b.title, err)
		}
		log.Printf("  Book: %s (id=%s, price=%s, stock=%d)", b.title, id, price.StringFixed(2), b.stock)
	}

	jwt := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	customer, err := jwt.GenerateAccessToken(uuid.NewString(), "reader@leafline.test", "user")
	if err != nil {
		log.Fatalf("issue customer token: %v", err)
	}
	admin, err := jwt.GenerateAccessToken(uuid.NewString(), "admin@leafline.test", "admin")
	if err != nil {
		log.Fatalf("issue admin token: %v", err)
	}

	log.Println("Tokens (valid for 24h):")
	log.Printf("  customer: %s", customer)
	log.Printf("  admin:    %s", admin)
	log.Println("Done.")
}
