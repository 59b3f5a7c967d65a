package main

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"furniture-store/config"
	"furniture-store/internal/auth"
	"furniture-store/internal/models"
	"furniture-store/internal/store"
	"furniture-store/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedUser struct {
	email, name, password string
	role                  models.Role
	contact, address      string
}

var users = []seedUser{
	{email: "admin@furniture.local", name: "Store Admin", password: "admin123", role: models.RoleAdmin},
	{email: "operator@furniture.local", name: "First Operator", password: "operator123", role: models.RoleOperator},
	{email: "customer@furniture.local", name: "Demo Customer", password: "customer123", role: models.RoleCustomer,
		contact: "+1 555 0100", address: "1 Main Street"},
}

var products = []models.Product{
	{Name: "Oak Dining Table", Type: "table", Color: "oak", Size: "180x90", Price: decimal.RequireFromString("899.00"), Quantity: 5},
	{Name: "Linen Armchair", Type: "chair", Color: "grey", Price: decimal.RequireFromString("249.90"), Quantity: 12},
	{Name: "Three-Seat Sofa", Type: "sofa", Color: "navy", Size: "220x95", Price: decimal.RequireFromString("1299.00"), Quantity: 3},
}

// main creates the demo accounts and catalog. Rows that already exist
// are left untouched, so running it twice is harmless.
func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	if cfg.Database.Driver != "postgres" {
		logger.Fatal("Seeding needs STORE_DRIVER=postgres", zap.String("driver", cfg.Database.Driver))
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	hasher := auth.NewBcryptHasher()
	for _, u := range users {
		_, err := db.GetUserByEmail(ctx, u.email)
		if err == nil {
			logger.Info("User already exists", zap.String("email", u.email))
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			logger.Fatal("Failed to look up user", zap.String("email", u.email), zap.Error(err))
		}

		hash, err := hasher.Hash(u.password)
		if err != nil {
			logger.Fatal("Failed to hash password", zap.Error(err))
		}
		user := &models.User{
			Email:        u.email,
			Name:         u.name,
			PasswordHash: hash,
			Contact:      u.contact,
			Address:      u.address,
			Role:         u.role,
			IsActive:     true,
		}
		if err := db.CreateUser(ctx, user); err != nil {
			logger.Fatal("Failed to create user", zap.String("email", u.email), zap.Error(err))
		}
		logger.Info("User created", zap.String("email", u.email), zap.String("role", string(u.role)))
	}

	for _, p := range products {
		existing, err := db.GetProducts(ctx, models.ProductFilter{Type: p.Type, Search: p.Name})
		if err != nil {
			logger.Fatal("Failed to list products", zap.Error(err))
		}
		if containsName(existing, p.Name) {
			logger.Info("Product already exists", zap.String("name", p.Name))
			continue
		}

		product := p
		product.Images = models.StringList{}
		if err := db.CreateProduct(ctx, &product); err != nil {
			logger.Fatal("Failed to create product", zap.String("name", p.Name), zap.Error(err))
		}
		logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	}

	logger.Info("Seed complete")
}

func containsName(products []models.Product, name string) bool {
	for _, p := range products {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}
