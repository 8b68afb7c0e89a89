// seed creates a completed super-admin account for local development. Idempotent: an
// existing account with the same email is left untouched.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	"laundry-service/backend/internal/config"
	"laundry-service/backend/internal/db"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/user/domain"
	userrepo "laundry-service/backend/internal/user/repository"
)

const (
	defaultAdminEmail    = "admin@laundry.test"
	defaultAdminPassword = "password123"
	defaultAdminName     = "Super Admin"
)

func main() {
	email := flag.String("email", defaultAdminEmail, "super admin email")
	password := flag.String("password", defaultAdminPassword, "super admin password")
	name := flag.String("name", defaultAdminName, "super admin display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	normalized := domain.NormalizeEmail(*email)
	existing, err := users.GetByEmail(ctx, normalized)
	if err != nil {
		log.Fatalf("lookup %s: %v", normalized, err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists (role %s), skipping", normalized, existing.Role)
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	admin := &domain.User{
		ID:            uuid.New().String(),
		Email:         normalized,
		PasswordHash:  &hash,
		EmailVerified: true,
		Name:          *name,
		Role:          domain.RoleSuperAdmin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("create super admin: %v", err)
	}
	log.Printf("seed: created super admin %s (%s)", admin.Email, admin.ID)
}
