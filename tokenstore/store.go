// Package tokenstore persists bearer tokens durably, the gateway's analogue
// of the browser's localStorage token slot.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrxdeploy/SistemaMRX/utils"
)

// BearerToken is one persisted credential, keyed by subject (the browser
// profile or device the gateway is acting for). The token value is opaque;
// no shape validation happens on write.
type BearerToken struct {
	ID        string    `gorm:"primaryKey"`
	Subject   string    `gorm:"uniqueIndex;not null"`
	Token     string    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store wraps the persistence of bearer tokens
type Store struct {
	db *gorm.DB
}

// DatabaseConfig holds GORM database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDatabaseConfig reads the database configuration from the environment
func NewDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:            utils.GetEnvOrDefault("DB_HOST", "localhost"),
		Port:            utils.GetEnvOrDefault("DB_PORT", "5432"),
		Username:        utils.GetEnvOrDefault("DB_USERNAME", "postgres"),
		Password:        utils.GetEnvOrDefault("DB_PASSWORD", "password"),
		Database:        utils.GetEnvOrDefault("DB_NAME", "gestao_placas"),
		SSLMode:         utils.GetEnvOrDefault("DB_SSLMODE", "require"),
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// Connect establishes a GORM connection to PostgreSQL and migrates the
// token table
func Connect(config *DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(&BearerToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate bearer_tokens: %w", err)
	}

	slog.Info("Connected to token database", "host", config.Host, "database", config.Database)
	return db, nil
}

// New creates a Store on an established connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored token for a subject, or "" when none is stored.
// Tokens that are parseable JWTs with an expiry already in the past are
// removed and reported as absent; opaque non-JWT tokens pass through as-is.
func (s *Store) Get(ctx context.Context, subject string) (string, error) {
	var rec BearerToken
	err := s.db.WithContext(ctx).First(&rec, "subject = ?", subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	if tokenVisiblyExpired(rec.Token) {
		slog.Info("Dropping expired token", "subject", subject)
		if err := s.Remove(ctx, subject); err != nil {
			slog.Warn("Failed to remove expired token", "subject", subject, "error", err)
		}
		return "", nil
	}

	return rec.Token, nil
}

// Set stores a token for a subject, replacing any previous one
func (s *Store) Set(ctx context.Context, subject, token string) error {
	var rec BearerToken
	err := s.db.WithContext(ctx).First(&rec, "subject = ?", subject).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = BearerToken{
			ID:      "tok_" + uuid.New().String(),
			Subject: subject,
			Token:   token,
		}
		if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read token: %w", err)
	}

	rec.Token = token
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	return nil
}

// Remove deletes the stored token for a subject. Removing an absent token
// is not an error.
func (s *Store) Remove(ctx context.Context, subject string) error {
	if err := s.db.WithContext(ctx).Where("subject = ?", subject).Delete(&BearerToken{}).Error; err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// Source binds the store to one subject, giving callers a subject-free
// get/set/clear view of the credential
type Source struct {
	store   *Store
	subject string
}

// SourceFor returns a source bound to subject
func (s *Store) SourceFor(subject string) *Source {
	return &Source{store: s, subject: subject}
}

// Token returns the stored credential, or "" when none is stored
func (s *Source) Token(ctx context.Context) (string, error) {
	return s.store.Get(ctx, s.subject)
}

// Set stores the credential, replacing any previous one
func (s *Source) Set(ctx context.Context, token string) error {
	return s.store.Set(ctx, s.subject, token)
}

// Clear removes the credential
func (s *Source) Clear(ctx context.Context) error {
	return s.store.Remove(ctx, s.subject)
}

// tokenVisiblyExpired reports whether the token is a JWT whose exp claim is
// already past. The signature is NOT verified; the backend remains the
// authority, this only avoids a guaranteed 401 round trip.
func tokenVisiblyExpired(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().After(exp.Time)
}
