package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"civiceye/config"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// Database wraps the MySQL connection pool.
type Database struct {
	db *sql.DB
}

// NewDatabase opens the connection pool and waits for the database to become
// reachable, retrying the ping with exponential backoff.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	deadline := time.Now().Add(60 * time.Second)
	waitInterval := time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		pingErr := db.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("database ping timeout: %w", pingErr)
		}
		log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)
		time.Sleep(waitInterval)
		waitInterval *= 2
		if waitInterval > 30*time.Second {
			waitInterval = 30 * time.Second
		}
	}

	return &Database{db: db}, nil
}

// GetDB exposes the underlying pool.
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// Close closes the connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// InitSchema creates the tables if they do not exist.
func (d *Database) InitSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255),
			email VARCHAR(255) NOT NULL UNIQUE,
			role ENUM('user', 'admin') NOT NULL DEFAULT 'user',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS complaints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			reporter_id BIGINT NOT NULL,
			complaint_type VARCHAR(32),
			description TEXT,
			location VARCHAR(512),
			image_path VARCHAR(512),
			status ENUM('pending', 'verified', 'resolved', 'rejected') NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_complaints_reporter (reporter_id, created_at),
			INDEX idx_complaints_status_created (status, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS ai_assessments (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			complaint_id BIGINT NOT NULL,
			detected_type ENUM('pothole', 'garbage', 'water_leakage', 'unknown') NOT NULL DEFAULT 'unknown',
			confidence FLOAT NOT NULL DEFAULT 0,
			model_name VARCHAR(128) NOT NULL DEFAULT '',
			assessed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_assessments_complaint (complaint_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			complaint_id BIGINT PRIMARY KEY,
			ai_status ENUM('pending', 'verified', 'rejected') NOT NULL,
			override_type VARCHAR(32),
			effective_type VARCHAR(32) NOT NULL DEFAULT 'unknown',
			decision_source ENUM('ai', 'admin') NOT NULL DEFAULT 'admin',
			admin_id BIGINT NOT NULL,
			decision_timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Info("Database schema created/verified")
	return nil
}

// SeedAnonymousUser makes sure the fallback reporter for unauthenticated
// submissions exists and returns its id.
func (d *Database) SeedAnonymousUser() (int64, error) {
	var id int64
	err := d.db.QueryRow(`SELECT id FROM users WHERE email = ?`, "anonymous@civiceye.local").Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := d.db.Exec(`INSERT INTO users (name, email, role) VALUES (?, ?, 'user')`,
		"Anonymous", "anonymous@civiceye.local")
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
