package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema lists the tables used by the booking workflow in creation order.
// The events table is normally owned by the catalogue service; creating it
// here keeps a standalone deployment and local development self-contained.
var schema = []struct {
	name string
	ddl  string
}{
	{"events", `CREATE TABLE IF NOT EXISTS events (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		total_capacity INT NOT NULL,
		available_seats INT NOT NULL,
		price_base DECIMAL(10, 2) NOT NULL DEFAULT 0,
		CONSTRAINT chk_events_seats CHECK (available_seats >= 0 AND available_seats <= total_capacity)
	) ENGINE=InnoDB`},
	{"reservations", `CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		seats INT NOT NULL,
		status ENUM('HELD', 'PAID', 'CANCELLED') NOT NULL,
		created_at DATETIME(6) NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_reservations_user (user_id, created_at),
		KEY idx_reservations_event_status (event_id, status),
		KEY idx_reservations_expiry (status, expires_at),
		CONSTRAINT fk_reservations_event FOREIGN KEY (event_id) REFERENCES events (id),
		CONSTRAINT chk_reservations_seats CHECK (seats >= 1)
	) ENGINE=InnoDB`},
	{"payments", `CREATE TABLE IF NOT EXISTS payments (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reservation_id BIGINT UNSIGNED NOT NULL,
		amount DECIMAL(10, 2) NOT NULL,
		status ENUM('PENDING', 'SUCCESS', 'FAILED') NOT NULL,
		method ENUM('CARD', 'PAYPAL', 'WALLET') NULL,
		paid_at DATETIME(6) NULL,
		UNIQUE KEY uq_payments_reservation (reservation_id),
		CONSTRAINT fk_payments_reservation FOREIGN KEY (reservation_id) REFERENCES reservations (id)
	) ENGINE=InnoDB`},
	{"tickets", `CREATE TABLE IF NOT EXISTS tickets (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reservation_id BIGINT UNSIGNED NOT NULL,
		ticket_code VARCHAR(24) NOT NULL,
		checked_in BOOLEAN NOT NULL DEFAULT FALSE,
		status ENUM('ACTIVE', 'USED', 'CANCELED') NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_tickets_code (ticket_code),
		KEY idx_tickets_reservation (reservation_id),
		CONSTRAINT fk_tickets_reservation FOREIGN KEY (reservation_id) REFERENCES reservations (id)
	) ENGINE=InnoDB`},
}

// Migrate creates the booking tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", t.name, err)
		}
	}
	return nil
}
