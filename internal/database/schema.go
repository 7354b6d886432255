package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates every table the service needs.  All
// statements are idempotent so EnsureSchema can run on every boot.
// The UNIQUE KEY on (room, date_str, start_time) is load-bearing: it is
// what turns a double-booking race into a detectable duplicate-key
// error instead of a silent second reservation.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		email         VARCHAR(255)    NOT NULL,
		password_hash VARCHAR(255)    NOT NULL,
		name          VARCHAR(100)    NOT NULL DEFAULT '',
		role          VARCHAR(16)     NOT NULL DEFAULT 'MEMBER',
		created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64)        NOT NULL,
		expires_at DATETIME        NOT NULL,
		revoked_at DATETIME        NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		owner_id   BIGINT UNSIGNED NOT NULL,
		room       VARCHAR(64)     NOT NULL,
		date_str   CHAR(10)        NOT NULL,
		start_time CHAR(5)         NOT NULL,
		end_time   CHAR(5)         NOT NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_slot (room, date_str, start_time),
		KEY idx_res_date (date_str),
		KEY idx_res_owner (owner_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservation_members (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		reservation_id BIGINT UNSIGNED NOT NULL,
		user_id        BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_member (reservation_id, user_id),
		CONSTRAINT fk_member_res FOREIGN KEY (reservation_id)
			REFERENCES reservations (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservation_checkins (
		reservation_id BIGINT UNSIGNED NOT NULL,
		user_id        BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (reservation_id, user_id),
		CONSTRAINT fk_checkin_res FOREIGN KEY (reservation_id)
			REFERENCES reservations (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS restrictions (
		room     VARCHAR(64) NOT NULL,
		date_str CHAR(10)    NOT NULL,
		hour     INT         NOT NULL,
		kind     VARCHAR(16) NOT NULL,
		PRIMARY KEY (room, date_str, hour)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS schedule_events (
		id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		room      VARCHAR(64)     NOT NULL,
		starts_at DATETIME        NOT NULL,
		ends_at   DATETIME        NOT NULL,
		title     VARCHAR(255)    NOT NULL DEFAULT '',
		PRIMARY KEY (id),
		KEY idx_sched_room_start (room, starts_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS room_equipment (
		room VARCHAR(64) NOT NULL,
		icon VARCHAR(16) NOT NULL,
		PRIMARY KEY (room, icon)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS metadata (
		meta_key   VARCHAR(64)  NOT NULL,
		meta_value VARCHAR(255) NOT NULL,
		PRIMARY KEY (meta_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`INSERT IGNORE INTO metadata (meta_key, meta_value) VALUES ('force_group', '0')`,
}

// EnsureSchema applies the schema statements in order.  It is called
// once at startup, before any repository is constructed.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
