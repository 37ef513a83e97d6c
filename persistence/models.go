// Package persistence is the durable script and user store: gorm
// models backed by Postgres, fronted by the Redis cache for compiled
// bytecode and the schema document.
package persistence

import "time"

// ScriptRecord is the durable row behind a world.ScriptSource: one
// user's named, owned script source, keyed by its ScriptId.
type ScriptRecord struct {
	ScriptId  string `gorm:"primaryKey;column:script_id"`
	Owner     string `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	Payload   string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ScriptRecord) TableName() string { return "scripts" }

// UserRecord is the durable row behind a world.UserProfile, keyed by
// the JWKS subject claim.
type UserRecord struct {
	Subject     string `gorm:"primaryKey;column:subject"`
	DisplayName string `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UserRecord) TableName() string { return "users" }
