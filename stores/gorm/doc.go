//go:build !wasm
// +build !wasm

// Package gorm provides GORM-based implementations of the accounts
// store interfaces, suitable for production deployments on PostgreSQL.
//
// # Database Schema
//
// The package auto-migrates the following tables:
//   - users: Account records with credential and verification state
//   - user_preferences: One-to-one scheduling preferences
//   - opaque_tokens: Static per-user tokens issued to federated logins
//   - revoked_tokens: Blacklisted refresh token IDs
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	users := gormstore.NewCredentialStore(db)
//	prefs := gormstore.NewPreferencesStore(db)
package gorm
