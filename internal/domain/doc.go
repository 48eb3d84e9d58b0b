// Package domain holds the value types shared by the provider handlers, the
// event processor, the send pipeline, the HTTP controllers and the Postgres
// repositories: send records and their tracking rows, normalized webhook
// events and the notifications published after each state change.
//
// The package imports nothing from internal/. Types carry JSON tags and small
// classification helpers only; storage and transport concerns live elsewhere.
package domain
