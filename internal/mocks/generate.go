// Package mocks provides generated mocks for the auth core's repository ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks.
// To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for AuthEventRepository interface from internal/ports.
// This creates MockAuthEventRepository with Record and List methods.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_event_repository_mock.go github.com/parkwatch/ui-api/internal/ports AuthEventRepository
