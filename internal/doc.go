// Package internal holds the events server implementation.
//
//   - auth: password hashing, token codec and issuer, login/registration, request gate
//   - api: HTTP routing, middleware, handlers, problem documents
//   - domain: events and identifiers
//   - storage: PostgreSQL and in-memory repositories
//   - geocoding: reverse geocoding through Nominatim
//   - audit, config, metrics, telemetry, validation, sanitize: shared infrastructure
package internal
