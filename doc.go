// Package khoshgolpo is the KhoshGolpo community forum: an API server, its
// Go client and the tools around them.
//
// Binaries live under cmd/:
//
//   - cmd/server: HTTP and websocket API
//   - cmd/cli: terminal client built on pkg/client and pkg/realtime
//   - cmd/migrate, cmd/seed, cmd/promote-admin: database tooling
//   - cmd/local-webhook: echoes notification webhook deliveries
//
// Server code is organized into internal/ subpackages:
//
//   - internal/handlers: REST endpoints for users, threads, posts,
//     notifications, moderation and admin analytics
//   - internal/models, internal/repository: gorm models and data access
//   - internal/auth, internal/authz: tokens, sessions and role policy
//   - internal/notifications: fan-out to sockets and the outbound webhook
//   - internal/websocket: realtime hub
//   - internal/middleware: request ids, logging, metrics and rate limits
//   - internal/search, internal/storage, internal/cache: Elasticsearch,
//     S3 avatars and Redis
package khoshgolpo
