/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package expirecache provides a generic in-memory key-value cache with time-based expiry,
// an optional size bound, and Prometheus metrics.
package expirecache
