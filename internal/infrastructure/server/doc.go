// Package server assembles the HTTP service: middleware chain, routes, and
// lifecycle (startup and graceful shutdown).
package server
