// Package server exposes the HTTP surface: the websocket endpoint feeding the
// hub, the REST snapshot endpoints, the square-off action, health and debug
// endpoints, and the prometheus scrape handler. Connections pass a global,
// per-IP and rate limiter before being upgraded.
package server
