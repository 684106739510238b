// Package server exposes the chat engine over HTTP and WebSocket.
//
// A Hub owns the live connections. Each connection is a Client with a read
// pump that decodes and handles inbound frames in order and a write pump
// that drains its bounded outbound queue. Clients join rooms in the room
// registry; typing and messages flow through the typing tracker and the
// message pipeline, which broadcast back into the registry.
//
// The package is organized into files for configuration, origin checks, the
// hub, clients and their per-event handling, routes and HTTP handlers.
package server
