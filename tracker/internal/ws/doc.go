// Package ws streams board snapshots to browsers over WebSocket.
//
// A Hub is mounted at /ws/stream. Each new connection immediately receives
// the current snapshot; after that the hub pushes a fresh one every
// broadcast_interval and whenever Notify is called (the receiver calls it
// after each render pass). Every message has the shape
//
//	{"event": "snapshot", "data": <GET /api/v1/snapshot payload>}
//
// Clients that fall behind are disconnected rather than buffered. All
// origins are accepted; restrict them at the reverse proxy.
package ws
