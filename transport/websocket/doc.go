// Package websocket pushes board updates to browsers watching a session.
//
// Clients connect to /ws?session=<id> and receive one JSON Message per state
// change: {session_id, event, game_state}. Incoming frames are ignored.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	hub.BroadcastToSession("readme", state)
//
// Concurrency:
//
// Only the Run goroutine touches the subscription map. Register, unregister,
// broadcast and count requests all travel over channels, and broadcasts
// never block the caller: when the queue is full the update is dropped.
package websocket
