package service

import "chatline/internal/ws"

// Notifier pushes events to live handles. Implemented by ws.Hub; services
// only ever address users, never raw connections. Delivery is best-effort
// at-most-once and must never block the calling mutation.
type Notifier interface {
	Push(userID int64, e ws.Event)
	PushMany(userIDs []int64, e ws.Event)
}
