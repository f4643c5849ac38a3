package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chatline/internal/domain"
	"chatline/internal/security"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// MakeHandler returns the HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or
// Sec-WebSocket-Protocol); the user_id query parameter, when present, must
// match the token subject. After the upgrade the connection lifecycle
// drives presence: online flag + FRIEND_ONLINE on connect, offline +
// FRIEND_OFFLINE on logout/disconnect. Dispatched client events:
//   - JOIN_ROOM / LEAVE_ROOM -> dialogue room subscription
//   - MESSAGE_TYPING         -> TYPING_RESPONSE to other room subscribers
//   - LOGOUT                 -> terminate the handle
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	users domain.UserRepository,
	allowedOrigins []string,
	log logrus.FieldLogger,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := tokens.ParseAccess(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if q := r.URL.Query().Get("user_id"); q != "" {
			qid, err := strconv.ParseInt(q, 10, 64)
			if err != nil || qid != userID {
				http.Error(w, "user_id does not match token", http.StatusUnauthorized)
				return
			}
		}

		ctx := r.Context()
		user, err := users.GetByID(ctx, userID)
		if err != nil || !user.IsActivated {
			http.Error(w, "user not found or not activated", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := hub.Register(user.ID, conn)
		if err := users.SetOnlineStatus(ctx, user.ID, true); err != nil {
			log.WithField("user_id", user.ID).WithError(err).Error("set online")
		}
		notifyFriends(ctx, hub, users, user.ID, EventFriendOnline)

		defer func() {
			if !hub.Unregister(client) {
				// A newer connection replaced this handle; presence
				// belongs to it now.
				return
			}
			// The request context is gone once the client disconnects.
			bg := context.Background()
			if err := users.SetOnlineStatus(bg, user.ID, false); err != nil {
				log.WithField("user_id", user.ID).WithError(err).Error("set offline")
			}
			notifyFriends(bg, hub, users, user.ID, EventFriendOffline)
		}()

		for {
			var payload map[string]any
			if err := conn.ReadJSON(&payload); err != nil {
				break
			}
			eventType, _ := payload["type"].(string)
			switch eventType {

			case eventJoinRoom:
				dialogueID := asInt64(payload["payload"])
				if dialogueID == 0 {
					continue
				}
				hub.JoinRoom(client, dialogueID)

			case eventLeaveRoom:
				dialogueID := asInt64(payload["payload"])
				if dialogueID == 0 {
					continue
				}
				hub.LeaveRoom(client, dialogueID)

			case eventMessageTyping:
				data, _ := payload["payload"].(map[string]any)
				if data == nil {
					continue
				}
				flag, _ := data["flag"].(bool)
				typing := TypingPayload{
					Flag:              flag,
					CurrentDialogueID: asInt64(data["currentDialogueId"]),
					InterlocutorID:    asInt64(data["interlocutorId"]),
				}
				if typing.CurrentDialogueID == 0 {
					continue
				}
				hub.BroadcastRoom(typing.CurrentDialogueID, Event{
					Type:    EventTypingResponse,
					Payload: typing,
				}, client)

			case eventLogout:
				return

			default:
				log.WithFields(logrus.Fields{
					"user_id": user.ID,
					"event":   eventType,
				}).Debug("unknown ws event")
				hub.Push(user.ID, Event{
					Type:    EventError,
					Payload: "unknown event type: " + eventType,
				})
			}
		}
	}
}

// notifyFriends pushes a presence event to every friend that currently has
// a live handle. Repository failure only costs the notification.
func notifyFriends(ctx context.Context, hub *Hub, users domain.UserRepository, userID int64, eventType string) {
	friendIDs, err := users.ListFriendIDs(ctx, userID)
	if err != nil {
		return
	}
	e := Event{Type: eventType, Payload: userID}
	for _, id := range friendIDs {
		hub.Push(id, e)
	}
}

// asInt64 handles JSON numbers and numeric strings from loosely typed
// client payloads.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		id, _ := strconv.ParseInt(n, 10, 64)
		return id
	default:
		return 0
	}
}
