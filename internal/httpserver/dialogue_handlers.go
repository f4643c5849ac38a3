package httpserver

import (
	"encoding/json"
	"net/http"

	"chatline/internal/service"
)

type createDialogueRequest struct {
	InterlocutorID int64  `json:"interlocutor_id"`
	Text           string `json:"text"`
}

// handleCreateDialogue opens (or finds) the dialogue with the interlocutor
// and posts the opening message.
func handleCreateDialogue(dlgSvc *service.DialogueService, msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req createDialogueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		dialogue, msg, err := dlgSvc.CreateWithMessage(r.Context(), user.ID, req.InterlocutorID, req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		resp, err := msgSvc.ToResponse(r.Context(), msg)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"dialogue_id": dialogue.ID,
			"message":     resp,
		})
	}
}

func handleListDialogues(dlgSvc *service.DialogueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		dialogues, err := dlgSvc.ListForUser(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dialogues)
	}
}

// handleListMessages returns the dialogue's messages in creation order.
// Viewing the dialogue marks its unread messages read.
func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		dialogueID, ok := urlParamInt64(r, "dialogueID")
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dialogue id"})
			return
		}
		messages, err := msgSvc.List(r.Context(), dialogueID, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

func handleMarkDialogueRead(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		dialogueID, ok := urlParamInt64(r, "dialogueID")
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dialogue id"})
			return
		}
		if err := msgSvc.MarkRead(r.Context(), dialogueID, user.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
