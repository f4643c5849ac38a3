package httpserver

import (
	"net/http"
	"strings"

	"chatline/internal/service"
)

// parseMessageForm reads text plus file parts from a multipart body. A
// plain form body (no files) is accepted too.
func parseMessageForm(r *http.Request, maxUploadBytes int64) (string, []service.Upload, func(), error) {
	closers := make([]func(), 0, 4)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", nil, closeAll, err
		}
		var uploads []service.Upload
		for _, fh := range r.MultipartForm.File["files"] {
			up, closeFn, err := uploadFromHeader(fh)
			if err != nil {
				closeAll()
				return "", nil, func() {}, err
			}
			closers = append(closers, closeFn)
			uploads = append(uploads, *up)
		}
		return r.FormValue("text"), uploads, closeAll, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", nil, closeAll, err
	}
	return r.FormValue("text"), nil, closeAll, nil
}

// handleCreateMessage appends a message to the dialogue. Accepts multipart
// form data with a text field and any number of file parts under "files".
func handleCreateMessage(msgSvc *service.MessageService, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		dialogueID, ok := urlParamInt64(r, "dialogueID")
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dialogue id"})
			return
		}

		text, uploads, closeAll, err := parseMessageForm(r, maxUploadBytes)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		defer closeAll()

		msg, err := msgSvc.Create(r.Context(), service.MessageCreateInput{
			DialogueID:  dialogueID,
			Text:        text,
			Attachments: uploads,
		}, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		resp, err := msgSvc.ToResponse(r.Context(), msg)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// handleEditMessage replaces a message's text and attachment set.
func handleEditMessage(msgSvc *service.MessageService, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		messageID, ok := urlParamInt64(r, "messageID")
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}

		text, uploads, closeAll, err := parseMessageForm(r, maxUploadBytes)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		defer closeAll()

		msg, err := msgSvc.Edit(r.Context(), service.MessageEditInput{
			MessageID:   messageID,
			Text:        text,
			Attachments: uploads,
		}, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		resp, err := msgSvc.ToResponse(r.Context(), msg)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleDeleteMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		messageID, ok := urlParamInt64(r, "messageID")
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}
		if err := msgSvc.Remove(r.Context(), messageID, user.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
