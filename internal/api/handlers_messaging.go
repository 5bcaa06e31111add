package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/emerald-details/internal/messaging"
)

const streamPingInterval = 25 * time.Second

func participant(r *http.Request, users UserService, id uuid.UUID) (messaging.Participant, error) {
	u, err := users.Get(r.Context(), id)
	if err != nil {
		return messaging.Participant{}, err
	}
	return messaging.Participant{ID: u.ID, Name: u.Name}, nil
}

func startConversationHandler(svc MessagingService, users UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartConversationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		otherID, err := uuid.Parse(req.ParticipantID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_participant_id", "participant_id must be a valid UUID")
			return
		}
		appointmentID, err := optionalUUID(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		me, err := participant(r, users, principal(r).UserID)
		if err != nil {
			handleMessagingError(w, r, err)
			return
		}
		other, err := participant(r, users, otherID)
		if err != nil {
			handleMessagingError(w, r, err)
			return
		}

		conv, err := svc.StartConversation(r.Context(), me, other, appointmentID)
		if err != nil {
			handleMessagingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func listConversationsHandler(svc MessagingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Conversations(r.Context(), principal(r).UserID)
		if err != nil {
			handleMessagingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func listMessagesHandler(svc MessagingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		list, err := svc.Messages(r.Context(), id, principal(r).UserID, queryInt(r, "limit", messaging.DefaultHistory))
		if err != nil {
			handleMessagingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func sendMessageHandler(svc MessagingService, users UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var req SendMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sender, err := participant(r, users, principal(r).UserID)
		if err != nil {
			handleMessagingError(w, r, err)
			return
		}
		msg, err := svc.Send(r.Context(), id, sender, req.Content)
		if err != nil {
			handleMessagingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func markReadHandler(svc MessagingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.MarkRead(r.Context(), id, principal(r).UserID); err != nil {
			handleMessagingError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// streamConversationHandler pushes the conversation as server-sent events:
// recent history, then live messages, with a comment line every
// streamPingInterval to keep proxies from closing the connection.
func streamConversationHandler(svc MessagingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response does not support streaming")
			return
		}

		sub, err := svc.Subscribe(r.Context(), id, principal(r).UserID)
		if err != nil {
			handleMessagingError(w, r, err)
			return
		}
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ping := time.NewTicker(streamPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ping.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case msg, open := <-sub.Events():
				if !open {
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					loggerFrom(r.Context()).Error("encode message", "err", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", msg.ID, data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
