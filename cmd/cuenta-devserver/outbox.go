package main

import (
	"encoding/json"
	"net/http"

	"github.com/gestionlocal/cuenta/internal/fakebackend"
)

type outboxEntry struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// outboxHandler lists the messages kept in memory, newest first. With
// ?to=addr only the newest message for addr is returned.
func outboxHandler(outbox *fakebackend.Outbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if to := r.URL.Query().Get("to"); to != "" {
			msg, ok := outbox.Last(to)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "sin mensajes"})
				return
			}
			_ = json.NewEncoder(w).Encode(outboxEntry(msg))
			return
		}

		msgs := outbox.Messages()
		out := make([]outboxEntry, 0, len(msgs))
		for i := len(msgs) - 1; i >= 0; i-- {
			out = append(out, outboxEntry(msgs[i]))
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
