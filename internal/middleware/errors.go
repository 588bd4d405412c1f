package middleware

import (
	"encoding/json"
	"net/http"

	"studio/internal/notify"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, code notify.Code) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    string(code),
			"message": notify.Message(LocaleFromContext(r.Context()), code),
		},
	})
}
