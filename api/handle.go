package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pure-golang/velocity-mailer/logger"
	"github.com/pure-golang/velocity-mailer/mail"
)

type composer[P any] func(ctx context.Context, p *P) (mail.Email, error)

// handle runs one request through method check, credential gate, decoding,
// validation, composition and dispatch. Each step either responds and stops or
// hands over to the next; nothing is retried.
func handle[P any](h *Handler, kind string, compose composer[P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx).With("kind", kind)

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		if !h.gate.Allow(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var payload P
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err := dec.Decode(&payload); err != nil {
			log.Debug("failed to decode request body", "error", err.Error())
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if err := h.validate.Struct(&payload); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}

		email, err := compose(ctx, &payload)
		if err != nil {
			logger.FromContextWithErr(ctx, err).Error("failed to compose email", "kind", kind)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		res, err := h.sender.Send(ctx, email)
		if err != nil {
			logger.FromContextWithErr(ctx, err).Error("failed to send email",
				"kind", kind, "failure", string(mail.KindOf(err)))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		log.Info("email sent", "message_id", res.MessageID)
		writeJSON(w, http.StatusOK, res)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nolint:errcheck // the client may have gone away, nothing left to report
	json.NewEncoder(w).Encode(v)
}
