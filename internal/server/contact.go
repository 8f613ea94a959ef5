package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/content"
)

// handleContact forwards a site inquiry to the sales inbox. The site posts
// {"formData": {...}}; a bare inquiry object is accepted as well.
//
// Only valid inquiries count against the sender's rate limit.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FormData *content.Inquiry `json:"formData"`
		content.Inquiry
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, errBadRequest, http.StatusBadRequest)
		return
	}
	inquiry := payload.Inquiry
	if payload.FormData != nil {
		inquiry = *payload.FormData
	}
	if err := inquiry.Validate(); err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	if !limit(w, r, s.contactLimiter) {
		return
	}

	if err := s.mailer.Send(r.Context(), inquiry); err != nil {
		s.logger.Error("send inquiry", zap.String("type", inquiry.Type), zap.Error(err))
		writeError(w, "Failed to send email", http.StatusInternalServerError)
		return
	}
	s.logger.Info("inquiry sent", zap.String("type", inquiry.Type))
	writeMessage(w, http.StatusOK, "Email sent successfully!")
}
