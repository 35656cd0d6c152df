package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// analyzeHandler handles POST /api/analyze
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Errorf("failed to decode analyze request: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{Detail: []ValidationIssue{missingField("body", "text")}})
		return
	}
	if token, ok := tokenFromContext(r.Context()); ok {
		s.logger.Debugf("analyze for business %d", token.BusinessID)
	}
	writeJSON(w, http.StatusOK, AnalyzeResponse{Analysis: cannedAnalysis(req)})
}

// cannedAnalysis builds a deterministic reply in place of the AI service.
func cannedAnalysis(req AnalyzeRequest) string {
	var b strings.Builder
	who := "there"
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		who = strings.TrimSpace(*req.Name)
	}
	fmt.Fprintf(&b, "Hi %s! ", who)
	if req.BusinessType != nil && strings.TrimSpace(*req.BusinessType) != "" {
		fmt.Fprintf(&b, "For a %s business, ", strings.ToLower(strings.TrimSpace(*req.BusinessType)))
	} else {
		b.WriteString("For your business, ")
	}
	fmt.Fprintf(&b, "here is what stands out in your message (%d words): ", len(strings.Fields(req.Text)))
	b.WriteString("respond quickly on WhatsApp, share short videos of your work and follow up with returning customers.")
	return b.String()
}
