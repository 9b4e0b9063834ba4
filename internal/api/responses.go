package api

import "rag-chat-client/internal/models"

type HealthResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

type QueryRequest struct {
	Question string `json:"question"`
}

type QueryResponse struct {
	Message models.Message `json:"message"`
	Failed  bool           `json:"failed"`
}

type ConversationResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []models.Message `json:"messages"`
	Count     int              `json:"count"`
	Busy      bool             `json:"busy"`
}

type UploadResponse struct {
	models.UploadResult
	Banner string `json:"banner"`
}

type StatusResponse struct {
	SessionID string `json:"session_id"`
	Upload    struct {
		State      string               `json:"state"`
		Busy       bool                 `json:"busy"`
		LastResult *models.UploadResult `json:"last_result,omitempty"`
	} `json:"upload"`
	Query struct {
		State    string `json:"state"`
		Busy     bool   `json:"busy"`
		Messages int    `json:"messages"`
	} `json:"query"`
}
