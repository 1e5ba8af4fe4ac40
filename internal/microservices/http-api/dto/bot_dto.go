package dto

import "encoding/json"

// Response envelopes for the bot listing endpoint

// ListAllResponse: success envelope, Data is the upstream data field as rendered by the loader
type ListAllResponse struct {
	Success bool            `json:"success"`
	Time    int64           `json:"time"` // milliseconds spent on the upstream call
	Data    json.RawMessage `json:"data"`
}

// ErrorResponse: failure envelope, Error is the canonical status code name
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewErrorResponse(code string) ErrorResponse {
	return ErrorResponse{Success: false, Error: code}
}
