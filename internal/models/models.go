// Package models defines the core data structures for ShopChat.
//
// It includes the store profile and catalog records, conversation history records,
// inbound/outbound message variants and the JSON envelope used by the HTTP API.
package models

import "errors"

var (
	ErrEmptySender        = errors.New("sender cannot be empty")
	ErrEmptyText          = errors.New("text body cannot be empty")
	ErrEmptyButtonID      = errors.New("button id cannot be empty")
	ErrUnknownInboundKind = errors.New("unknown inbound message kind")
	ErrEmptyRecipient     = errors.New("recipient cannot be empty")
	ErrUnknownPayloadKind = errors.New("unknown outbound payload kind")
	ErrMissingDocumentURL = errors.New("document URL is required")
	ErrMissingTemplate    = errors.New("template name is required")
	ErrInvalidProduct     = errors.New("invalid product")
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the JSON envelope every REST endpoint answers with.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success wraps result in a success envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: StatusSuccess, Result: result}
}

// SuccessWithMessage is Success with a human-readable note.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: StatusSuccess, Message: message, Result: result}
}

// Error builds an error envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: StatusError, Message: message}
}
