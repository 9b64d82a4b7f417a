package handler

import (
	"encoding/json"
	"net/http"
)

// FibonacciResponse is the success body of GET /fibonacci.
type FibonacciResponse struct {
	N      int64 `json:"n"`
	Result int64 `json:"result"`
}

// ErrorResponse is the body for translated request failures.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Response is the generic body for the operational endpoints.
type Response struct {
	Message string      `json:"message"`
	Result  interface{} `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
