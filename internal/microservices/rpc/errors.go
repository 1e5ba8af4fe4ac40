package rpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CallError is the error variant of every remote call: the status code the
// backend (or the transport) reported plus its message.
type CallError struct {
	Code    codes.Code
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", e.CodeName(), e.Message)
}

// CodeName is the canonical upper-case code name, e.g. "UNAVAILABLE".
func (e *CallError) CodeName() string {
	if name, ok := code.Code_name[int32(e.Code)]; ok {
		return name
	}
	return code.Code_UNKNOWN.String()
}

// GRPCStatus lets status.FromError see through a CallError.
func (e *CallError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// AsCallError classifies any error returned by a call. It returns nil for a
// nil error.
func AsCallError(err error) *CallError {
	if err == nil {
		return nil
	}

	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr
	}
	if st, ok := status.FromError(err); ok {
		return &CallError{Code: st.Code(), Message: st.Message()}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &CallError{Code: codes.Canceled, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &CallError{Code: codes.DeadlineExceeded, Message: err.Error()}
	}
	return &CallError{Code: codes.Unknown, Message: err.Error()}
}
