// Package client contains the gophauth client building blocks.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the gophauth backend: Registration, Login, Logout, Refresh,
//     ListAccounts and Ping.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, keeps the current token pair, injects the access token via
//     an interceptor, transparently refreshes expired tokens, and maps gRPC
//     status codes to sentinel errors.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrAlreadyExists, ErrInvalidInput.
package client
