package grpc

import (
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const msgBadCredentials = "invalid email or password"

// toStatus maps service errors onto gRPC statuses. A missing account and a
// wrong password look the same to the caller.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrDuplicateAccount):
		return status.Error(codes.AlreadyExists, common.ErrDuplicateAccount.Error())
	case errors.Is(err, common.ErrAccountNotFound), errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, msgBadCredentials)
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, common.ErrorUnauthorized.Error())
	default:
		return status.Error(codes.Internal, common.ErrorInternal.Error())
	}
}
