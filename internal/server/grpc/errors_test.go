package grpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	cases := []struct {
		err     error
		code    codes.Code
		message string
	}{
		{fmt.Errorf("%w: email is required", common.ErrorValidation), codes.InvalidArgument, "validation error: email is required"},
		{common.ErrDuplicateAccount, codes.AlreadyExists, "account already exists"},
		{common.ErrAccountNotFound, codes.Unauthenticated, msgBadCredentials},
		{common.ErrInvalidCredentials, codes.Unauthenticated, msgBadCredentials},
		{common.ErrorUnauthorized, codes.Unauthenticated, "unauthorized"},
		{common.ErrorInternal, codes.Internal, "internal error"},
		{errors.New("pq: connection refused"), codes.Internal, "internal error"},
	}

	for _, tc := range cases {
		st := status.Convert(toStatus(tc.err))
		assert.Equal(t, tc.code, st.Code(), tc.err.Error())
		assert.Equal(t, tc.message, st.Message(), tc.err.Error())
	}
}
