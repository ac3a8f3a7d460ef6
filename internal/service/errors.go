package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/ajo/internal/middleware"
	"github.com/mmynk/ajo/internal/models"
)

// codeFor maps a ledger rejection to the closest Connect code.
func codeFor(kind models.ErrorKind) connect.Code {
	switch kind {
	case models.ErrGroupNotFound, models.ErrNoRefundRequest:
		return connect.CodeNotFound
	case models.ErrAlreadyMember, models.ErrAlreadyContributed, models.ErrRefundRequestExists, models.ErrAlreadyVoted:
		return connect.CodeAlreadyExists
	case models.ErrNotAMember, models.ErrUnauthorized, models.ErrOnlyCreatorCanCancel:
		return connect.CodePermissionDenied
	case models.ErrMaxMembersExceeded, models.ErrIncompleteContributions, models.ErrGroupComplete,
		models.ErrGroupCancelled, models.ErrCannotCancelAfterPayout, models.ErrNoEligibleRecipient,
		models.ErrCycleNotExpired, models.ErrVotingPeriodActive, models.ErrVotingPeriodEnded, models.ErrRefundAlreadyExecuted:
		return connect.CodeFailedPrecondition
	case models.ErrArithmeticOverflow:
		return connect.CodeInternal
	default:
		return connect.CodeInvalidArgument
	}
}

// toConnectError converts an engine error. Ledger rejections keep their kind
// name in the error metadata; anything else is an internal failure.
func toConnectError(err error) *connect.Error {
	kind, ok := models.KindOf(err)
	if !ok {
		return connect.NewError(connect.CodeInternal, err)
	}
	connectErr := connect.NewError(codeFor(kind), kind)
	connectErr.Meta().Set(middleware.ErrorKindHeader, kind.String())
	return connectErr
}

// ErrorKindOf recovers the ledger ErrorKind from an error returned by a
// LedgerClient call.
func ErrorKindOf(err error) (models.ErrorKind, bool) {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return 0, false
	}
	return models.ParseErrorKind(connectErr.Meta().Get(middleware.ErrorKindHeader))
}
