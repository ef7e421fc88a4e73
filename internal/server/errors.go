package server

import (
	"context"
	"errors"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/session"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps an engine error onto a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, gameerr.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, gameerr.ErrInvalidPlacement):
		return codes.FailedPrecondition
	case errors.Is(err, gameerr.ErrOutOfBounds):
		return codes.OutOfRange
	case errors.Is(err, gameerr.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, session.ErrTooManySessions):
		return codes.ResourceExhausted
	case errors.Is(err, session.ErrPersistenceDisabled), errors.Is(err, session.ErrReplayDisabled):
		return codes.Unimplemented
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}
