package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// ErrorKindHeader is the error metadata key carrying the ledger ErrorKind name.
const ErrorKindHeader = "Ajo-Error-Kind"

// groupScoped is implemented by request messages that address a single group.
type groupScoped interface {
	GetGroupID() uint64
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, member, group and duration. Ledger rejections are
// logged at warn level with their ErrorKind name; anything else that fails
// is an error.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			attrs := callAttrs(ctx, req)

			resp, err := next(ctx, req)

			attrs = append(attrs, "duration_ms", time.Since(start).Milliseconds())
			var connectErr *connect.Error
			switch {
			case err == nil:
				slog.Info("RPC ok", attrs...)
			case errors.As(err, &connectErr) && connectErr.Meta().Get(ErrorKindHeader) != "":
				slog.Warn("RPC rejected", append(attrs,
					"code", connectErr.Code(),
					"kind", connectErr.Meta().Get(ErrorKindHeader),
				)...)
			case connectErr != nil:
				slog.Warn("RPC error", append(attrs,
					"code", connectErr.Code(),
					"error", connectErr.Message(),
				)...)
			default:
				slog.Error("RPC error", append(attrs, "error", err)...)
			}

			return resp, err
		}
	}
}

func callAttrs(ctx context.Context, req connect.AnyRequest) []any {
	attrs := []any{"procedure", req.Spec().Procedure}
	if member := GetMember(ctx); member != "" {
		attrs = append(attrs, "member", member)
	}
	if msg, ok := req.Any().(groupScoped); ok {
		attrs = append(attrs, "group_id", msg.GetGroupID())
	}
	return attrs
}
