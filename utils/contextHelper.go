package utils

import (
	"context"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pricing_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyRunId         = appctx.ContextKeyRunId
	ContextKeyTrigger       = appctx.ContextKeyTrigger
)

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// EnsureCorrelationId returns ctx unchanged when it already carries one.
func EnsureCorrelationId(ctx context.Context) (context.Context, string) {
	if id, ok := GetCorrelationIdFromContext(ctx); ok && id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return SetCorrelationIdInContext(ctx, id), id
}

func GetRunIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRunId)
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	return appctx.Set(ctx, ContextKeyRunId, runId)
}

func GetTriggerFromContext(ctx context.Context) string {
	v, ok := appctx.GetString(ctx, ContextKeyTrigger)
	if !ok || v == "" {
		return "unknown"
	}
	return v
}

func SetTriggerInContext(ctx context.Context, trigger string) context.Context {
	return appctx.Set(ctx, ContextKeyTrigger, trigger)
}
