package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	BrandCodeKey   contextKey = "brand_code"
	OffsetKey      contextKey = "offset"
	ServiceNameKey contextKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithBrandCode(ctx context.Context, brandCode string) context.Context {
	return context.WithValue(ctx, BrandCodeKey, brandCode)
}

func WithOffset(ctx context.Context, offset int64) context.Context {
	return context.WithValue(ctx, OffsetKey, offset)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func GetBrandCode(ctx context.Context) string {
	if brandCode, ok := ctx.Value(BrandCodeKey).(string); ok {
		return brandCode
	}
	return ""
}

func GetOffset(ctx context.Context) (int64, bool) {
	offset, ok := ctx.Value(OffsetKey).(int64)
	return offset, ok
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if brandCode := GetBrandCode(ctx); brandCode != "" {
		fields = append(fields, "brand_code", brandCode)
	}

	if offset, ok := GetOffset(ctx); ok {
		fields = append(fields, "offset", offset)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
