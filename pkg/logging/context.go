package logging

import (
	"context"
)

const (
	TraceIDKey        = "trace_id"
	NotificationIDKey = "notification_id"
	ServiceNameKey    = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithNotificationID(ctx context.Context, notificationID string) context.Context {
	return context.WithValue(ctx, NotificationIDKey, notificationID)
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

func GetNotificationID(ctx context.Context) string {
	if notificationID, ok := ctx.Value(NotificationIDKey).(string); ok {
		return notificationID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if notificationID := GetNotificationID(ctx); notificationID != "" {
		fields = append(fields, "notification_id", notificationID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
