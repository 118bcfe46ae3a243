package observability

import "context"

// NopLogger descarta todo. Útil en pruebas y como default seguro.
type NopLogger struct{}

func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (l *NopLogger) Trace(ctx context.Context, message string, fields ...interface{}) Logger {
	return l
}

func (l *NopLogger) Debug(ctx context.Context, message string, fields ...interface{}) Logger {
	return l
}

func (l *NopLogger) Info(ctx context.Context, message string, fields ...interface{}) Logger {
	return l
}

func (l *NopLogger) Warn(ctx context.Context, message string, err error, fields ...interface{}) Logger {
	return l
}

func (l *NopLogger) Error(ctx context.Context, message string, err error, fields ...interface{}) Logger {
	return l
}

func (l *NopLogger) Fatal(ctx context.Context, message string, err error, fields ...interface{}) Logger {
	return l
}

func (l *NopLogger) AddFieldsToContext(ctx context.Context, fields map[string]string) context.Context {
	return ctx
}
