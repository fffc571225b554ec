package event

import "context"

type sourceKey struct{}

// WithSource tags ctx with the originator of the changes made under it
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the ctx originator, SourceProcessor by default
func SourceFrom(ctx context.Context) string {
	if ctx == nil {
		return SourceProcessor
	}
	if source, ok := ctx.Value(sourceKey{}).(string); ok && source != "" {
		return source
	}
	return SourceProcessor
}
