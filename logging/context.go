package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugKey struct{}

// EnableDebugMode marks ctx so that CDebug statements logged with it are emitted whatever the
// logger level. The name tags the debugged operation; an empty one is replaced by a random
// six letter string.
func EnableDebugMode(ctx context.Context, name string) context.Context {
	if name == "" {
		name = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKey{}, name)
}

// IsDebugMode returns whether ctx was marked by EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return GetName(ctx) != ""
}

// GetName returns the name given to EnableDebugMode, or "" when ctx is not in debug mode.
func GetName(ctx context.Context) string {
	name, _ := ctx.Value(debugKey{}).(string)
	return name
}
