package globals

import (
	"context"
	"wyniki-crawler/internal/components/telemetry"
	"wyniki-crawler/internal/config"
)

type key struct{}

type Value struct {
	Config config.Config
	Tel    telemetry.API
}

func Set(ctx context.Context, value *Value) context.Context {
	return context.WithValue(ctx, key{}, value)
}

func Get(ctx context.Context) *Value {
	return ctx.Value(key{}).(*Value)
}
