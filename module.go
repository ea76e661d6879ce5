package hetblas

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a managed *Engine to an fx application. The engine picks
// up the application's *zap.Logger when one is in the graph, applies any
// Option values contributed to the "hetblas.options" group, and is closed
// on application stop.
var Module = fx.Module("hetblas",
	fx.Provide(newFxEngine),
)

type fxEngineParams struct {
	fx.In

	Logger  *zap.Logger `optional:"true"`
	Options []Option    `group:"hetblas.options"`
}

func newFxEngine(lc fx.Lifecycle, p fxEngineParams) (*Engine, error) {
	opts := p.Options
	if p.Logger != nil {
		opts = append([]Option{WithLogger(p.Logger)}, opts...)
	}
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return e.Close()
		},
	})
	return e, nil
}
