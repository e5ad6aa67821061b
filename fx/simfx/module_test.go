package simfx

import (
	"context"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/sim"
	"github.com/IvanBrykalov/cachesim/trace"
)

func TestModule_ProvidesSimulator(t *testing.T) {
	var s *sim.Simulator
	app := fxtest.New(t,
		fx.Supply(Config{Warmup: 1}),
		fx.Provide(zap.NewNop),
		Module,
		fx.Populate(&s),
	)
	app.RequireStart()
	defer app.RequireStop()

	reqs := []cache.Request{{ID: 1, Size: 1}, {ID: 1, Size: 1}, {ID: 2, Size: 1}}
	res, err := s.Run(context.Background(), trace.NewSliceReader(reqs), sim.Experiment{Policy: "s3fifo", Params: cache.Params{Capacity: 10}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Name != "S3FIFO" || res.Stats.Requests != 2 || res.Stats.Hits != 1 {
		t.Fatalf("result = %+v", res)
	}
}
