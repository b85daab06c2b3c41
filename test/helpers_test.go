//go:build integration
// +build integration

package test

import (
	"testing"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
	"github.com/MrEthical07/goFaceAuth/provider/providertest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const imageSize = 600

// newIntegrationEngine builds an engine over miniredis with an in-memory
// provider: 'a' is the enrolled face, 'A' a close match and 'b' a stranger.
func newIntegrationEngine(t *testing.T, cfg goFaceAuth.Config) (*goFaceAuth.Engine, *providertest.Static, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	fp := providertest.New().
		Set('a', []float64{0.10, 0.20, 0.30, 0.40}).
		Set('A', []float64{0.11, 0.20, 0.30, 0.40}).
		Set('b', []float64{0.90, 0.80, 0.70, 0.60})

	engine, err := goFaceAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(fp).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return engine, fp, rdb, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func integrationConfig() goFaceAuth.Config {
	cfg := goFaceAuth.DefaultConfig()
	cfg.Liveness.Enabled = false
	cfg.Audit.Enabled = false
	return cfg
}

func face(tag byte) []byte {
	return providertest.Image(tag, imageSize)
}
