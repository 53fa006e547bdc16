package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func() error

func (f pingerFunc) Ping() error { return f() }

func TestSystemHandler(t *testing.T) {
	healthy := NewSystemHandler("stockledger", "1.2.3", pingerFunc(func() error { return nil }))
	down := NewSystemHandler("stockledger", "1.2.3", pingerFunc(func() error { return errors.New("connection refused") }))

	engine := newEngine(nil)
	engine.GET("/health", down.Health)
	engine.GET("/ready", healthy.Ready)
	engine.GET("/ready-down", down.Ready)
	engine.GET("/info", healthy.Info)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(engine, http.MethodGet, "/ready-down", nil).Code)

	var info SystemInfoResponse
	decodeData(t, do(engine, http.MethodGet, "/info", nil), &info)
	assert.Equal(t, "1.2.3", info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
