package telemetry

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{ServiceName: "moviefinder"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if Tracer() == nil {
		t.Fatal("Tracer returned nil")
	}
}

func TestInitWithEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{
		ServiceName: "moviefinder",
		Version:     "test",
		Endpoint:    "http://127.0.0.1:4318",
		SampleRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "test")
	span.End()
	_ = shutdown(context.Background())
}
