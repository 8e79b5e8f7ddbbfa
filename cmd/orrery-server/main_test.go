package main

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/navsvc"
	"github.com/signalsfoundry/orrery/model"
)

func TestServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := Config{
		ListenAddress: lis.Addr().String(),
		GalaxyPath:    "../../configs/galaxy.yaml",
		TickInterval:  5 * time.Millisecond,
		WatchRate:     navsvc.DefaultWatchRate,
		LogLevel:      "warn",
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel})

	runCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- run(runCtx, cfg, log, lis) }()

	conn, err := grpc.NewClient(cfg.ListenAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	client := navsvc.NewNavigationServiceClient(conn)

	resp, err := client.NavigateTo(ctx, wrapperspb.String(model.SectionContact), grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("NavigateTo: %v", err)
	}
	if got := resp.GetFields()["tracked_id"].GetStringValue(); got != model.SectionContact {
		t.Fatalf("tracked_id = %q, want contact", got)
	}

	// The TLE satellite from the config file is registered.
	if _, err := client.Click(ctx, wrapperspb.String("iss")); err != nil {
		t.Fatalf("Click(iss): %v", err)
	}
	state, err := client.GetState(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got := state.GetFields()["tracked_id"].GetStringValue(); got != "iss" {
		t.Fatalf("tracked_id = %q, want iss", got)
	}

	stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestRunRejectsBadGalaxy(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()

	err = run(context.Background(), Config{GalaxyPath: "missing.yaml"}, logging.Noop(), lis)
	if err == nil {
		t.Fatalf("run with a missing galaxy returned nil error")
	}
}
