// Command roomdemo wires a lifecycle manager over five in-memory
// contributors, subscribes to room-status changes, attaches the room,
// then releases it, printing every transition. It is the smallest
// runnable thing exercising the attach and release cycles (release
// detaches the contributors), grounded on the teacher's
// example/webserver and examples/basic-app.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/internal/subscription"
	"github.com/chatcore/roomkit/realtime/faketransport"
	"github.com/chatcore/roomkit/room"
	"github.com/chatcore/roomkit/roomadmin"
	"github.com/chatcore/roomkit/roomconfig"
	"github.com/chatcore/roomkit/roomlog"
)

func main() {
	logger, err := roomlog.NewZapLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "roomdemo: logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	features := []contributor.Feature{
		contributor.FeatureMessages,
		contributor.FeaturePresence,
		contributor.FeatureTyping,
		contributor.FeatureReactions,
		contributor.FeatureOccupancy,
	}

	contributors := make([]*contributor.Contributor, 0, len(features))
	for _, f := range features {
		contributors = append(contributors, contributor.New(f, faketransport.New()))
	}

	cfg := roomconfig.Default()
	manager := room.New("demo-room", contributors, cfg, logger)
	defer manager.Close()

	statusCh := manager.OnRoomStatusChange(subscription.Unbounded())
	go func() {
		for change := range statusCh.C {
			fmt.Printf("room status: %s -> %s\n", change.Previous, change.Current)
		}
	}()

	admin := roomadmin.New(manager)
	go func() {
		_ = http.ListenAndServe(":8088", admin)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := manager.Attach(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "roomdemo: attach failed:", err)
		os.Exit(1)
	}

	fmt.Println("room attached, status:", manager.RoomStatus())

	if err := manager.Release(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "roomdemo: release failed:", err)
		os.Exit(1)
	}

	fmt.Println("room released, status:", manager.RoomStatus())
}
