package room

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/realtime"
	"github.com/chatcore/roomkit/realtime/faketransport"
	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"
)

// roomLifecycleBDDTestContext holds fixture state across steps of one
// scenario, mirroring the teacher's *BDDTestContext fixture pattern.
type roomLifecycleBDDTestContext struct {
	manager    *Manager
	channels   []*faketransport.Channel
	attachErr  error
	releaseErr error
}

func (tc *roomLifecycleBDDTestContext) reset() {
	if tc.manager != nil {
		tc.manager.Close()
	}
	*tc = roomLifecycleBDDTestContext{}
}

func (tc *roomLifecycleBDDTestContext) aRoomWithHealthyContributors(n int) error {
	return tc.buildRoom(n)
}

func (tc *roomLifecycleBDDTestContext) aRoomWithContributors(n int) error {
	return tc.buildRoom(n)
}

func (tc *roomLifecycleBDDTestContext) buildRoom(n int) error {
	tc.channels = nil
	contributors := make([]*contributor.Contributor, 0, n)
	for i := 0; i < n; i++ {
		ch := faketransport.New()
		tc.channels = append(tc.channels, ch)
		contributors = append(contributors, contributor.New(contributor.FeatureMessages, ch))
	}

	cfg := testConfig()
	tc.manager = New(fmt.Sprintf("bdd-room-%d", n), contributors, cfg, nil)
	return nil
}

func (tc *roomLifecycleBDDTestContext) contributorIsScriptedToFailOnAttach(index int) error {
	tc.channels[index-1].SetAttachResult(realtime.ChannelStateFailed, fmt.Errorf("scripted attach failure"))
	return nil
}

func (tc *roomLifecycleBDDTestContext) contributorIsScriptedToSuspendOnAttach(index int) error {
	tc.channels[index-1].SetAttachResult(realtime.ChannelStateSuspended, fmt.Errorf("scripted suspend"))
	return nil
}

func (tc *roomLifecycleBDDTestContext) iAttachTheRoom() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tc.attachErr = tc.manager.Attach(ctx)
	return nil
}

func (tc *roomLifecycleBDDTestContext) iReleaseTheRoom() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tc.releaseErr = tc.manager.Release(ctx)
	return tc.releaseErr
}

func (tc *roomLifecycleBDDTestContext) theAttachCallShouldReturnAnError() error {
	if tc.attachErr == nil {
		return fmt.Errorf("expected attach to fail, it succeeded")
	}
	return nil
}

func (tc *roomLifecycleBDDTestContext) theRoomStatusShouldBe(want string) error {
	got := tc.manager.RoomStatus().Kind.String()
	if got != want {
		return fmt.Errorf("expected room status %q, got %q", want, got)
	}
	return nil
}

func (tc *roomLifecycleBDDTestContext) theRoomStatusShouldEventuallyBe(want string) error {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tc.manager.RoomStatus().Kind.String() == want {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("room status never reached %q, last seen %q", want, tc.manager.RoomStatus().Kind.String())
}

func TestRoomLifecycleBDD(t *testing.T) {
	tc := &roomLifecycleBDDTestContext{}

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
				tc.reset()
				return ctx, nil
			})

			sc.Given(`^a room with (\d+) healthy contributors$`, tc.aRoomWithHealthyContributors)
			sc.Given(`^a room with (\d+) contributors$`, tc.aRoomWithContributors)
			sc.Given(`^contributor (\d+) is scripted to fail on attach$`, tc.contributorIsScriptedToFailOnAttach)
			sc.Given(`^contributor (\d+) is scripted to suspend on attach$`, tc.contributorIsScriptedToSuspendOnAttach)
			sc.When(`^I attach the room$`, tc.iAttachTheRoom)
			sc.When(`^I release the room$`, tc.iReleaseTheRoom)
			sc.Then(`^the attach call should return an error$`, tc.theAttachCallShouldReturnAnError)
			sc.Then(`^the room status should be "([^"]*)"$`, tc.theRoomStatusShouldBe)
			sc.Then(`^the room status should eventually be "([^"]*)"$`, tc.theRoomStatusShouldEventuallyBe)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	require.Equal(t, 0, suite.Run(), "non-zero status returned, failed to run feature tests")
}
