// Package features holds the thin facades applications use to interact
// with one room feature at a time. Each facade holds the
// contributor.Contributor backing its feature; Presence also holds the
// *room.Manager for its readiness gate. No facade reaches into
// manager-internal state directly (spec.md §5).
package features

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/internal/subscription"
	"github.com/chatcore/roomkit/pkg/historyclient"
)

// Message is one chat message returned by history.
type Message struct {
	Serial    string    `json:"serial"`
	ClientID  string    `json:"clientId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// historyPage is the envelope the REST history endpoint returns.
type historyPage struct {
	Items []Message `json:"items"`
	Next  string    `json:"next"`
}

// Messages is the messages feature facade.
type Messages struct {
	contributor *contributor.Contributor
	history     *historyclient.Client
}

// NewMessages builds a Messages facade over its contributor and a
// history REST client.
func NewMessages(c *contributor.Contributor, history *historyclient.Client) *Messages {
	return &Messages{contributor: c, history: history}
}

// History fetches up to limit historical messages, oldest of the page
// first, optionally continuing from a previous page's Next cursor.
func (f *Messages) History(ctx context.Context, limit int, cursor string) ([]Message, string, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var page historyPage
	if err := f.history.Get(ctx, "/messages", q, &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.Next, nil
}

// SubscribeToDiscontinuities exposes the contributor's discontinuity
// stream, so a message store built on top can know when it must
// re-fetch history rather than trust gap-free delivery.
func (f *Messages) SubscribeToDiscontinuities(policy subscription.BufferPolicy) *subscription.Handle[contributor.Discontinuity] {
	return f.contributor.SubscribeToDiscontinuities(policy)
}
