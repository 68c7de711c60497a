package pubsub

import (
	"testing"

	"github.com/KalilovM/topshopes-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "topshopes-prod"}

	cases := map[string]string{
		"orders":                       "projects/topshopes-prod/topics/orders",
		"  payouts ":                   "projects/topshopes-prod/topics/payouts",
		"projects/other/topics/orders": "projects/other/topics/orders",
		"":                             "",
	}
	for in, want := range cases {
		if got := c.topicResourceName(in); got != want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", in, got, want)
		}
	}

	if got := (&Client{}).topicResourceName("orders"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	names := topicNames(config.PubSubConfig{OrdersTopic: "orders", PayoutsTopic: "  "})
	if len(names) != 1 || names[0] != "orders" {
		t.Fatalf("unexpected topic names %v", names)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("orders") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
