package gmail

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Watch (re)arms the inbox watch for the given grant and returns the
// history id the watch was established at. Gmail watches expire after
// about seven days, so this is called periodically for every user.
func (f *ClientFactory) Watch(ctx context.Context, refreshToken string) (uint64, error) {
	service, err := f.serviceFor(ctx, refreshToken)
	if err != nil {
		return 0, err
	}

	req := &gmailapi.WatchRequest{
		LabelIds:  []string{"INBOX"},
		TopicName: f.topic,
	}

	resp, err := service.Users.Watch("me", req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to start watch: %w", err)
	}

	logrus.Infof("Mailbox watch armed, historyId=%d expiration=%d", resp.HistoryId, resp.Expiration)
	return resp.HistoryId, nil
}

// StopWatch tears down the inbox watch for the given grant.
func (f *ClientFactory) StopWatch(ctx context.Context, refreshToken string) error {
	service, err := f.serviceFor(ctx, refreshToken)
	if err != nil {
		return err
	}

	if err := service.Users.Stop("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to stop watch: %w", err)
	}
	return nil
}
