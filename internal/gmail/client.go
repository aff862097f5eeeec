package gmail

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"ledgerlens-go/internal/config"
	"ledgerlens-go/internal/model"
)

// ErrMissingGrant is returned when a user has no stored mailbox grant.
var ErrMissingGrant = errors.New("missing Gmail refresh token")

// ClientFactory builds per-user Gmail clients from stored OAuth
// refresh tokens.
type ClientFactory struct {
	clientID     string
	clientSecret string
	topic        string
}

func NewClientFactory(cfg config.GoogleConfig) *ClientFactory {
	return &ClientFactory{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		topic:        cfg.PubSubTopic,
	}
}

func (f *ClientFactory) serviceFor(ctx context.Context, refreshToken string) (*gmailapi.Service, error) {
	if refreshToken == "" {
		return nil, ErrMissingGrant
	}

	oauth2Config := &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Scopes:       []string{gmailapi.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{RefreshToken: refreshToken}
	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmailapi.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return service, nil
}

// MailboxFor returns the mailbox capability for one user.
func (f *ClientFactory) MailboxFor(ctx context.Context, user *model.User) (Mailbox, error) {
	service, err := f.serviceFor(ctx, user.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &userMailbox{service: service}, nil
}
