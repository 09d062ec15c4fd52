package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bassamadnan/mailcmd/mailbox"
)

const (
	user        = "me"
	unreadLabel = "UNREAD"
	provider    = "gmail"
)

// Client is a mailbox.Mailbox backed by the Gmail API.
type Client struct {
	srv    *gmail.Service
	logger *zap.SugaredLogger
}

var _ mailbox.Mailbox = (*Client)(nil)

// NewClient creates the Gmail service. Callers supply credentials through opts,
// typically option.WithTokenSource.
func NewClient(ctx context.Context, logger *zap.SugaredLogger, opts ...option.ClientOption) (*Client, error) {
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Client{srv: srv, logger: logger}, nil
}

// Search lists unread messages matching q. Ids come back in the order Gmail
// returns them.
func (c *Client) Search(ctx context.Context, q mailbox.Query) ([]string, error) {
	query := BuildQuery(q)
	limit := q.Limit
	if limit <= 0 {
		limit = mailbox.MaxCandidates
	}

	c.logger.Debugf("Gmail: listing messages with query %s (max %d)", query, limit)
	res, err := c.srv.Users.Messages.List(user).
		Q(query).
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", classify(err))
	}

	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// MarkRead removes the UNREAD label from the message.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{unreadLabel}}
	if _, err := c.srv.Users.Messages.Modify(user, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to modify message %s: %w", id, classify(err))
	}
	return nil
}

// classify wraps credential failures in a mailbox.AuthError. A 401 from the API
// and a failed refresh-token exchange both count.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return &mailbox.AuthError{Provider: provider, Err: err}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &mailbox.AuthError{Provider: provider, Err: err}
	}
	return err
}
