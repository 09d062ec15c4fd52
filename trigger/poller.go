package trigger

import (
	"context"

	"go.uber.org/zap"

	"github.com/bassamadnan/mailcmd/mailbox"
)

// Poller searches the mailbox for unread messages from the configured sender
// with the configured subject.
type Poller struct {
	mailbox mailbox.Mailbox
	query   mailbox.Query
	logger  *zap.SugaredLogger
}

func NewPoller(mb mailbox.Mailbox, from, subject string, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		mailbox: mb,
		query: mailbox.Query{
			From:    from,
			Subject: subject,
			Limit:   mailbox.MaxCandidates,
		},
		logger: logger,
	}
}

// Poll returns candidate message ids in provider order. Errors are logged and
// reported as no candidates; the next cycle is the retry.
func (p *Poller) Poll(ctx context.Context) []string {
	p.logger.Infof("Poller: checking mailbox for unread mail from %q with subject %q", p.query.From, p.query.Subject)

	ids, err := p.mailbox.Search(ctx, p.query)
	if err != nil {
		p.logger.Errorf("Poller: error checking mailbox: %v", err)
		if mailbox.IsAuthError(err) {
			p.logger.Errorf("Poller: authentication error. The token might be expired or revoked; re-authorization may be needed (remove the stored token and restart)")
		}
		return nil
	}
	if len(ids) == 0 {
		p.logger.Debugf("Poller: no new matching emails found")
		return nil
	}

	p.logger.Infof("Poller: found %d matching email(s)", len(ids))
	return ids
}
