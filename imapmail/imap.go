// Package imapmail implements mailbox.Mailbox over IMAP for servers without a
// Gmail-style API.
package imapmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/bassamadnan/mailcmd/config"
	"github.com/bassamadnan/mailcmd/mailbox"
)

const provider = "imap"

// Mailbox connects per call: dial, login, select, run one command, logout.
type Mailbox struct {
	cfg    config.IMAP
	logger *zap.SugaredLogger

	// tlsConfig replaces the default client TLS settings when set.
	tlsConfig *tls.Config
}

var _ mailbox.Mailbox = (*Mailbox)(nil)

// New creates an IMAP mailbox. No connection is made until the first call.
func New(cfg config.IMAP, logger *zap.SugaredLogger) *Mailbox {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Mailbox{cfg: cfg, logger: logger}
}

// Search runs UID SEARCH UNSEEN FROM <from> SUBJECT <subject> and returns at
// most q.Limit UIDs, lowest first.
func (m *Mailbox) Search(ctx context.Context, q mailbox.Query) ([]string, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("unable to select %s: %w", m.cfg.Mailbox, err)
	}

	data, err := client.UIDSearch(Criteria(q), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("unable to search %s: %w", m.cfg.Mailbox, err)
	}

	uids := data.AllUIDs()
	limit := q.Limit
	if limit <= 0 {
		limit = mailbox.MaxCandidates
	}
	if int64(len(uids)) > limit {
		uids = uids[:limit]
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// MarkRead sets \Seen on the message with the given UID.
func (m *Mailbox) MarkRead(ctx context.Context, id string) error {
	uid, err := ParseUID(id)
	if err != nil {
		return err
	}

	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.cfg.Mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("unable to select %s: %w", m.cfg.Mailbox, err)
	}

	storeCmd := client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("unable to mark UID %d seen: %w", uid, err)
	}
	return nil
}

// Criteria translates q into an IMAP search.
func Criteria(q mailbox.Query) *imap.SearchCriteria {
	return &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: q.From},
			{Key: "Subject", Value: q.Subject},
		},
	}
}

// ParseUID converts a candidate id back into an IMAP UID.
func ParseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid IMAP UID %q", id)
	}
	return imap.UID(n), nil
}

func (m *Mailbox) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := m.cfg.Addr()

	var (
		client *imapclient.Client
		err    error
	)
	opts := &imapclient.Options{TLSConfig: m.clientTLS()}
	if m.cfg.TLS {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialStartTLS(addr, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}

	if err := ctx.Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	if err := client.Login(m.cfg.Username, m.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, &mailbox.AuthError{Provider: provider, Err: err}
	}
	m.logger.Debugf("IMAP: logged in to %s as %s", addr, m.cfg.Username)
	return client, nil
}

func (m *Mailbox) clientTLS() *tls.Config {
	if m.tlsConfig == nil {
		return &tls.Config{ServerName: m.cfg.Host}
	}
	c := m.tlsConfig.Clone()
	if c.ServerName == "" {
		c.ServerName = m.cfg.Host
	}
	return c
}
