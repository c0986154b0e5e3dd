package provider

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// =============================================================================
// IMAP Provider
// =============================================================================

const (
	imapDialTimeout  = 5 * time.Second
	imapFetchTimeout = 60 * time.Second
)

// ImapProvider implements out.MailProvider over plain IMAP. A fresh
// connection is dialed per fetch and closed when the fetch ends; the
// sync scheduler runs one fetch per account at a time, so pooling
// buys nothing here.
type ImapProvider struct {
	credentials out.CredentialRepository
}

// NewImapProvider creates an IMAP provider.
func NewImapProvider(credentials out.CredentialRepository) *ImapProvider {
	return &ImapProvider{credentials: credentials}
}

// Fetch searches the folder for messages since opts.Since and pulls
// full bodies for the newest opts.MaxCount of them.
func (p *ImapProvider) Fetch(ctx context.Context, account *domain.Account, opts *out.FetchOptions) ([]*out.RawMessage, error) {
	cfg, err := p.credentials.GetImapConfig(ctx, account.ID)
	if err != nil {
		return nil, &out.ProviderError{Code: out.ProviderErrAuth, Err: fmt.Errorf("no imap config for account %d: %w", account.ID, err)}
	}

	c, err := p.connect(cfg)
	if err != nil {
		return nil, &out.ProviderError{Code: out.ProviderErrUnavailable, Err: err}
	}
	defer c.Logout()

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		return nil, &out.ProviderError{Code: out.ProviderErrAuth, Err: fmt.Errorf("imap login failed: %w", err)}
	}

	folder := opts.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, true); err != nil {
		return nil, &out.ProviderError{Code: out.ProviderErrUnavailable, Err: fmt.Errorf("failed to select %s: %w", folder, err)}
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = opts.Since
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, &out.ProviderError{Code: out.ProviderErrUnavailable, Err: fmt.Errorf("uid search failed: %w", err)}
	}
	if len(uids) == 0 {
		return nil, nil
	}

	// Newest first, capped; higher UID means more recent in a folder.
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if opts.MaxCount > 0 && len(uids) > opts.MaxCount {
		uids = uids[:opts.MaxCount]
	}

	return p.fetchFull(ctx, c, uids, folder)
}

func (p *ImapProvider) connect(cfg *domain.ImapConfig) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer := &net.Dialer{Timeout: imapDialTimeout}

	var c *client.Client
	var err error
	if cfg.UseTLS {
		c, err = client.DialWithDialerTLS(dialer, addr, nil)
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	// Commands abort when the server stops responding mid-command.
	// Without this a stalled UID FETCH hangs the sync pass forever.
	c.Timeout = imapFetchTimeout
	return c, nil
}

// fetchFull pulls envelope, flags and full body for the given UIDs.
// A message whose body fails to parse still yields its headers.
func (p *ImapProvider) fetchFull(ctx context.Context, c *client.Client, uids []uint32, folder string) ([]*out.RawMessage, error) {
	seqSet := new(imap.SeqSet)
	for _, uid := range uids {
		seqSet.AddNum(uid)
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	// Drain and watch the context at the same time. The client's
	// command timeout closes the channel when the server stalls, so
	// neither arm can block forever.
	var result []*out.RawMessage
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				if err := <-done; err != nil {
					return nil, &out.ProviderError{Code: out.ProviderErrUnavailable, Err: fmt.Errorf("uid fetch failed: %w", err)}
				}
				return result, nil
			}
			result = append(result, p.convertMessage(msg, section, folder))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *ImapProvider) convertMessage(msg *imap.Message, section *imap.BodySectionName, folder string) *out.RawMessage {
	raw := &out.RawMessage{
		UID:    fmt.Sprintf("%d", msg.Uid),
		Folder: folder,
	}

	for _, flag := range msg.Flags {
		raw.Flags = append(raw.Flags, string(flag))
	}

	if msg.Envelope != nil {
		raw.Subject = msg.Envelope.Subject
		raw.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			raw.From = imapContact(msg.Envelope.From[0])
		}
		raw.To = imapAddressList(msg.Envelope.To)
		raw.Cc = imapAddressList(msg.Envelope.Cc)
		raw.Bcc = imapAddressList(msg.Envelope.Bcc)
	}

	if body := msg.GetBody(section); body != nil {
		envelope, err := enmime.ReadEnvelope(body)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse body for uid %d, keeping headers", msg.Uid)
		} else {
			raw.BodyText = envelope.Text
			raw.BodyHTML = envelope.HTML
		}
	}

	return raw
}

func imapContact(address *imap.Address) domain.Contact {
	if address == nil {
		return domain.Contact{}
	}
	return domain.Contact{
		Name:    address.PersonalName,
		Address: fmt.Sprintf("%s@%s", address.MailboxName, address.HostName),
	}
}

func imapAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if address == nil || (address.MailboxName == "" && address.HostName == "") {
			continue
		}
		result = append(result, fmt.Sprintf("%s@%s", address.MailboxName, address.HostName))
	}
	return result
}
