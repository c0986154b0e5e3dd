// Package provider implements mail provider adapters.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// =============================================================================
// Gmail Provider
// =============================================================================

// GmailProvider implements out.MailProvider over the Gmail REST API.
// Tokens come from the credential repository per fetch; the provider
// itself holds no per-account state.
type GmailProvider struct {
	config      *oauth2.Config
	credentials out.CredentialRepository
	cb          *gobreaker.CircuitBreaker
}

// GmailConfig holds the OAuth client settings for Gmail.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
}

// NewGmailProvider creates a Gmail provider.
func NewGmailProvider(cfg *GmailConfig, credentials out.CredentialRepository) *GmailProvider {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailProvider{
		config:      config,
		credentials: credentials,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// Fetch lists messages newer than opts.Since and resolves each to its
// full payload with bounded concurrency. Individual message failures
// are dropped; the caller gets whatever resolved cleanly.
func (p *GmailProvider) Fetch(ctx context.Context, account *domain.Account, opts *out.FetchOptions) ([]*out.RawMessage, error) {
	cred, err := p.credentials.GetByAccountID(ctx, account.ID)
	if err != nil {
		return nil, &out.ProviderError{Code: out.ProviderErrAuth, Err: fmt.Errorf("no oauth token for account %d: %w", account.ID, err)}
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.ExpiresAt,
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(p.config.TokenSource(ctx, token)))
	if err != nil {
		return nil, p.wrapError(err)
	}

	maxCount := opts.MaxCount
	if maxCount <= 0 {
		maxCount = 100
	}

	query := fmt.Sprintf("after:%s", opts.Since.Format("2006/01/02"))
	if opts.Folder != "" && !strings.EqualFold(opts.Folder, "INBOX") {
		query += fmt.Sprintf(" in:%s", strings.ToLower(opts.Folder))
	}

	refs, err := p.listMessageRefs(ctx, svc, query, maxCount)
	if err != nil {
		return nil, err
	}

	folder := opts.Folder
	if folder == "" {
		folder = "INBOX"
	}

	return p.fetchMessagesParallel(ctx, svc, refs, folder), nil
}

// listMessageRefs pages through the list endpoint until maxCount IDs
// are collected or the result set is exhausted.
func (p *GmailProvider) listMessageRefs(ctx context.Context, svc *gmail.Service, query string, maxCount int) ([]*gmail.Message, error) {
	var refs []*gmail.Message
	pageToken := ""

	for {
		req := svc.Users.Messages.List("me").Q(query).MaxResults(int64(maxCount - len(refs)))
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		var resp *gmail.ListMessagesResponse
		cbErr := p.executeWithCircuitBreaker("ListMessages", func() error {
			var apiErr error
			resp, apiErr = req.Context(ctx).Do()
			return apiErr
		})
		if cbErr != nil {
			return nil, p.wrapError(cbErr)
		}

		refs = append(refs, resp.Messages...)
		if resp.NextPageToken == "" || len(refs) >= maxCount {
			break
		}
		pageToken = resp.NextPageToken
	}

	if len(refs) > maxCount {
		refs = refs[:maxCount]
	}
	return refs, nil
}

// fetchMessagesParallel resolves message refs to full payloads with a
// concurrency limit, dropping individual failures.
func (p *GmailProvider) fetchMessagesParallel(ctx context.Context, svc *gmail.Service, refs []*gmail.Message, folder string) []*out.RawMessage {
	if len(refs) == 0 {
		return nil
	}

	const maxConcurrency = 10
	const perMessageTimeout = 15 * time.Second

	type result struct {
		index int
		msg   *out.RawMessage
		err   error
	}

	results := make(chan result, len(refs))
	sem := make(chan struct{}, maxConcurrency)

	for i, ref := range refs {
		go func(idx int, id string) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- result{index: idx, err: ctx.Err()}
				return
			}

			msgCtx, cancel := context.WithTimeout(ctx, perMessageTimeout)
			defer cancel()

			full, err := svc.Users.Messages.Get("me", id).Format("full").Context(msgCtx).Do()
			if err != nil {
				results <- result{index: idx, err: err}
				return
			}
			results <- result{index: idx, msg: p.convertMessage(full, folder)}
		}(i, ref.Id)
	}

	ordered := make([]*out.RawMessage, len(refs))
	collected := 0
	for collected < len(refs) {
		select {
		case r := <-results:
			collected++
			if r.err != nil {
				logger.WithError(r.err).Warn("Failed to fetch gmail message, skipping")
				continue
			}
			ordered[r.index] = r.msg
		case <-ctx.Done():
			collected = len(refs)
		}
	}

	filtered := make([]*out.RawMessage, 0, len(ordered))
	for _, msg := range ordered {
		if msg != nil {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func (p *GmailProvider) convertMessage(msg *gmail.Message, folder string) *out.RawMessage {
	raw := &out.RawMessage{
		UID:    msg.Id,
		Folder: folder,
		Flags:  msg.LabelIds,
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				raw.Subject = h.Value
			case "From":
				raw.From = parseContact(h.Value)
			case "To":
				raw.To = parseAddressList(h.Value)
			case "Cc":
				raw.Cc = parseAddressList(h.Value)
			case "Bcc":
				raw.Bcc = parseAddressList(h.Value)
			case "Date":
				if t, err := mail.ParseDate(h.Value); err == nil {
					raw.Date = t
				}
			}
		}
		extractBody(msg.Payload, raw)
	}

	if raw.Date.IsZero() && msg.InternalDate > 0 {
		raw.Date = time.UnixMilli(msg.InternalDate).UTC()
	}
	return raw
}

// extractBody walks the MIME tree collecting the first text and HTML parts.
func extractBody(part *gmail.MessagePart, raw *out.RawMessage) {
	if part == nil {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			data, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		}
		if err == nil {
			switch part.MimeType {
			case "text/plain":
				if raw.BodyText == "" {
					raw.BodyText = string(data)
				}
			case "text/html":
				if raw.BodyHTML == "" {
					raw.BodyHTML = string(data)
				}
			}
		}
	}

	for _, child := range part.Parts {
		extractBody(child, raw)
	}
}

func parseContact(value string) domain.Contact {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return domain.Contact{Address: strings.TrimSpace(value)}
	}
	return domain.Contact{Name: addr.Name, Address: addr.Address}
}

func parseAddressList(value string) []string {
	addrs, err := mail.ParseAddressList(value)
	if err != nil {
		if v := strings.TrimSpace(value); v != "" {
			return []string{v}
		}
		return nil
	}
	result := make([]string, 0, len(addrs))
	for _, a := range addrs {
		result = append(result, a.Address)
	}
	return result
}

// executeWithCircuitBreaker wraps an API call with circuit breaker
// protection. Client errors (4xx) do not trip the breaker.
func (p *GmailProvider) executeWithCircuitBreaker(operation string, fn func() error) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				default:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}
	if err != nil {
		logger.WithError(err).Warn("[GmailProvider] Circuit breaker error for %s: state=%s", operation, p.cb.State().String())
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// wrapError maps Gmail API failures onto coarse provider error codes.
func (p *GmailProvider) wrapError(err error) error {
	if err == nil {
		return nil
	}
	code := out.ProviderErrUnavailable
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401, 403:
			code = out.ProviderErrAuth
		case 429:
			code = out.ProviderErrRateLimited
		}
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		code = out.ProviderErrUnavailable
	}
	return &out.ProviderError{Code: code, Err: err}
}
