package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Message is the canonical email record. Its ID is derived from
// (accountID, uid) so that two independent fetches of the same provider
// message always produce the same row and the same index document.
type Message struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	Folder    string    `json:"folder"`
	UID       string    `json:"uid"`
	Subject   string    `json:"subject"`
	From      Contact   `json:"from"`
	To        []string  `json:"to"`
	Cc        []string  `json:"cc,omitempty"`
	Bcc       []string  `json:"bcc,omitempty"`
	Date      time.Time `json:"date"`
	BodyText  string    `json:"body_text"`
	BodyHTML  string    `json:"body_html,omitempty"`
	Flags     []string  `json:"flags,omitempty"`
	Category  *Category `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact is a single address with optional display name.
type Contact struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// MessageID derives the stable message ID for an (account, uid) pair.
// sha256 keeps the ID opaque and fixed-width; 32 hex chars is plenty
// for uniqueness and keeps index document IDs short.
func MessageID(accountID int64, uid string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", accountID, uid)))
	return hex.EncodeToString(sum[:16])
}

// ClassifiableText returns the text handed to the classifier:
// subject plus plain body, capped so prompts stay bounded.
func (m *Message) ClassifiableText(maxBody int) string {
	body := m.BodyText
	if maxBody > 0 && len(body) > maxBody {
		body = body[:maxBody]
	}
	return fmt.Sprintf("Subject: %s\n\n%s", m.Subject, body)
}

// MessageFilter narrows listing/search queries. AccountIDs is the
// caller's tenant allow-list and is always applied; Account restricts
// further within it.
type MessageFilter struct {
	AccountIDs []int64
	Account    *int64
	Folder     *string
	Category   *Category
	Query      string
	Limit      int
	Offset     int
}
