package imapmail

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	_ "github.com/emersion/go-message/charset"

	messagedomain "mailtask-backend/internal/message/domain"
	"mailtask-backend/internal/sync/usecase"
)

const snippetMaxRunes = 200

// Service reads mailboxes over IMAP. The cursor is the highest UID
// already observed in INBOX; UIDs only grow within one UIDVALIDITY
// generation, which is what the conditional cursor advance relies on.
//
// Connections are per call. Sync batches are small and cursor-bounded,
// so a connection pool would buy little here.
type Service struct {
	dialTimeout time.Duration
}

func NewService() *Service {
	return &Service{dialTimeout: 30 * time.Second}
}

func (s *Service) connect(ctx context.Context, creds usecase.Credentials) (*client.Client, error) {
	if creds.IMAPHost == "" {
		return nil, fmt.Errorf("account has no IMAP host configured")
	}

	c, err := client.DialTLS(creds.IMAPHost, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %v", creds.IMAPHost, err)
	}
	c.Timeout = s.dialTimeout

	if err := c.Login(creds.Email, creds.AccessToken); err != nil {
		c.Logout()
		return nil, fmt.Errorf("login rejected for %s: %v", creds.Email, err)
	}
	return c, nil
}

// ListMessageIDs returns UIDs above the cursor. An empty cursor
// bootstraps: nothing is listed, only the current high-water mark is
// returned so the next call starts from there.
func (s *Service) ListMessageIDs(ctx context.Context, creds usecase.Credentials, cursor string, maxMessages int) ([]string, string, error) {
	c, err := s.connect(ctx, creds)
	if err != nil {
		return nil, "", err
	}
	defer c.Logout()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, "", fmt.Errorf("unable to select INBOX: %v", err)
	}

	if cursor == "" {
		// UidNext is the UID the next arrival will get.
		return nil, strconv.FormatUint(uint64(mbox.UidNext-1), 10), nil
	}

	lastUID, err := strconv.ParseUint(cursor, 10, 32)
	if err != nil {
		return nil, "", fmt.Errorf("unusable uid cursor %q: %v", cursor, err)
	}

	if uint32(lastUID)+1 >= mbox.UidNext {
		return nil, cursor, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(uint32(lastUID)+1, mbox.UidNext-1)
	criteria := imap.NewSearchCriteria()
	criteria.Uid = seqset

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, "", fmt.Errorf("uid search failed: %v", err)
	}

	newLast := uint32(lastUID)
	var ids []string
	for _, uid := range uids {
		if len(ids) >= maxMessages {
			break
		}
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
		if uid > newLast {
			newLast = uid
		}
	}

	return ids, strconv.FormatUint(uint64(newLast), 10), nil
}

// FetchMeta downloads one message and extracts header metadata plus a
// short plain-text snippet.
func (s *Service) FetchMeta(ctx context.Context, creds usecase.Credentials, providerMessageID string) (*usecase.MessageMeta, error) {
	uid, err := strconv.ParseUint(providerMessageID, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("unusable message uid %q: %v", providerMessageID, err)
	}

	c, err := s.connect(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("unable to select INBOX: %v", err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	if err := c.UidFetch(seqset, items, messages); err != nil {
		return nil, fmt.Errorf("uid fetch failed: %v", err)
	}

	msg := <-messages
	if msg == nil {
		return nil, fmt.Errorf("message uid %d not found", uid)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message uid %d has no body", uid)
	}

	meta := &usecase.MessageMeta{
		ProviderMessageID: providerMessageID,
		ReceivedAt:        msg.InternalDate.UTC(),
		Direction:         messagedomain.DirectionIncoming,
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return nil, fmt.Errorf("unable to parse message uid %d: %v", uid, err)
	}

	if subject, err := mr.Header.Subject(); err == nil {
		meta.Subject = subject
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		meta.Sender = from[0].String()
	}
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		meta.ReceivedAt = date.UTC()
	}

	meta.Snippet = extractSnippet(mr)
	return meta, nil
}

// extractSnippet reads the first inline text part. Parse errors give
// an empty snippet, never a failed fetch.
func extractSnippet(mr *mail.Reader) string {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return ""
		}
		if err != nil {
			log.Printf("[IMAP] Skipping unreadable part: %v", err)
			return ""
		}

		if _, ok := p.Header.(*mail.InlineHeader); !ok {
			continue
		}

		raw, err := io.ReadAll(io.LimitReader(p.Body, 8192))
		if err != nil {
			return ""
		}

		text := strings.Join(strings.Fields(string(raw)), " ")
		runes := []rune(text)
		if len(runes) > snippetMaxRunes {
			text = string(runes[:snippetMaxRunes])
		}
		if text != "" {
			return text
		}
	}
}

// Watch is unsupported: IMAP has no push channel to a Pub/Sub topic.
// IMAP accounts converge through the periodic batched sync instead.
func (s *Service) Watch(ctx context.Context, creds usecase.Credentials, topic string) (*usecase.WatchResult, error) {
	return nil, fmt.Errorf("imap provider does not support change notifications")
}

func (s *Service) Stop(ctx context.Context, creds usecase.Credentials) error {
	return nil
}
