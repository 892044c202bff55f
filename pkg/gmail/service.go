package gmail

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	messagedomain "mailtask-backend/internal/message/domain"
	"mailtask-backend/internal/sync/usecase"
)

// Service talks to the Gmail API for one OAuth application. It
// implements the mail provider contract with the history id as cursor.
type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback func(accessToken, refreshToken string) error
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t.AccessToken, t.RefreshToken); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// getGmailService creates a Gmail client on the account's tokens.
func (s *Service) getGmailService(ctx context.Context, creds usecase.Credentials) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if creds.RefreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	// Wrap token source to detect refreshes
	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: creds.OnTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// ListMessageIDs lists messages added since the cursor via the history
// API. An empty cursor bootstraps: nothing is listed, only the
// mailbox's current history id is returned so the next call has a
// starting point. A cursor the API no longer remembers re-bootstraps
// the same way.
func (s *Service) ListMessageIDs(ctx context.Context, creds usecase.Credentials, cursor string, maxMessages int) ([]string, string, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, "", err
	}

	if cursor == "" {
		return s.bootstrapCursor(srv)
	}

	startHistoryID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("unusable history cursor %q: %v", cursor, err)
	}

	call := srv.Users.History.List("me").
		StartHistoryId(startHistoryID).
		HistoryTypes("messageAdded").
		Context(ctx)

	var ids []string
	var truncated bool
	seen := map[string]bool{}
	lastConsumed := startHistoryID
	pageToken := ""

	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 404 {
				// The history window moved past our cursor. Restart
				// from the current mailbox state.
				log.Printf("[Gmail] History id %d expired for %s, re-bootstrapping", startHistoryID, creds.Email)
				return s.bootstrapCursor(srv)
			}
			return nil, "", fmt.Errorf("unable to list history: %v", err)
		}

		ids, lastConsumed, truncated = consumeHistory(resp.History, ids, seen, maxMessages, lastConsumed)
		if truncated {
			break
		}
		if resp.NextPageToken == "" {
			// History exhausted; the mailbox head covers everything we
			// listed even when the tail records carried no adds.
			if resp.HistoryId > lastConsumed {
				lastConsumed = resp.HistoryId
			}
			break
		}
		pageToken = resp.NextPageToken
	}

	return ids, strconv.FormatUint(lastConsumed, 10), nil
}

// consumeHistory folds one page of history records into ids, stopping
// at maxMessages. lastConsumed only advances over records whose
// message adds were all taken: a record cut short by the cap keeps the
// cursor at its predecessor, so the truncated remainder is listed
// again next run.
func consumeHistory(records []*gmail.History, ids []string, seen map[string]bool, maxMessages int, lastConsumed uint64) ([]string, uint64, bool) {
	for _, h := range records {
		for _, added := range h.MessagesAdded {
			if added.Message == nil || seen[added.Message.Id] {
				continue
			}
			if len(ids) >= maxMessages {
				return ids, lastConsumed, true
			}
			seen[added.Message.Id] = true
			ids = append(ids, added.Message.Id)
		}
		if h.Id > lastConsumed {
			lastConsumed = h.Id
		}
	}
	return ids, lastConsumed, false
}

func (s *Service) bootstrapCursor(srv *gmail.Service) ([]string, string, error) {
	profile, err := srv.Users.GetProfile("me").Do()
	if err != nil {
		return nil, "", fmt.Errorf("unable to read mailbox profile: %v", err)
	}
	return nil, strconv.FormatUint(profile.HistoryId, 10), nil
}

// FetchMeta retrieves header-level metadata for one message.
func (s *Service) FetchMeta(ctx context.Context, creds usecase.Credentials, providerMessageID string) (*usecase.MessageMeta, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", providerMessageID).
		Format("metadata").
		MetadataHeaders("From", "Subject").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get message %s: %v", providerMessageID, err)
	}

	return &usecase.MessageMeta{
		ProviderMessageID: msg.Id,
		Sender:            getHeader(msg.Payload, "From"),
		Subject:           getHeader(msg.Payload, "Subject"),
		Snippet:           msg.Snippet,
		ReceivedAt:        time.UnixMilli(msg.InternalDate).UTC(),
		Direction:         directionFromLabels(msg.LabelIds),
	}, nil
}

// Watch arms push notifications for the mailbox. Any existing watch is
// stopped first; Gmail allows only one notification client per user.
func (s *Service) Watch(ctx context.Context, creds usecase.Credentials, topic string) (*usecase.WatchResult, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topic,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := srv.Users.Watch("me", req).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to watch mailbox: %v", err)
	}
	log.Printf("[Gmail] Watch started for %s. Expiration: %d, HistoryId: %d", creds.Email, resp.Expiration, resp.HistoryId)

	return &usecase.WatchResult{
		Cursor:     strconv.FormatUint(resp.HistoryId, 10),
		Expiration: strconv.FormatInt(resp.Expiration, 10),
	}, nil
}

// Stop tears down push notifications for the mailbox.
func (s *Service) Stop(ctx context.Context, creds usecase.Credentials) error {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return err
	}

	if err := srv.Users.Stop("me").Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %v", err)
	}
	return nil
}

func getHeader(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, header := range payload.Headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

func directionFromLabels(labels []string) messagedomain.Direction {
	for _, l := range labels {
		switch l {
		case "SENT":
			return messagedomain.DirectionOutgoing
		case "INBOX":
			return messagedomain.DirectionIncoming
		}
	}
	return messagedomain.DirectionUnknown
}
