package gmailclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/ingest"
)

// scopes cover reading unread mail, sending replies and clearing the
// UNREAD label.
var scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailModifyScope,
}

// Client implements the mailbox collaborator on top of the Gmail API.
type Client struct {
	svc    *gmail.Service
	logger *zap.Logger
}

// NewClient authenticates with a stored OAuth token. The token must have
// been obtained out of band (credentials.json + token.json, the standard
// installed-app flow).
func NewClient(ctx context.Context, credentialsPath, tokenPath string, logger *zap.Logger) (*Client, error) {
	credentials, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read gmail credentials: %w", err)
	}

	config, err := google.ConfigFromJSON(credentials, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gmail credentials: %w", err)
	}

	tokenData, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read gmail token: %w", err)
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(tokenData, token); err != nil {
		return nil, fmt.Errorf("failed to parse gmail token: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	logger.Info("Gmail client authenticated")
	return &Client{svc: svc, logger: logger}, nil
}

// FetchNewMessages returns up to maxCount unread messages.
func (c *Client) FetchNewMessages(ctx context.Context, maxCount int) ([]ingest.RawMessage, error) {
	list, err := c.svc.Users.Messages.List("me").
		LabelIds("UNREAD").
		MaxResults(int64(maxCount)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	var messages []ingest.RawMessage
	for _, ref := range list.Messages {
		msg, err := c.svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			c.logger.Error("Failed to fetch message details",
				zap.Error(err), zap.String("gmail_id", ref.Id))
			continue
		}
		messages = append(messages, ingest.RawMessage{
			GmailID: msg.Id,
			Subject: header(msg.Payload, "Subject"),
			From:    header(msg.Payload, "From"),
			To:      header(msg.Payload, "To"),
			Body:    extractBody(msg.Payload),
		})
	}

	c.logger.Info("Fetched unread messages", zap.Int("count", len(messages)))
	return messages, nil
}

// SendReply sends an RFC822 reply to the sender of the given message, in
// the same thread.
func (c *Client) SendReply(ctx context.Context, gmailID, body string) error {
	original, err := c.svc.Users.Messages.Get("me", gmailID).Format("metadata").
		MetadataHeaders("Subject", "From", "Message-ID").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to load original message: %w", err)
	}

	to := header(original.Payload, "From")
	subject := header(original.Payload, "Subject")
	messageID := header(original.Payload, "Message-ID")
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var raw strings.Builder
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", subject)
	if messageID != "" {
		fmt.Fprintf(&raw, "In-Reply-To: %s\r\n", messageID)
		fmt.Fprintf(&raw, "References: %s\r\n", messageID)
	}
	raw.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	raw.WriteString("\r\n")
	raw.WriteString(body)

	_, err = c.svc.Users.Messages.Send("me", &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw.String())),
		ThreadId: original.ThreadId,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}

	c.logger.Info("Reply sent", zap.String("gmail_id", gmailID))
	return nil
}

// MarkProcessed removes the UNREAD label so the message is not fetched again.
func (c *Client) MarkProcessed(ctx context.Context, gmailID string) error {
	_, err := c.svc.Users.Messages.Modify("me", gmailID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

func header(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody walks the MIME tree for the first text/plain part.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	for _, part := range payload.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}
	return ""
}

// decodeBody handles both padded and unpadded base64url; the Gmail API
// usually omits padding on Body.Data.
func decodeBody(data string) string {
	if decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(decoded)
	}
	return ""
}
