// Package gmail wraps the Gmail API: sending mail, listing and reading
// messages, and managing labels.
package gmail

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/logger"
	"github.com/custodia-labs/gspace/internal/workspace"
)

const (
	// DefaultUser addresses the authenticated account.
	DefaultUser = "me"
	// DefaultMaxResults caps list operations when no limit is given.
	DefaultMaxResults = 100
	// maxPageSize is the largest page the messages.list endpoint returns.
	maxPageSize = 500
	// detailConcurrency bounds parallel batch requests.
	detailConcurrency = 4
	// batchSize is the number of messages fetched per batch request.
	batchSize = 50
)

// Message formats accepted by GetMessage.
const (
	FormatMinimal  = "minimal"
	FormatFull     = "full"
	FormatRaw      = "raw"
	FormatMetadata = "metadata"
)

// Service is a rate-limited Gmail client.
type Service struct {
	api     *gmail.Service
	limiter *workspace.APILimiter
	opts    []option.ClientOption
	log     zerolog.Logger

	httpOnce   sync.Once
	httpClient *http.Client
	httpErr    error
}

// New creates a Gmail service. A nil limiter gets the default Gmail budget.
func New(ctx context.Context, limiter *workspace.APILimiter, opts ...option.ClientOption) (*Service, error) {
	api, err := workspace.NewGmailService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	if limiter == nil {
		limiter = workspace.DefaultAPILimiter(workspace.ServiceGmail)
	}
	return &Service{
		api:     api,
		limiter: limiter,
		opts:    opts,
		log:     logger.WithComponent("gspace.gmail"),
	}, nil
}

// API returns the underlying Gmail client.
func (s *Service) API() *gmail.Service {
	return s.api
}

func user(id string) string {
	if id == "" {
		return DefaultUser
	}
	return id
}

// ListOptions filters ListMessages.
type ListOptions struct {
	UserID           string
	Query            string
	LabelIDs         []string
	MaxResults       int
	IncludeSpamTrash bool
}

// ListMessages returns message stubs (id and thread id), following pages
// until MaxResults messages are collected.
func (s *Service) ListMessages(ctx context.Context, opts ListOptions) ([]*gmail.Message, error) {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	s.log.Info().Int("max_results", limit).Msg("fetching messages")

	var (
		messages  []*gmail.Message
		pageToken string
	)
	for {
		call := s.api.Users.Messages.List(user(opts.UserID)).
			MaxResults(int64(min(limit, maxPageSize))).
			IncludeSpamTrash(opts.IncludeSpamTrash)
		if opts.Query != "" {
			call = call.Q(opts.Query)
		}
		if len(opts.LabelIDs) > 0 {
			call = call.LabelIds(opts.LabelIDs...)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := workspace.Call(ctx, s.limiter, "messages.list", func(ctx context.Context) (*gmail.ListMessagesResponse, error) {
			return call.Context(ctx).Do()
		})
		if err != nil {
			s.log.Error().Err(err).Msg("list messages failed")
			return nil, fmt.Errorf("list messages: %w", err)
		}

		messages = append(messages, resp.Messages...)
		pageToken = resp.NextPageToken
		if pageToken == "" || len(messages) >= limit {
			break
		}
	}

	if len(messages) > limit {
		messages = messages[:limit]
	}
	s.log.Info().Int("count", len(messages)).Msg("fetched messages")
	return messages, nil
}

// SearchMessages lists messages matching a Gmail search query.
func (s *Service) SearchMessages(ctx context.Context, userID, query string, maxResults int) ([]*gmail.Message, error) {
	s.log.Info().Str("query", query).Msg("searching messages")
	return s.ListMessages(ctx, ListOptions{UserID: userID, Query: query, MaxResults: maxResults})
}

// ListMessageDetails lists messages and fetches them in metadata format
// with the given headers, batchSize messages per batch request. Results
// keep the listing order.
func (s *Service) ListMessageDetails(ctx context.Context, opts ListOptions, headers ...string) ([]*gmail.Message, error) {
	stubs, err := s.ListMessages(ctx, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(stubs))
	for i, stub := range stubs {
		ids[i] = stub.Id
	}
	return s.BatchGetMessages(ctx, opts.UserID, ids, headers...)
}

// BatchGetMessages fetches messages in metadata format through batch
// requests. Batches run concurrently and results keep the order of ids.
func (s *Service) BatchGetMessages(ctx context.Context, userID string, ids []string, headers ...string) ([]*gmail.Message, error) {
	if len(headers) == 0 {
		headers = []string{"From", "To", "Subject", "Date"}
	}
	details := make([]*gmail.Message, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		g.Go(func() error {
			return s.fetchBatch(gctx, userID, ids[start:end], headers, details[start:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

func (s *Service) fetchBatch(ctx context.Context, userID string, ids, headers []string, out []*gmail.Message) error {
	batch, err := s.newBatch(ctx)
	if err != nil {
		return err
	}
	query := url.Values{"format": {FormatMetadata}, "metadataHeaders": headers}
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("message id: %w", domain.ErrInvalidInput)
		}
		path := fmt.Sprintf("/gmail/v1/users/%s/messages/%s?%s",
			url.PathEscape(user(userID)), url.PathEscape(id), query.Encode())
		if _, err := batch.AddGet(strconv.Itoa(i), path, nil); err != nil {
			return err
		}
	}

	responses, err := batch.Send(ctx)
	if err != nil {
		return fmt.Errorf("batch get messages: %w", err)
	}
	for _, resp := range responses {
		i, err := strconv.Atoi(resp.RequestID)
		if err != nil || i < 0 || i >= len(ids) {
			s.log.Warn().Str("request_id", resp.RequestID).Msg("unexpected batch response")
			continue
		}
		if err := workspace.BatchResponseError(resp); err != nil {
			return fmt.Errorf("get message %s: %w", ids[i], err)
		}
		msg := new(gmail.Message)
		if err := workspace.DecodeBatchBody(resp, msg); err != nil {
			return fmt.Errorf("decode message %s: %w", ids[i], err)
		}
		out[i] = msg
	}
	for i, msg := range out {
		if msg == nil {
			return fmt.Errorf("get message %s: missing from batch response", ids[i])
		}
	}
	s.log.Debug().Int("count", len(ids)).Msg("fetched message batch")
	return nil
}

// newBatch returns a batch aimed at the Gmail batch endpoint of the
// configured host.
func (s *Service) newBatch(ctx context.Context) (*workspace.Batch, error) {
	s.httpOnce.Do(func() {
		s.httpClient, _, s.httpErr = htransport.NewClient(ctx, s.opts...)
	})
	if s.httpErr != nil {
		return nil, fmt.Errorf("create batch client: %w", s.httpErr)
	}
	endpoint, err := workspace.BatchEndpointAt(workspace.ServiceGmail, s.api.BasePath)
	if err != nil {
		return nil, err
	}
	return workspace.NewBatch(s.httpClient, endpoint, s.limiter, batchSize), nil
}

// GetOptions controls GetMessage.
type GetOptions struct {
	UserID string
	// Format is one of minimal, full, raw or metadata. Defaults to full.
	Format string
	// MetadataHeaders only applies to the metadata format.
	MetadataHeaders []string
}

// GetMessage fetches a single message.
func (s *Service) GetMessage(ctx context.Context, messageID string, opts GetOptions) (*gmail.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id: %w", domain.ErrInvalidInput)
	}
	format := opts.Format
	if format == "" {
		format = FormatFull
	}

	call := s.api.Users.Messages.Get(user(opts.UserID), messageID).Format(format)
	if format == FormatMetadata && len(opts.MetadataHeaders) > 0 {
		call = call.MetadataHeaders(opts.MetadataHeaders...)
	}

	msg, err := workspace.Call(ctx, s.limiter, "messages.get", func(ctx context.Context) (*gmail.Message, error) {
		return call.Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}
	s.log.Debug().Str("message_id", msg.Id).Msg("fetched message")
	return msg, nil
}

// DeleteMessage permanently deletes a message.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	err := s.limiter.Do(ctx, "messages.delete", func(ctx context.Context) error {
		return s.api.Users.Messages.Delete(user(userID), messageID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	s.log.Info().Str("message_id", messageID).Msg("deleted message")
	return nil
}

// ModifyLabels adds and removes labels on a message.
func (s *Service) ModifyLabels(ctx context.Context, userID, messageID string, add, remove []string) (*gmail.Message, error) {
	req := &gmail.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	msg, err := workspace.Call(ctx, s.limiter, "messages.modify", func(ctx context.Context) (*gmail.Message, error) {
		return s.api.Users.Messages.Modify(user(userID), messageID, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("modify labels on %s: %w", messageID, err)
	}
	return msg, nil
}

// ListLabels returns all labels of the mailbox.
func (s *Service) ListLabels(ctx context.Context, userID string) ([]*gmail.Label, error) {
	resp, err := workspace.Call(ctx, s.limiter, "labels.list", func(ctx context.Context) (*gmail.ListLabelsResponse, error) {
		return s.api.Users.Labels.List(user(userID)).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return resp.Labels, nil
}

// LabelOptions describes a new label.
type LabelOptions struct {
	Name string
	// MessageListVisibility is show or hide. Defaults to show.
	MessageListVisibility string
	// LabelListVisibility is labelShow, labelHide or labelShowIfUnread.
	// Defaults to labelShow.
	LabelListVisibility string
}

// CreateLabel creates a user label.
func (s *Service) CreateLabel(ctx context.Context, userID string, opts LabelOptions) (*gmail.Label, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("label name: %w", domain.ErrInvalidInput)
	}
	label := &gmail.Label{
		Name:                  opts.Name,
		MessageListVisibility: opts.MessageListVisibility,
		LabelListVisibility:   opts.LabelListVisibility,
	}
	if label.MessageListVisibility == "" {
		label.MessageListVisibility = "show"
	}
	if label.LabelListVisibility == "" {
		label.LabelListVisibility = "labelShow"
	}

	created, err := workspace.Call(ctx, s.limiter, "labels.create", func(ctx context.Context) (*gmail.Label, error) {
		return s.api.Users.Labels.Create(user(userID), label).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("create label %q: %w", opts.Name, err)
	}
	s.log.Info().Str("label_id", created.Id).Msg("created label")
	return created, nil
}

// DeleteLabel removes a user label.
func (s *Service) DeleteLabel(ctx context.Context, userID, labelID string) error {
	err := s.limiter.Do(ctx, "labels.delete", func(ctx context.Context) error {
		return s.api.Users.Labels.Delete(user(userID), labelID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("delete label %s: %w", labelID, err)
	}
	return nil
}

// GetProfile returns the mailbox profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (*gmail.Profile, error) {
	profile, err := workspace.Call(ctx, s.limiter, "users.getProfile", func(ctx context.Context) (*gmail.Profile, error) {
		return s.api.Users.GetProfile(user(userID)).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}
