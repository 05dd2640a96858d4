package draftsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/internal/dto"
	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

// RemoteConfig points the client at the draft API.
type RemoteConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	RetryCount  int
	RetryWait   time.Duration
}

type draftEnvelope struct {
	Data  *models.Draft    `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// RemoteStore talks to the server-side draft endpoints over HTTP.
type RemoteStore struct {
	client *resty.Client
	logger *zap.Logger
}

// NewRemoteStore builds a resty client for the draft API. Server errors and transport
// failures are retried; client errors are not.
func NewRemoteStore(cfg RemoteConfig, logger *zap.Logger) *RemoteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 200 * time.Millisecond
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(4 * cfg.RetryWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.AccessToken != "" {
		client.SetAuthToken(cfg.AccessToken)
	}
	return &RemoteStore{client: client, logger: logger.With(zap.String("component", "draft_remote_store"))}
}

// Load fetches the owner's draft. A missing draft is ErrNotFound.
func (s *RemoteStore) Load(ctx context.Context) (*Snapshot, error) {
	var result, failure draftEnvelope
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&failure).
		Get("/drafts/me")
	if err := s.classify("load", resp, err, &failure); err != nil {
		return nil, err
	}
	return fromDraft(result.Data)
}

// Save sends snap. The server may answer with a newer draft when snap is stale.
func (s *RemoteStore) Save(ctx context.Context, snap Snapshot) (*Snapshot, error) {
	var result, failure draftEnvelope
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dto.SaveDraftRequest{CurrentStep: snap.CurrentStep, DraftData: snap.DraftData, Revision: snap.Revision}).
		SetResult(&result).
		SetError(&failure).
		Put("/drafts/me")
	if err := s.classify("save", resp, err, &failure); err != nil {
		return nil, err
	}
	return fromDraft(result.Data)
}

// Delete removes the owner's draft. Deleting a missing draft succeeds.
func (s *RemoteStore) Delete(ctx context.Context) error {
	var failure draftEnvelope
	resp, err := s.client.R().
		SetContext(ctx).
		SetError(&failure).
		Delete("/drafts/me")
	if err := s.classify("delete", resp, err, &failure); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *RemoteStore) classify(op string, resp *resty.Response, err error, failure *draftEnvelope) error {
	if err != nil {
		s.logger.Warn("draft request failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= http.StatusInternalServerError:
		s.logger.Warn("draft store error", zap.String("op", op), zap.Int("status", status))
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, status)
	case resp.IsError():
		if failure.Error != nil {
			return failure.Error
		}
		return appErrors.New("REMOTE_ERROR", status, fmt.Sprintf("draft %s rejected with status %d", op, status))
	}
	return nil
}

func fromDraft(d *models.Draft) (*Snapshot, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: empty draft response", ErrUnavailable)
	}
	return &Snapshot{
		CurrentStep: d.CurrentStep,
		DraftData:   d.DraftData,
		Revision:    d.Revision,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}
