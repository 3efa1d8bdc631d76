package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/go-resty/resty/v2"
)

type apiRequest struct {
	From     string `json:"from"`
	FromName string `json:"from_name,omitempty"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
}

type apiError struct {
	Message string `json:"message"`
}

// APISender posts messages as JSON to an HTTP mail provider.
type APISender struct {
	client   *resty.Client
	url      string
	from     string
	fromName string
}

func NewAPISender(url, apiKey, from, fromName string) *APISender {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &APISender{client: client, url: url, from: from, fromName: fromName}
}

func (s *APISender) Send(ctx context.Context, m Message) error {
	var failure apiError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(apiRequest{From: s.from, FromName: s.fromName, To: m.To, Subject: m.Subject, HTML: m.HTML}).
		SetError(&failure).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrMailNotDelivered, err)
	}
	if resp.IsError() {
		if failure.Message != "" {
			return fmt.Errorf("%w: provider returned %d: %s", common.ErrMailNotDelivered, resp.StatusCode(), failure.Message)
		}
		return fmt.Errorf("%w: provider returned %d", common.ErrMailNotDelivered, resp.StatusCode())
	}
	return nil
}
