package push

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

// Client implements Sender over the gateway's internal callback endpoint.
// The worker uses it to reply on connections owned by the gateway process.
// HTTP 410 maps to domain.ErrGone, everything else non-2xx to a transient
// infrastructure failure.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SendTo(ctx context.Context, connectionID string, data []byte) error {
	url := fmt.Sprintf("%s/%s", c.endpoint, connectionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusGone:
		return domain.ErrGone
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("%w: push callback returned %d", domain.ErrTransient, resp.StatusCode)
	}
}
