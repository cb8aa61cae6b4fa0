// Package remote - Detector backend that delegates to another overlay server over HTTP.
package remote

import (
	"bytes"
	"context"
	"image"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/nvr-ai/yolo-overlay/common"
	"github.com/nvr-ai/yolo-overlay/config"
	"github.com/nvr-ai/yolo-overlay/detector"
	"github.com/nvr-ai/yolo-overlay/images"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/pkg/errors"
)

// maxResponseBytes bounds the decoded /detect response.
const maxResponseBytes = 8 << 20

// Client posts frames to a remote /detect endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	classes  models.OutputClassSet
}

var _ detector.Detector = (*Client)(nil)

// New returns a client for the server at cfg.RemoteURL.
func New(cfg config.Detector, classes models.OutputClassSet) (*Client, error) {
	base, err := url.Parse(cfg.RemoteURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("invalid remote url %q", cfg.RemoteURL)
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cfg.Timeout
	if client.Timeout <= 0 {
		client.Timeout = 10 * time.Second
	}

	return &Client{
		endpoint: base.JoinPath("detect").String(),
		http:     client,
		classes:  classes,
	}, nil
}

// Detect sends img as a JPEG data URL and returns the remote detections. The server
// reports boxes in the pixel space of the decoded image, which matches img.
func (c *Client) Detect(ctx context.Context, img image.Image, minConfidence float32) ([]common.Detection, error) {
	dataURL, err := images.EncodeDataURL(img, images.FormatJPEG)
	if err != nil {
		return nil, err
	}
	conf := float64(minConfidence)
	body, err := json.Marshal(common.DetectRequest{Image: dataURL, Conf: &conf})
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "posting to %s", c.endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if resp.StatusCode != http.StatusOK {
		var failure common.ErrorResponse
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			return nil, errors.Errorf("remote detect failed (%d): %s", resp.StatusCode, failure.Error)
		}
		return nil, errors.Errorf("remote detect failed with status %d", resp.StatusCode)
	}

	var out common.DetectResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decoding response")
	}

	detections := make([]common.Detection, 0, len(out.Detections))
	for _, w := range out.Detections {
		if w.Conf < conf {
			continue
		}
		d := w.Detection()
		if d.Name == "" {
			d.Name = c.classes.Name(w.Cls)
		}
		detections = append(detections, d)
	}
	return detections, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
