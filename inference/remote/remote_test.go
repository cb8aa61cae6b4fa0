package remote

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nvr-ai/yolo-overlay/common"
	"github.com/nvr-ai/yolo-overlay/config"
	"github.com/nvr-ai/yolo-overlay/images"
	"github.com/nvr-ai/yolo-overlay/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Detector
	cfg.Backend = config.BackendRemote
	cfg.RemoteURL = srv.URL
	cfg.Timeout = time.Second
	client, err := New(cfg, models.NewClassSet(models.ModelFamilyCustom, []string{"bullet", "egg"}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDetect(t *testing.T) {
	var got common.DetectRequest
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(common.DetectResponse{
			Detections: []common.WireDetection{
				{X1: 1, Y1: 2, X2: 10, Y2: 12, Conf: 0.9, Cls: 1, Name: "egg"},
				{X1: 3, Y1: 3, X2: 5, Y2: 5, Conf: 0.6, Cls: 0},
				{X1: 3, Y1: 3, X2: 5, Y2: 5, Conf: 0.2, Cls: 0, Name: "bullet"},
			},
			ImgW: 32,
			ImgH: 16,
		})
	})

	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	dets, err := client.Detect(context.Background(), img, 0.5)
	require.NoError(t, err)

	require.NotNil(t, got.Conf)
	assert.Equal(t, 0.5, *got.Conf)
	decoded, err := images.DecodeDataURL(got.Image)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	require.Len(t, dets, 2)
	assert.Equal(t, "egg", dets[0].Name)
	assert.Equal(t, [4]float64{1, 2, 10, 12}, dets[0].Box.V)
	assert.Equal(t, "bullet", dets[1].Name, "missing names come from the class list")
}

func TestDetectErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		contains string
	}{
		{
			name: "json error body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"bad image"}`))
			},
			contains: "bad image",
		},
		{
			name: "plain status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			contains: "502",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"detections":`))
			},
			contains: "decoding response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, tt.handler)
			_, err := client.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), 0.1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:7280", "://nope"} {
		_, err := New(config.Detector{RemoteURL: u}, models.YOLOClasses)
		assert.Error(t, err, u)
	}
}
