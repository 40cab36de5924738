package recorder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// mjpegClient pulls JPEG frames from a multipart/x-mixed-replace
// stream over HTTP. Reading the service's own stream endpoint keeps
// the recorder decoupled from the capture session: it competes for
// frames like any other client.
type mjpegClient struct {
	resp *http.Response
	mr   *multipart.Reader
	buf  bytes.Buffer
}

func dialMJPEG(ctx context.Context, url string) (*mjpegClient, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint returned %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	return &mjpegClient{
		resp: resp,
		mr:   multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

// nextFrame returns the next JPEG frame. The returned slice is valid
// until the next call.
func (c *mjpegClient) nextFrame() ([]byte, error) {
	part, err := c.mr.NextPart()
	if err != nil {
		return nil, err
	}
	c.buf.Reset()
	_, err = io.Copy(&c.buf, part)
	part.Close()
	if err != nil {
		return nil, err
	}
	return c.buf.Bytes(), nil
}

func (c *mjpegClient) close() {
	c.resp.Body.Close()
}
