package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"strings"

	nhttp "github.com/chaos-io/imagetools/util/http"
	"go.uber.org/zap"
)

// HTTPProvider 通过 HTTP 调用远端分割服务
type HTTPProvider struct {
	endpoint string
	cli      nhttp.IClient
	logger   *zap.Logger
}

func NewHTTPProvider(endpoint string, cli nhttp.IClient, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{endpoint: endpoint, cli: cli, logger: logger}
}

type detectResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Objects []struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		Mask       string  `json:"mask"`
		Confidence float64 `json:"confidence"`
	} `json:"objects"`
}

/*
	curl -X POST "$ENDPOINT" -F "image=@my_image.png"

{"success": true, "objects": [{"id": "obj1", "name": "Person 1", "mask": "data:image/png;base64,..."}]}
*/
func (h *HTTPProvider) Detect(ctx context.Context, image []byte) ([]Object, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "image")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	_ = writer.Close()

	resp := &detectResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: h.endpoint,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   resp,
	}
	if err := h.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDetectionFailed, err)
	}

	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrDetectionFailed, resp.Message)
	}

	objects := make([]Object, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		mask, err := decodeMask(o.Mask)
		if err != nil {
			return nil, fmt.Errorf("%w: mask of %s: %v", ErrDetectionFailed, o.ID, err)
		}
		objects = append(objects, Object{ID: o.ID, Name: o.Name, Mask: mask, Confidence: o.Confidence})
	}

	h.logger.Debug("objects detected", zap.String("endpoint", h.endpoint), zap.Int("count", len(objects)))
	return objects, nil
}

// decodeMask 支持裸 base64 和 data URL
func decodeMask(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}
