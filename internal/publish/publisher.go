// Package publish submits acquired candidates to the downstream ingestion API.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/metrics"
	"github.com/jkmedia/shortscout/internal/shorts"
)

// Config controls the downstream submission.
type Config struct {
	// Endpoint is the ingestion API address. Required; absence is fatal.
	Endpoint string
	// ClientID is the downstream tenant identifier ("cliente").
	ClientID string
	// Timeout bounds one submission round-trip.
	Timeout time.Duration
}

// HTTPPublisher implements shorts.Publisher over a multipart POST. Whatever
// the outcome, both local files are gone when Publish returns.
type HTTPPublisher struct {
	cfg    Config
	client *http.Client
	store  shorts.Store
	clock  shorts.Clock
	logger *zap.Logger
}

// New validates the endpoint up front: a missing address is a configuration
// fault, not something a retry can fix.
func New(cfg Config, store shorts.Store, clock shorts.Clock, logger *zap.Logger) (*HTTPPublisher, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, shorts.ErrEndpointMissing
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &HTTPPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		store:  store,
		clock:  clock,
		logger: logger,
	}, nil
}

// Publish submits the media and thumbnail plus required metadata. A 200
// marks the candidate published; anything else leaves it pending so a later
// run can try again.
func (p *HTTPPublisher) Publish(ctx context.Context, cand shorts.Candidate, acq shorts.Acquisition) (err error) {
	defer p.cleanup(acq)
	defer func() {
		if err != nil {
			metrics.ObservePublish("failed")
		} else {
			metrics.ObservePublish("ok")
		}
	}()

	body, contentType, err := p.buildForm(cand, acq)
	if err != nil {
		return fmt.Errorf("build submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit candidate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Error("submission rejected",
			zap.String("url", cand.URL),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return fmt.Errorf("submission rejected with status %d", resp.StatusCode)
	}

	if err := p.store.MarkPublished(ctx, cand.URL, p.clock.Now().UTC()); err != nil {
		return fmt.Errorf("record publish: %w", err)
	}

	p.logger.Info("candidate published",
		zap.String("url", cand.URL),
		zap.String("partition", cand.Partition.String()),
	)
	return nil
}

func (p *HTTPPublisher) buildForm(cand shorts.Candidate, acq shorts.Acquisition) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := map[string]string{
		"cliente":       p.cfg.ClientID,
		"categoria":     strconv.Itoa(cand.Partition.Category),
		"lingua":        strconv.Itoa(cand.Partition.Language),
		"url_originale": cand.URL,
		"lunghezza":     strconv.Itoa(cand.Duration),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if err := attachFile(w, "file", acq.MediaPath, "video/mp4"); err != nil {
		return nil, "", err
	}
	if err := attachFile(w, "image", acq.ThumbnailPath, "image/jpeg"); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// attachFile adds one file part with an explicit content type; the stock
// CreateFormFile helper hardcodes application/octet-stream.
func attachFile(w *multipart.Writer, field, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", field, err)
	}
	return nil
}

// cleanup removes both artifacts. Runs on every exit path; missing files are
// fine, anything else is logged and swallowed.
func (p *HTTPPublisher) cleanup(acq shorts.Acquisition) {
	for _, path := range []string{acq.MediaPath, acq.ThumbnailPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("failed to remove artifact", zap.String("path", path), zap.Error(err))
		}
	}
}
