// Package parser imports lesson lists from public cloud folders.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const defaultAPIBase = "https://cloud.mail.ru/api/v2"

var (
	ErrInvalidLink = errors.New("invalid mail.ru public link")
	ErrEmptyFolder = errors.New("no files found in folder")
)

type mailRuResponse struct {
	Body struct {
		List []struct {
			Name string `json:"name"`
			Type string `json:"type"` // video, image, file, folder
			Kind string `json:"kind"` // file, folder
		} `json:"list"`
	} `json:"body"`
}

type LessonDTO struct {
	Title    string
	FileLink string
}

type MailRuParser struct {
	client  *retryablehttp.Client
	apiBase string
	logger  *zap.Logger
}

func NewMailRuParser(logger *zap.Logger) *MailRuParser {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = leveledLogger{logger.Sugar()}

	return &MailRuParser{client: client, apiBase: defaultAPIBase, logger: logger}
}

// ParseFolder lists the files of a public folder as lessons, in the order
// the cloud returns them.
func (p *MailRuParser) ParseFolder(ctx context.Context, publicLink string) ([]LessonDTO, error) {
	_, weblink, ok := strings.Cut(publicLink, "/public/")
	weblink = strings.Trim(weblink, "/")
	if !ok || weblink == "" {
		return nil, ErrInvalidLink
	}

	apiURL := p.apiBase + "/folder?weblink=" + url.QueryEscape(weblink)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch folder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mail.ru api returned status: %d", resp.StatusCode)
	}

	var mr mailRuResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode folder: %w", err)
	}

	base := strings.TrimRight(publicLink, "/")
	var lessons []LessonDTO
	for _, item := range mr.Body.List {
		if item.Kind != "file" && item.Type != "video" && item.Type != "file" {
			continue
		}
		title := item.Name
		if idx := strings.LastIndex(title, "."); idx != -1 {
			title = title[:idx]
		}
		lessons = append(lessons, LessonDTO{
			Title:    title,
			FileLink: base + "/" + item.Name,
		})
	}

	p.logger.Info("cloud folder parsed",
		zap.String("weblink", weblink),
		zap.Int("items", len(mr.Body.List)),
		zap.Int("lessons", len(lessons)),
	)

	if len(lessons) == 0 {
		return nil, ErrEmptyFolder
	}
	return lessons, nil
}

// leveledLogger routes retryablehttp's logging into zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
