package minoteapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	minotedomain "github.com/sleroq/minote-sync/internal/domain/minote"
	"github.com/sleroq/minote-sync/internal/infra/transport"
)

type detailResponse struct {
	Data struct {
		Entry map[string]any `json:"entry"`
	} `json:"data"`
}

// Detail fetches one note. A missing or undecodable note yields ok=false
// with a nil error; only unauthorized and cancelled outcomes are returned
// as errors.
func (c *Client) Detail(ctx context.Context, id string) (minotedomain.NoteDetail, bool, error) {
	q := url.Values{}
	q.Set("ts", c.timestamp())
	rawURL := c.endpoint("/note/note/"+url.PathEscape(id)+"/", q)

	var resp detailResponse
	if err := c.getJSON(ctx, rawURL, &resp); err != nil {
		if errors.Is(err, transport.ErrUnauthorized) || errors.Is(err, transport.ErrCancelled) {
			return minotedomain.NoteDetail{}, false, err
		}
		c.logger.Debug("note detail unavailable", "id", id, "error", err)
		return minotedomain.NoteDetail{}, false, nil
	}
	entry := resp.Data.Entry
	if entry == nil {
		return minotedomain.NoteDetail{}, false, nil
	}
	return minotedomain.NoteDetail{
		Content:      minotedomain.AsString(entry["content"]),
		SettingRaw:   rawBlob(entry["setting"]),
		CreatedAtMs:  minotedomain.AsInt64(entry["createDate"]),
		ModifiedAtMs: minotedomain.AsInt64(entry["modifyDate"]),
	}, true, nil
}

// OpenResource requests the attachment id through the given endpoint kind
// and returns the streamed response for the caller to inspect and close.
func (c *Client) OpenResource(ctx context.Context, kind, id string) (*http.Response, error) {
	q := url.Values{}
	q.Set("type", kind)
	q.Set("fileid", strings.TrimSpace(id))
	return c.getter.Get(ctx, c.endpoint("/file/full", q), transport.Options{Stream: true})
}
