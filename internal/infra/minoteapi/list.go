package minoteapi

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	minotedomain "github.com/sleroq/minote-sync/internal/domain/minote"
	"github.com/sleroq/minote-sync/internal/infra/transport"
)

type pageResponse struct {
	Data struct {
		Entries []map[string]any `json:"entries"`
		Folders []map[string]any `json:"folders"`
		SyncTag any              `json:"syncTag"`
	} `json:"data"`
}

// List walks the paginated listing until a page comes back empty, the
// continuation token disappears or the page ceiling is reached.
//
// A rejected credential is returned as transport.ErrUnauthorized and the
// collected entries are discarded. Any other failure stops the walk and the
// entries gathered so far are returned with a nil error.
func (c *Client) List(ctx context.Context) ([]minotedomain.NoteEntry, minotedomain.FolderMap, error) {
	folders := minotedomain.NewFolderMap()
	var entries []minotedomain.NoteEntry
	syncTag := ""

	for page := 0; page < c.opts.MaxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn("listing interrupted", "entries", len(entries), "error", err)
			return entries, folders, nil
		}

		var resp pageResponse
		if err := c.getJSON(ctx, c.pageURL(syncTag), &resp); err != nil {
			if errors.Is(err, transport.ErrUnauthorized) {
				return nil, nil, err
			}
			c.logger.Warn("listing stopped early", "page", page+1, "entries", len(entries), "error", err)
			return entries, folders, nil
		}

		for _, f := range resp.Data.Folders {
			folders.Merge(minotedomain.AsString(f["id"]), strings.TrimSpace(minotedomain.AsString(f["subject"])))
		}
		for _, raw := range resp.Data.Entries {
			if entry, ok := parseEntry(raw); ok {
				entries = append(entries, entry)
			}
		}
		c.logger.Info("indexed notes", "page", page+1, "entries", len(entries))

		syncTag = minotedomain.AsString(resp.Data.SyncTag)
		if len(resp.Data.Entries) == 0 || syncTag == "" {
			return entries, folders, nil
		}
	}

	c.logger.Warn("listing reached page ceiling", "pages", c.opts.MaxPages, "entries", len(entries))
	return entries, folders, nil
}

func (c *Client) pageURL(syncTag string) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.opts.PageLimit))
	q.Set("ts", c.timestamp())
	if syncTag != "" {
		q.Set("syncTag", syncTag)
	}
	return c.endpoint("/note/full/page/", q)
}

func parseEntry(raw map[string]any) (minotedomain.NoteEntry, bool) {
	id := strings.TrimSpace(minotedomain.AsString(raw["id"]))
	if id == "" {
		return minotedomain.NoteEntry{}, false
	}
	folderID := strings.TrimSpace(minotedomain.AsString(raw["folderId"]))
	if folderID == "" {
		folderID = minotedomain.DefaultFolderID
	}
	return minotedomain.NoteEntry{
		ID:           id,
		FolderID:     folderID,
		Snippet:      minotedomain.AsString(raw["snippet"]),
		ExtraInfoRaw: rawBlob(raw["extraInfo"]),
		CreatedAtMs:  minotedomain.AsInt64(raw["createDate"]),
		ModifiedAtMs: minotedomain.AsInt64(raw["modifyDate"]),
	}, true
}
