package reddit

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	perr "modwatch/internal/platform/errors"
)

// LookupBatch fetches the current state of up to MaxLookup items by fullname
// Ids the origin no longer returns are simply missing from the map
func (c *Client) LookupBatch(ctx context.Context, ids []string) (map[string]map[string]any, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) > MaxLookup {
		return nil, perr.WithField(
			perr.InvalidArgf("lookup batch of %d ids exceeds %d", len(clean), MaxLookup), "ids")
	}
	out := make(map[string]map[string]any, len(clean))
	if len(clean) == 0 {
		return out, nil
	}

	q := url.Values{}
	q.Set("id", strings.Join(clean, ","))
	q.Set("raw_json", "1")
	body, err := c.get(ctx, "/api/info.json", q)
	if err != nil {
		return nil, perr.WithOp(err, "lookup_batch")
	}
	l, err := decodeListing(body, "/api/info.json")
	if err != nil {
		return nil, err
	}
	for _, ch := range l.Data.Children {
		if n := ch.name(); n != "" && ch.Data != nil {
			out[n] = ch.Data
		}
	}
	return out, nil
}

// newestComments returns one page of the subreddit comment listing, newest first
func (c *Client) newestComments(ctx context.Context) ([]thing, error) {
	path := "/r/" + url.PathEscape(c.opts.Subreddit) + "/comments.json"
	q := url.Values{}
	q.Set("limit", strconv.Itoa(MaxLookup))
	q.Set("raw_json", "1")
	body, err := c.get(ctx, path, q)
	if err != nil {
		return nil, perr.WithOp(err, "comments")
	}
	l, err := decodeListing(body, path)
	if err != nil {
		return nil, err
	}
	return l.Data.Children, nil
}

// decodeListing treats an undecodable 200 body as a service fault, the same
// bucket as the html maintenance page
func decodeListing(body []byte, path string) (listing, error) {
	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return listing{}, perr.Wrapf(err, perr.ErrorCodeTransientService, "reddit %s malformed listing", path)
	}
	return l, nil
}
