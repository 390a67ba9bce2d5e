package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// SetMetadata is the provider's description of a set.
type SetMetadata struct {
	SetNo    string  `json:"set_no"`
	Name     string  `json:"name"`
	Year     int     `json:"year,omitempty"`
	Theme    string  `json:"theme,omitempty"`
	NumParts int     `json:"num_parts,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
	WeightG  float64 `json:"weight_g,omitempty"`
}

// Part is one entry of a set's parts list as the provider reports it.
type Part struct {
	PartNo        string `json:"part_no"`
	ColorID       int    `json:"color_id"`
	Qty           int    `json:"qty"`
	Name          string `json:"name,omitempty"`
	IsSpare       bool   `json:"is_spare,omitempty"`
	IsCounterpart bool   `json:"is_counterpart,omitempty"`
}

// SearchResult is a lighter record returned by catalog search.
type SearchResult struct {
	SetNo    string `json:"set_no"`
	Name     string `json:"name"`
	Year     int    `json:"year,omitempty"`
	Theme    string `json:"theme,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Options tunes the Bricklink service; zero values get sane defaults.
type Options struct {
	MetadataTTL  time.Duration // default 24h: set metadata rarely changes
	InventoryTTL time.Duration // default 30m: inventories get re-fetched during audits
	CacheSize    int           // max entries per cache, LRU beyond
}

// Bricklink talks to the Bricklink store API v3 through a signing client.
// Responses are cached in-process under per-kind TTLs; concurrent misses for
// the same key collapse into a single upstream call.
type Bricklink struct {
	client  *OAuthClient
	baseURL string

	metaTTL time.Duration
	invTTL  time.Duration
	meta    *ttlCache
	inv     *ttlCache
	group   singleflight.Group
}

func NewBricklink(client *OAuthClient, baseURL string, opts Options) *Bricklink {
	if opts.MetadataTTL <= 0 {
		opts.MetadataTTL = 24 * time.Hour
	}
	if opts.InventoryTTL <= 0 {
		opts.InventoryTTL = 30 * time.Minute
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 100
	}
	return &Bricklink{
		client:  client,
		baseURL: baseURL,
		metaTTL: opts.MetadataTTL,
		invTTL:  opts.InventoryTTL,
		meta:    newTTLCache(opts.CacheSize),
		// Inventory payloads are larger; keep fewer of them.
		inv: newTTLCache(opts.CacheSize / 2),
	}
}

// envelope is the wrapper Bricklink puts around every response.
type envelope struct {
	Meta struct {
		Code        int    `json:"code"`
		Message     string `json:"message"`
		Description string `json:"description"`
		Page        int    `json:"page"`
		TotalPages  int    `json:"total_pages"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type itemPayload struct {
	No           string  `json:"no"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	YearReleased int     `json:"year_released"`
	CategoryName string  `json:"category_name"`
	ImageURL     string  `json:"image_url"`
	Weight       float64 `json:"weight,string"`
}

type subsetPayload struct {
	Entries []struct {
		Item struct {
			No   string `json:"no"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"item"`
		ColorID       int  `json:"color_id"`
		Quantity      int  `json:"quantity"`
		IsAlternate   bool `json:"is_alternate"`
		IsCounterpart bool `json:"is_counterpart"`
	} `json:"entries"`
}

// FetchSetMetadata returns the provider's metadata for setNo, from cache when
// fresh.
func (b *Bricklink) FetchSetMetadata(ctx context.Context, setNo string) (SetMetadata, error) {
	key := "meta|" + setNo
	if v, ok := b.meta.get(key); ok {
		return v.(SetMetadata), nil
	}
	v, err, _ := b.group.Do(key, func() (any, error) {
		if v, ok := b.meta.get(key); ok {
			return v, nil
		}
		// Collapsed callers share this execution; detach it from the first
		// caller's cancellation. The HTTP client timeout still bounds it.
		ctx := context.WithoutCancel(ctx)
		var env envelope
		err := b.client.Get(ctx, b.baseURL+"/items/SET/"+url.PathEscape(setNo), nil, &env)
		if err != nil {
			return SetMetadata{}, b.convert(err, setNo)
		}
		if err := b.checkMeta(env, setNo); err != nil {
			return SetMetadata{}, err
		}
		var it itemPayload
		if err := json.Unmarshal(env.Data, &it); err != nil {
			return SetMetadata{}, &APIError{Detail: "undecodable set payload"}
		}
		md := SetMetadata{
			SetNo:    it.No,
			Name:     it.Name,
			Year:     it.YearReleased,
			Theme:    it.CategoryName,
			ImageURL: it.ImageURL,
			WeightG:  it.Weight,
		}
		if md.SetNo == "" {
			md.SetNo = setNo
		}
		b.meta.set(key, md, b.metaTTL)
		return md, nil
	})
	if err != nil {
		return SetMetadata{}, err
	}
	return v.(SetMetadata), nil
}

// FetchSetInventory returns every part of the set in provider order,
// concatenating pages when the provider paginates. No merging happens here;
// duplicate part/color entries are the orchestration layer's concern.
func (b *Bricklink) FetchSetInventory(ctx context.Context, setNo string) ([]Part, error) {
	key := "inv|" + setNo
	if v, ok := b.inv.get(key); ok {
		return v.([]Part), nil
	}
	v, err, _ := b.group.Do(key, func() (any, error) {
		if v, ok := b.inv.get(key); ok {
			return v, nil
		}
		parts, err := b.fetchInventoryPages(context.WithoutCancel(ctx), setNo)
		if err != nil {
			return nil, err
		}
		b.inv.set(key, parts, b.invTTL)
		return parts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Part), nil
}

func (b *Bricklink) fetchInventoryPages(ctx context.Context, setNo string) ([]Part, error) {
	var parts []Part
	for page := 1; ; page++ {
		params := url.Values{
			"break_minifigs": {"true"},
			"break_subsets":  {"true"},
		}
		if page > 1 {
			params.Set("page", strconv.Itoa(page))
		}
		var env envelope
		err := b.client.Get(ctx, b.baseURL+"/items/SET/"+url.PathEscape(setNo)+"/subsets", params, &env)
		if err != nil {
			return nil, b.convert(err, setNo)
		}
		if err := b.checkMeta(env, setNo); err != nil {
			return nil, err
		}
		var subsets []subsetPayload
		if err := json.Unmarshal(env.Data, &subsets); err != nil {
			return nil, &APIError{Detail: "undecodable subsets payload"}
		}
		for _, sub := range subsets {
			for _, e := range sub.Entries {
				if e.Item.Type != "PART" {
					continue
				}
				parts = append(parts, Part{
					PartNo:        e.Item.No,
					ColorID:       e.ColorID,
					Qty:           e.Quantity,
					Name:          e.Item.Name,
					IsSpare:       e.IsAlternate,
					IsCounterpart: e.IsCounterpart,
				})
			}
		}
		// Terminate on the local counter, not the echoed page number; a
		// provider that keeps repeating page 1 must not loop us forever.
		if env.Meta.TotalPages == 0 || page >= env.Meta.TotalPages {
			return parts, nil
		}
	}
}

// SearchSets queries the provider catalog. Results are query-specific and
// not cached.
func (b *Bricklink) SearchSets(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{"type": {"SET"}, "q": {query}}
	var env envelope
	err := b.client.Get(ctx, b.baseURL+"/items/SET", params, &env)
	if err != nil {
		return nil, b.convert(err, query)
	}
	if err := b.checkMeta(env, query); err != nil {
		return nil, err
	}
	var items []itemPayload
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, &APIError{Detail: "undecodable search payload"}
	}
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]SearchResult, 0, len(items))
	for _, it := range items {
		out = append(out, SearchResult{
			SetNo:    it.No,
			Name:     it.Name,
			Year:     it.YearReleased,
			Theme:    it.CategoryName,
			ImageURL: it.ImageURL,
		})
	}
	return out, nil
}

// HealthCheck probes the provider with a known catalog item. Returns false
// rather than an error on any failure; deployment health endpoints call this.
func (b *Bricklink) HealthCheck(ctx context.Context) bool {
	var env envelope
	if err := b.client.Get(ctx, b.baseURL+"/items/SET/75192-1", nil, &env); err != nil {
		return false
	}
	// A 200 body can still carry a provider-level error in meta.
	return b.checkMeta(env, "75192-1") == nil
}

// ClearCache drops all cached provider responses.
func (b *Bricklink) ClearCache() {
	b.meta.clear()
	b.inv.clear()
}

// checkMeta maps provider-reported error codes (Bricklink returns some
// failures as 200 with a meta code) onto the taxonomy.
func (b *Bricklink) checkMeta(env envelope, setNo string) error {
	if env.Meta.Code == 0 || env.Meta.Code < 400 {
		return nil
	}
	return b.convert(&statusError{code: env.Meta.Code}, setNo)
}

// convert maps low-level client failures onto the public taxonomy. Raw
// provider payloads and credentials never appear in the result.
func (b *Bricklink) convert(err error, setNo string) error {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusUnauthorized || se.code == http.StatusForbidden:
			return &AuthError{Detail: fmt.Sprintf("provider returned %d", se.code)}
		case se.code == http.StatusNotFound:
			return &NotFoundError{SetNo: setNo}
		case se.code == http.StatusTooManyRequests:
			return &RateLimitError{Detail: "provider throttled after retries"}
		default:
			return &APIError{Detail: fmt.Sprintf("provider returned %d", se.code)}
		}
	}
	var te *transportError
	if errors.As(err, &te) {
		if te.timeout {
			return &TimeoutError{Detail: "no response within deadline"}
		}
		return &APIError{Detail: "connection to provider failed"}
	}
	var bre *badResponseError
	if errors.As(err, &bre) {
		return &APIError{Detail: "provider sent a malformed body"}
	}
	return &APIError{Detail: err.Error()}
}
