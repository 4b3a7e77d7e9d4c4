// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package augment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	// DefaultWikipediaAPI is the MediaWiki endpoint. {lang} is replaced by the
	// language prefix of the resolved link.
	DefaultWikipediaAPI = "https://{lang}.wikipedia.org/w/api.php"
	// DefaultSPARQLEndpoint is the WikiData query service
	DefaultSPARQLEndpoint = "https://query.wikidata.org/sparql"
	// DefaultRequestsPerSecond limits outgoing requests to both services
	DefaultRequestsPerSecond = 2.0
	// LabelSeparator joins the labels of one item and language
	LabelSeparator = "___"

	defaultUserAgent   = "toponym/1.0 (https://github.com/blinklabs-io/toponym)"
	defaultHTTPTimeout = 60 * time.Second
)

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

var labelQuery = template.Must(template.New("labels").Parse(
	"SELECT ?item ?language " +
		"(group_concat(?label;separator='" + LabelSeparator + "') as ?toponym) " +
		"WHERE { VALUES ?item { {{.Items}} } VALUES ?language { {{.Languages}} } " +
		"?item (rdfs:label|skos:altLabel) ?label " +
		"filter(lang(?label)=?language) } " +
		"GROUP BY ?item ?language",
))

type WikiConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	HTTPClient   *http.Client
	// WikipediaAPI is the MediaWiki API URL, optionally containing {lang}
	WikipediaAPI   string
	SPARQLEndpoint string
	// TitleFile persists resolved titles across runs. Lookups are only
	// memoised in memory when empty.
	TitleFile         string
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
}

// WikiClient talks to Wikipedia and the WikiData query service
type WikiClient struct {
	config  WikiConfig
	logger  *slog.Logger
	client  *http.Client
	limiter *rate.Limiter
	titles  *titleCache
	metrics *wikiMetrics
}

// Labels are the names one item carries in one language
type Labels struct {
	Language string
	Names    []string
}

func NewWikiClient(cfg WikiConfig) *WikiClient {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.WikipediaAPI == "" {
		cfg.WikipediaAPI = DefaultWikipediaAPI
	}
	if cfg.SPARQLEndpoint == "" {
		cfg.SPARQLEndpoint = DefaultSPARQLEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &WikiClient{
		config:  cfg,
		logger:  cfg.Logger.With("component", "wiki"),
		client:  cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		titles:  newTitleCache(cfg.TitleFile),
		metrics: newWikiMetrics(cfg.PromRegistry),
	}
}

// BaseItem resolves a Wikipedia link to its lower-cased WikiData item id.
// Links outside wikipedia.org and pages without an item resolve to "".
func (c *WikiClient) BaseItem(ctx context.Context, link string) (string, error) {
	if !strings.Contains(link, "wikipedia.org") {
		return "", nil
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", link, err)
	}
	title := parsed.Path[strings.LastIndex(parsed.Path, "/")+1:]
	lang, _, _ := strings.Cut(parsed.Hostname(), ".")
	if title == "" || lang == "" {
		return "", nil
	}
	item, found, err := c.titles.get(title)
	if err != nil {
		return "", err
	}
	if found {
		c.metrics.titleLookups.WithLabelValues("cached").Inc()
		return item, nil
	}
	c.metrics.titleLookups.WithLabelValues("fetched").Inc()
	c.logger.Debug("title not cached, fetching", "title", title, "lang", lang)
	query := url.Values{}
	query.Set("action", "query")
	query.Set("prop", "pageprops")
	query.Set("format", "json")
	query.Set("titles", title)
	endpoint := strings.ReplaceAll(c.config.WikipediaAPI, "{lang}", lang)
	var resp struct {
		Query struct {
			Pages map[string]struct {
				PageProps struct {
					WikibaseItem string `json:"wikibase_item"`
				} `json:"pageprops"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.getJSON(ctx, "wikipedia", endpoint+"?"+query.Encode(), &resp); err != nil {
		return "", err
	}
	for _, page := range resp.Query.Pages {
		if page.PageProps.WikibaseItem != "" {
			item = strings.ToLower(page.PageProps.WikibaseItem)
			break
		}
	}
	if err := c.titles.put(title, item); err != nil {
		return "", err
	}
	return item, nil
}

// Names queries the labels and alternative labels of ids in the given
// languages, keyed by lower-cased item id
func (c *WikiClient) Names(
	ctx context.Context,
	ids []string,
	languages []string,
) (map[string][]Labels, error) {
	ret := make(map[string][]Labels)
	if len(ids) == 0 || len(languages) == 0 {
		return ret, nil
	}
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, "wd:"+strings.ToUpper(id))
	}
	langs := make([]string, 0, len(languages))
	for _, lang := range languages {
		langs = append(langs, "'"+lang+"'")
	}
	var sparql strings.Builder
	err := labelQuery.Execute(&sparql, map[string]string{
		"Items":     strings.Join(items, " "),
		"Languages": strings.Join(langs, " "),
	})
	if err != nil {
		return nil, fmt.Errorf("build label query: %w", err)
	}
	query := url.Values{}
	query.Set("query", sparql.String())
	query.Set("format", "json")
	var resp struct {
		Results struct {
			Bindings []struct {
				Item     struct{ Value string } `json:"item"`
				Toponym  struct{ Value string } `json:"toponym"`
				Language struct{ Value string } `json:"language"`
			} `json:"bindings"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, "sparql", c.config.SPARQLEndpoint+"?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	for _, row := range resp.Results.Bindings {
		itemURL := row.Item.Value
		id := strings.ToLower(itemURL[strings.LastIndex(itemURL, "/")+1:])
		names := slices.DeleteFunc(
			strings.Split(row.Toponym.Value, LabelSeparator),
			func(s string) bool { return strings.TrimSpace(s) == "" },
		)
		ret[id] = append(ret[id], Labels{
			Language: strings.ToLower(row.Language.Value),
			Names:    names,
		})
	}
	c.logger.Debug("fetched wikidata labels", "items", len(ids), "found", len(ret))
	return ret, nil
}

func (c *WikiClient) getJSON(ctx context.Context, service string, target string, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.requests.WithLabelValues(service, "error").Inc()
		return fmt.Errorf("%s request: %w", service, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.metrics.requests.WithLabelValues(service, "error").Inc()
		return fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, service, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		c.metrics.requests.WithLabelValues(service, "error").Inc()
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	c.metrics.requests.WithLabelValues(service, "ok").Inc()
	return nil
}
