package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/polisai/polis-flow/internal/governance"
	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const tickerPlaceholder = "{ticker}"

// maxQuoteBody bounds how much of a quote response is decoded.
const maxQuoteBody = 1 << 20

// HTTPQuotes fetches the latest price of every distinct input ticker from a
// JSON endpoint.
type HTTPQuotes struct {
	runtime.Base
	client      *http.Client
	urlTemplate string
	pricePath   string
	price       func(context.Context, interface{}) (interface{}, error)
	timeout     time.Duration
	concurrency int
	retry       *governance.RetryPolicy
	logger      *slog.Logger
}

// QuotesConfig configures an HTTPQuotes node.
type QuotesConfig struct {
	URL         string // must contain {ticker}
	PricePath   string // JSONPath to the price, default $.price
	Timeout     time.Duration
	Concurrency int
	Retry       governance.RetryConfig
	Client      *http.Client
	Logger      *slog.Logger
}

func quotesFactory(opts Options) engine.Factory {
	return func(spec domain.NodeSpec) (runtime.Node, error) {
		p := paramsOf(spec)
		cfg := QuotesConfig{Retry: opts.Retry, Client: opts.HTTPClient, Logger: opts.Logger}

		var err error
		if cfg.URL, err = p.RequiredString("url"); err != nil {
			return nil, err
		}
		if cfg.PricePath, err = p.String("price_path", "$.price"); err != nil {
			return nil, err
		}
		if cfg.Timeout, err = p.Duration("timeout", 10*time.Second); err != nil {
			return nil, err
		}
		if cfg.Concurrency, err = p.Int("concurrency", 1); err != nil {
			return nil, err
		}
		if cfg.Retry.MaxRetries, err = p.Int("max_retries", cfg.Retry.MaxRetries); err != nil {
			return nil, err
		}
		if cfg.Retry.InitialBackoff, err = p.Duration("backoff", cfg.Retry.InitialBackoff); err != nil {
			return nil, err
		}

		node, err := NewHTTPQuotes(spec.ID, cfg, spec.Output)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: %v", domain.ErrConfigInvalid, spec.ID, err)
		}
		return node, nil
	}
}

// NewHTTPQuotes validates cfg and creates the node.
func NewHTTPQuotes(id domain.NodeID, cfg QuotesConfig, isOutput bool) (*HTTPQuotes, error) {
	if !strings.Contains(cfg.URL, tickerPlaceholder) {
		return nil, fmt.Errorf("url %q has no %s placeholder", cfg.URL, tickerPlaceholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(cfg.URL, tickerPlaceholder, "X")); err != nil {
		return nil, fmt.Errorf("url %q: %w", cfg.URL, err)
	}
	if cfg.PricePath == "" {
		cfg.PricePath = "$.price"
	}
	eval, err := jsonpath.New(cfg.PricePath)
	if err != nil {
		return nil, fmt.Errorf("price_path %q: %w", cfg.PricePath, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &HTTPQuotes{
		Base:        runtime.NewBase(runtime.Spec{ID: id, Kind: KindQuotesHTTP, Input: domain.TypeStrings, Output: domain.TypeQuotes, IsOutput: isOutput}),
		client:      cfg.Client,
		urlTemplate: cfg.URL,
		pricePath:   cfg.PricePath,
		price:       eval,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		retry:       governance.NewRetryPolicy(cfg.Retry),
		logger:      cfg.Logger,
	}, nil
}

func (n *HTTPQuotes) Process(ctx context.Context, input any) (any, error) {
	tickers, err := inputAs[[]string](n, input)
	if err != nil {
		return nil, err
	}

	distinct := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		distinct = append(distinct, t)
	}

	quotes := make(Quotes, len(distinct))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for i, ticker := range distinct {
		i, ticker := i, ticker
		g.Go(func() error {
			price, err := n.fetch(gCtx, ticker)
			if err != nil {
				return err
			}
			quotes[i] = Quote{Ticker: ticker, Price: price}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return quotes, nil
}

func (n *HTTPQuotes) fetch(ctx context.Context, ticker string) (decimal.Decimal, error) {
	addr := strings.ReplaceAll(n.urlTemplate, tickerPlaceholder, url.PathEscape(ticker))

	var price decimal.Decimal
	attempt := 0
	err := n.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		p, err := n.get(ctx, addr)
		if err != nil {
			n.logger.Warn("quote fetch failed",
				"node_id", n.ID(),
				"ticker", ticker,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote %s: %w", ticker, err)
	}
	return price, nil
}

func (n *HTTPQuotes) get(ctx context.Context, addr string) (decimal.Decimal, error) {
	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, addr, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decimal.Zero, &governance.StatusError{Code: resp.StatusCode, URL: addr}
	}

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxQuoteBody))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return decimal.Zero, fmt.Errorf("decode %s: %w", addr, err)
	}

	return n.extract(reqCtx, doc)
}

func (n *HTTPQuotes) extract(ctx context.Context, doc any) (decimal.Decimal, error) {
	val, err := n.price(ctx, doc)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price_path %s: %w", n.pricePath, err)
	}
	// A path may select a list; keep the first match.
	if list, ok := val.([]any); ok {
		if len(list) == 0 {
			return decimal.Zero, fmt.Errorf("price_path %s: no match", n.pricePath)
		}
		val = list[0]
	}
	price, err := toDecimal(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price_path %s: %w", n.pricePath, err)
	}
	return price, nil
}
