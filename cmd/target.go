package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/cdp"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/htmldoc"
)

// target is the page a command operates on: a live URL driven through Chrome
// or a static HTML file.
type target struct {
	URL  string `json:"url,omitempty"`
	HTML string `json:"html,omitempty"`
}

func (t *target) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.URL, "url", "", "page to open in Chrome")
	cmd.Flags().StringVar(&t.HTML, "html", "", "static HTML file to operate on instead of a browser")
}

func (t target) validate() error {
	switch {
	case t.URL == "" && t.HTML == "":
		return errors.New("one of --url or --html is required")
	case t.URL != "" && t.HTML != "":
		return errors.New("--url and --html are mutually exclusive")
	}
	return nil
}

// open returns a driver for the target and a func that releases it.
func (a *app) open(ctx context.Context, t target) (driver.Driver, func(), error) {
	if err := t.validate(); err != nil {
		return nil, nil, err
	}
	if t.HTML != "" {
		doc, err := loadHTML(t.HTML, a.cfg.Resolver().PollInterval)
		if err != nil {
			return nil, nil, err
		}
		return doc, func() {}, nil
	}

	sess, err := cdp.NewSession(ctx, a.cfg.Browser(), a.logger, cdp.WithPollInterval(a.cfg.Resolver().PollInterval))
	if err != nil {
		return nil, nil, err
	}
	if err := sess.Navigate(ctx, t.URL); err != nil {
		_ = sess.Close()
		return nil, nil, err
	}
	return sess.Driver(), func() { _ = sess.Close() }, nil
}

func loadHTML(path string, poll time.Duration) (*htmldoc.Document, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %q: %w", path, err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open HTML file: %w", err)
	}
	defer f.Close()
	return htmldoc.Parse(f, htmldoc.WithPollInterval(poll))
}

// locatorFlags collects the primary locator. Several strategies combine into
// an any-of locator, tried in flag order.
type locatorFlags struct {
	id, css, xpath, script string
}

func (l *locatorFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.id, "id", "", "locate by element id")
	cmd.Flags().StringVar(&l.css, "css", "", "locate by CSS selector")
	cmd.Flags().StringVar(&l.xpath, "xpath", "", "locate by XPath expression")
	cmd.Flags().StringVar(&l.script, "script", "", "locate by JavaScript expression")
}

func (l locatorFlags) locator() (schemas.Locator, error) {
	var locs []schemas.Locator
	if l.id != "" {
		locs = append(locs, schemas.ByID(l.id))
	}
	if l.css != "" {
		locs = append(locs, schemas.ByCSS(l.css))
	}
	if l.xpath != "" {
		locs = append(locs, schemas.ByXPath(l.xpath))
	}
	if l.script != "" {
		locs = append(locs, schemas.ByScript(l.script))
	}

	var loc schemas.Locator
	switch len(locs) {
	case 0:
		return loc, errors.New("a locator is required: --id, --css, --xpath or --script")
	case 1:
		loc = locs[0]
	default:
		loc = schemas.AnyOf(locs...)
	}
	return loc, loc.Validate()
}
