package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/restock-alert/restock-alert/internal/config"
	"github.com/restock-alert/restock-alert/internal/page"
	"github.com/restock-alert/restock-alert/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(store.Store) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// loadPage parses a saved storefront page; "-" reads stdin.
func loadPage(path string, stdin io.Reader) (*page.Page, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open page: %w", err)
		}
		defer f.Close()
		r = f
	}
	return page.Parse(r)
}

// merchantResolver layers page globals and inline settings over the
// environment, so a Go host can supply settings the page does not carry.
func merchantResolver(p *page.Page) *config.Resolver {
	if p == nil {
		return config.NewResolver(config.EnvSource{})
	}
	return p.Resolver(config.EnvSource{})
}
