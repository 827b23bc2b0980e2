package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/stencilview/stencilview"
	"github.com/stencilview/stencilview/internal/snippet"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	addr := flag.String("addr", "", "listen address (overrides config)")
	snippetDB := flag.String("snippet-db", "", "SQLite file for saved snippets (overrides config)")
	flag.Parse()

	cfg, err := stencilview.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *snippetDB != "" {
		cfg.SnippetDB = *snippetDB
	}

	var store *snippet.Store
	if cfg.SnippetDB != "" {
		store, err = snippet.Open(cfg.SnippetDB)
		if err != nil {
			log.Fatalf("Failed to open snippet store: %v", err)
		}
		defer store.Close()
		log.Printf("Snippet store at %s", cfg.SnippetDB)
	}

	newViewer := func() *stencilview.Viewer {
		return stencilview.NewViewer(
			stencilview.WithMode(cfg.DefaultMode),
			stencilview.WithShowMarkup(cfg.ShowMarkup),
			stencilview.WithAutoRecompute(cfg.AutoRecompute),
			stencilview.WithSnippetStore(store),
		)
	}

	handler := stencilview.NewHandler(newViewer,
		stencilview.WithDebounce(cfg.Debounce()),
		stencilview.WithSessionTTL(cfg.SessionTTL()),
	)

	log.Printf("stencilview listening on http://localhost%s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
