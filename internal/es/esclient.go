package es

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/storefront/pkg/config"
)

var ErrDisabled = errors.New("elasticsearch not configured")

// NewClient connects to the cluster in cfg and checks it answers.
func NewClient(ctx context.Context, cfg config.ES, log *slog.Logger) (*elasticsearch.Client, error) {
	if cfg.URL == "" {
		return nil, ErrDisabled
	}
	log.Info("es_connect", "url", cfg.URL, "user", cfg.User)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		log.Error("es_connect_error", "status", res.StatusCode, "body", string(body))
		return nil, fmt.Errorf("elasticsearch error: %s", res.Status())
	}

	log.Info("es_connected")
	return client, nil
}
