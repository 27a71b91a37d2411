// Command indexer embeds order records and upserts them into the vector
// index. Batches are pipelined with a single in-flight write slot: the
// embeddings for batch N+1 are computed while the upsert for batch N is on
// the wire, and never more than one upsert is outstanding.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/shoplens/shoplens-backend/internal/config"
	"github.com/shoplens/shoplens-backend/internal/retrieval"
)

type orderItem struct {
	OrderID   json.Number `json:"order_id"`
	ProductID json.Number `json:"product_id"`
	PriceUSD  json.Number `json:"price_usd"`
	CreatedAt string      `json:"created_at"`
}

func main() {
	var (
		dataPath  = flag.String("data", "data/order_items.json", "path to the order items JSON file")
		batchSize = flag.Int("batch", 250, "records per upsert batch")
	)
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	raw, err := os.ReadFile(*dataPath)
	if err != nil {
		log.WithError(err).Fatal("failed to read data file")
	}

	var orders []orderItem
	if err := json.Unmarshal(raw, &orders); err != nil {
		log.WithError(err).Fatal("failed to parse data file")
	}
	if len(orders) == 0 {
		log.Warn("no orders to index")
		return
	}
	log.WithField("orders", len(orders)).Info("loaded order records")

	embedder := retrieval.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Retrieval.EmbeddingModel)
	index, err := retrieval.NewPineconeIndex(cfg.Retrieval.PineconeAPIKey, cfg.Retrieval.PineconeHost, cfg.Retrieval.Namespace)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to vector index")
	}

	ctx := context.Background()

	// pending holds the result of the one in-flight upsert, if any.
	var pending chan error
	awaitPending := func() error {
		if pending == nil {
			return nil
		}
		err := <-pending
		pending = nil
		return err
	}

	indexed := 0
	for start := 0; start < len(orders); start += *batchSize {
		end := start + *batchSize
		if end > len(orders) {
			end = len(orders)
		}

		items, err := embedBatch(ctx, embedder, orders[start:end])
		if err != nil {
			log.WithError(err).Fatal("failed to embed batch")
		}

		if err := awaitPending(); err != nil {
			log.WithError(err).Fatal("failed to upsert batch")
		}

		ch := make(chan error, 1)
		pending = ch
		batch := items
		go func() {
			ch <- index.Upsert(ctx, batch)
		}()

		indexed += len(items)
		log.WithFields(logrus.Fields{
			"indexed": indexed,
			"total":   len(orders),
		}).Info("batch dispatched")
	}

	if err := awaitPending(); err != nil {
		log.WithError(err).Fatal("failed to upsert final batch")
	}

	log.WithField("indexed", indexed).Info("indexing complete")
}

func embedBatch(ctx context.Context, embedder retrieval.Embedder, orders []orderItem) ([]retrieval.Item, error) {
	items := make([]retrieval.Item, 0, len(orders))
	for _, o := range orders {
		text := fmt.Sprintf("Order %s for product %s priced $%s created %s",
			o.OrderID, o.ProductID, o.PriceUSD, o.CreatedAt)

		vector, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed order %s: %w", o.OrderID, err)
		}

		items = append(items, retrieval.Item{
			ID:     fmt.Sprintf("order-%s-%s", o.OrderID, o.ProductID),
			Values: vector,
			Metadata: map[string]interface{}{
				"order_id":   o.OrderID.String(),
				"product_id": o.ProductID.String(),
				"price_usd":  o.PriceUSD.String(),
				"created_at": o.CreatedAt,
			},
		})
	}
	return items, nil
}
