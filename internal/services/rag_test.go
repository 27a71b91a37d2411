package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/shoplens/shoplens-backend/internal/llm"
	"github.com/shoplens/shoplens-backend/internal/retrieval"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	got    []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.got = append(f.got, text)
	return f.vector, f.err
}

type fakeIndex struct {
	matches  []retrieval.Match
	err      error
	gotTopK  int
	upserted [][]retrieval.Item
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int) ([]retrieval.Match, error) {
	f.gotTopK = topK
	return f.matches, f.err
}

func (f *fakeIndex) Upsert(_ context.Context, items []retrieval.Item) error {
	f.upserted = append(f.upserted, items)
	return nil
}

type recordingGateway struct {
	scriptedGateway
	answer     string
	gotContext string
	calls      int
}

func (g *recordingGateway) GenerateFromContext(_ context.Context, _, contextText string) (string, error) {
	g.calls++
	g.gotContext = contextText
	return g.answer, nil
}

func orderMatch(orderID, productID, price, created string) retrieval.Match {
	return retrieval.Match{
		ID:    "order-" + orderID + "-" + productID,
		Score: 0.9,
		Metadata: map[string]interface{}{
			"order_id":   orderID,
			"product_id": productID,
			"price_usd":  price,
			"created_at": created,
		},
	}
}

func newRetrievalFixture(index *fakeIndex, gw llm.Gateway) *RetrievalService {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewRetrievalService(&fakeEmbedder{vector: []float32{0.1, 0.2}}, index, gw, 5, log)
}

func TestAskBuildsContextFromMatches(t *testing.T) {
	index := &fakeIndex{matches: []retrieval.Match{
		orderMatch("1001", "42", "19.99", "2024-01-15"),
		orderMatch("1002", "7", "5.50", "2024-02-01"),
	}}
	gw := &recordingGateway{answer: "Two orders matched."}
	svc := newRetrievalFixture(index, gw)

	answer, matches, err := svc.Ask(context.Background(), "what did order 1001 cost?")
	require.NoError(t, err)
	assert.Equal(t, "Two orders matched.", answer)
	assert.Len(t, matches, 2)
	assert.Equal(t, 5, index.gotTopK)

	assert.Equal(t,
		"Order ID: 1001, Product ID: 42, Price: $19.99, Created: 2024-01-15\n"+
			"Order ID: 1002, Product ID: 7, Price: $5.50, Created: 2024-02-01",
		gw.gotContext)
}

func TestAskWithoutMatchesSkipsGeneration(t *testing.T) {
	index := &fakeIndex{}
	gw := &recordingGateway{answer: "should not be used"}
	svc := newRetrievalFixture(index, gw)

	answer, matches, err := svc.Ask(context.Background(), "anything indexed?")
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find any relevant data to answer your question.", answer)
	assert.Empty(t, matches)
	assert.Zero(t, gw.calls, "no model call without context")
}

func TestAskValidatesQuery(t *testing.T) {
	svc := newRetrievalFixture(&fakeIndex{}, &recordingGateway{})

	_, _, err := svc.Ask(context.Background(), "  ")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestBuildOrderContextSkipsMatchesWithoutMetadata(t *testing.T) {
	matches := []retrieval.Match{
		{ID: "orphan", Score: 0.5},
		orderMatch("2001", "9", "12.00", "2024-03-03"),
	}
	assert.Equal(t,
		"Order ID: 2001, Product ID: 9, Price: $12.00, Created: 2024-03-03",
		retrieval.BuildOrderContext(matches))
}
