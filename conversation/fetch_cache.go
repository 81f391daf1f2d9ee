package conversation

import (
	"context"
	"sync"

	"github.com/gruzilkin/urmom-bot-sub000/domain"

	"go.uber.org/zap"
)

// historyBulkSize is how many predecessors FetchHistory returns per call;
// the coalesced cache relies on this being large enough that a fully linear
// assembly needs only two bulk calls for 200 messages (see the graph
// property).
const historyBulkSize = 100

// cachedHistoryFetcher wraps a ChatGateway's FetchMessage/FetchHistory in a
// per-build memo: every fetched message by id, and the id -> previous
// message relation derived from each bulk history response. A single bulk
// call populates up to 100 previous-message relations at once, which is why
// a purely linear 200-message chain needs only two bulk calls total.
type cachedHistoryFetcher struct {
	gateway   domain.ChatGateway
	channelID string
	logger    *zap.Logger

	mu          sync.Mutex
	messageByMID map[string]domain.Message
	prevByMID    map[string]domain.Message
}

func newCachedHistoryFetcher(gateway domain.ChatGateway, channelID string, logger *zap.Logger) *cachedHistoryFetcher {
	return &cachedHistoryFetcher{
		gateway:      gateway,
		channelID:    channelID,
		logger:       logger,
		messageByMID: make(map[string]domain.Message),
		prevByMID:    make(map[string]domain.Message),
	}
}

// bulkHistory fetches (or returns the cached) predecessors of messageID,
// newest-first, populating both caches along the way.
func (f *cachedHistoryFetcher) bulkHistory(ctx context.Context, messageID string) ([]domain.Message, error) {
	msgs, err := f.gateway.FetchHistory(ctx, f.channelID, messageID, historyBulkSize)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.messageByMID[m.ID] = m
	}
	for i := 0; i < len(msgs)-1; i++ {
		if _, ok := f.prevByMID[msgs[i].ID]; !ok {
			f.prevByMID[msgs[i].ID] = msgs[i+1]
		}
	}
	if messageID != "" && len(msgs) > 0 {
		f.prevByMID[messageID] = msgs[0]
	}
	return msgs, nil
}

// previousMessage returns the message immediately before id in channel
// order, serving from cache when the relation was already derived from a
// bulk call.
func (f *cachedHistoryFetcher) previousMessage(ctx context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	if prev, ok := f.prevByMID[id]; ok {
		f.mu.Unlock()
		return &prev, nil
	}
	f.mu.Unlock()

	msgs, err := f.bulkHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// messageByID returns a single message, via the individual-message cache
// warmed by bulk fetches, falling back to a direct FetchMessage call.
func (f *cachedHistoryFetcher) messageByID(ctx context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	if m, ok := f.messageByMID[id]; ok {
		f.mu.Unlock()
		return &m, nil
	}
	f.mu.Unlock()

	m, err := f.gateway.FetchMessage(ctx, f.channelID, id)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.messageByMID[m.ID] = m
	f.mu.Unlock()
	return &m, nil
}
