package cms

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cms-downloader/internal/components/chrono"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errPageNotFound = errors.New("page not found in cache")

type cachedPage struct {
	Contents  []byte
	ExpiresAt int64
}

// PageCache keeps fetched pages in badger so repeated runs do not refetch
// course pages that have not had time to change.
type PageCache struct {
	db    *badger.DB
	host  *url.URL
	clock chrono.API
}

// OpenPageCache opens a badger database under `dir`, an empty `dir` opens an
// in-memory cache.
func OpenPageCache(dir string, host *url.URL, clock chrono.API) (*PageCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open page cache: %w", err)
	}
	return &PageCache{db: db, host: host, clock: clock}, nil
}

func (c *PageCache) Close() error {
	return c.db.Close()
}

const cacheUrlFlags = purell.FlagsSafe |
	purell.FlagRemoveDotSegments |
	purell.FlagRemoveDuplicateSlashes |
	purell.FlagRemoveFragment |
	purell.FlagSortQuery

func (c *PageCache) key(clientId, endpoint string) (string, error) {
	full, err := c.host.Parse(endpoint)
	if err != nil {
		return "", err
	}
	normalized := purell.NormalizeURL(full, cacheUrlFlags)
	return clientId + ":" + normalized, nil
}

func (c *PageCache) Get(ctx context.Context, clientId, endpoint string) ([]byte, error) {
	_, span := tracer.Start(ctx, "cache:get")
	defer span.End()

	key, err := c.key(clientId, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return nil, err
	}
	span.SetAttributes(attribute.String("custom.cache_key", key))

	var serialized []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		serialized, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errPageNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return nil, err
	}

	var page cachedPage
	err = gob.NewDecoder(bytes.NewBuffer(serialized)).Decode(&page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached item")
		return nil, err
	}

	if c.clock.Now().Unix() >= page.ExpiresAt {
		err = c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		})
		if err != nil {
			span.RecordError(err)
		}
		return nil, errPageNotFound
	}

	span.SetAttributes(attribute.Int("custom.contentlength", len(page.Contents)))
	return page.Contents, nil
}

func (c *PageCache) Set(ctx context.Context, clientId, endpoint string, contents []byte, lifetime time.Duration) error {
	_, span := tracer.Start(ctx, "cache:set")
	defer span.End()

	key, err := c.key(clientId, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}
	span.SetAttributes(attribute.String("custom.cache_key", key))

	serialized := bytes.NewBuffer(nil)
	err = gob.NewEncoder(serialized).Encode(cachedPage{
		Contents:  contents,
		ExpiresAt: c.clock.Now().Add(lifetime).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize webpage")
		return err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), serialized.Bytes()).WithTTL(lifetime))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set badger item")
		return err
	}
	return nil
}
