// Package mongodb implements the versioned document backend on a MongoDB
// collection: one document per path with a monotonically increasing revision.
// A Put is a conditional replace filtered on the revision the caller last
// observed, which is the token check of the optimistic-concurrency protocol.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clanforge/clan-registry/internal/core/domain"
)

const (
	collectionDocuments = "documents"
	defaultTimeout      = 10 * time.Second
)

// Config captures the minimal settings required to establish a MongoDB
// connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping,
// and returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

type document struct {
	Path     string `bson:"_id"`
	Body     []byte `bson:"body"`
	Revision int64  `bson:"revision"`
}

// Backend stores documents in a single collection keyed by path.
type Backend struct {
	col *mongo.Collection
}

func NewBackend(db *mongo.Database) *Backend {
	return &Backend{col: db.Collection(collectionDocuments)}
}

func (b *Backend) Get(ctx context.Context, path string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc document
	err := b.col.FindOne(ctx, bson.M{"_id": path}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, "", domain.ErrDocumentNotFound
		}
		return nil, "", fmt.Errorf("mongo backend: get %s: %w", path, err)
	}
	return doc.Body, strconv.FormatInt(doc.Revision, 10), nil
}

func (b *Backend) Put(ctx context.Context, path string, content []byte, version string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if version == "" {
		_, err := b.col.InsertOne(ctx, document{Path: path, Body: content, Revision: 1})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				// someone created the document since our Get
				return "", domain.ErrVersionConflict
			}
			return "", fmt.Errorf("mongo backend: insert %s: %w", path, err)
		}
		return "1", nil
	}

	rev, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return "", fmt.Errorf("mongo backend: bad version token %q: %w", version, err)
	}

	res, err := b.col.UpdateOne(ctx,
		bson.M{"_id": path, "revision": rev},
		bson.M{"$set": bson.M{"body": content}, "$inc": bson.M{"revision": 1}},
	)
	if err != nil {
		return "", fmt.Errorf("mongo backend: update %s: %w", path, err)
	}
	if res.MatchedCount == 0 {
		// revision moved on, or the document was deleted: either way the
		// caller's token is stale
		return "", domain.ErrVersionConflict
	}
	return strconv.FormatInt(rev+1, 10), nil
}
