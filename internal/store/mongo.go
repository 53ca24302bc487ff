package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
)

// Connect establishes the MongoDB connection with pooled client options
// and verifies it with a ping.
func Connect(ctx context.Context, cfg *config.MongoDBConfig) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	clientOptions.SetMinPoolSize(cfg.MaxPoolSize / 4)
	clientOptions.SetMaxConnIdleTime(30 * time.Minute)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
	clientOptions.SetServerSelectionTimeout(5 * time.Second)
	clientOptions.SetRetryWrites(true)
	clientOptions.SetRetryReads(true)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}

	return client, nil
}

// MongoSessionStore persists sessions in MongoDB
type MongoSessionStore struct {
	collection *mongo.Collection
}

// NewMongoSessionStore creates a session store over the named collection
func NewMongoSessionStore(db *mongo.Database, collection string) *MongoSessionStore {
	return &MongoSessionStore{collection: db.Collection(collection)}
}

// EnsureIndexes creates the uniqueness constraints the session
// invariants rely on: one session per actor, globally unique tokens.
func (s *MongoSessionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "connection_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}

// FindByID returns the session for an actor ID
func (s *MongoSessionStore) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := s.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// FindByToken returns the session owning a connection token
func (s *MongoSessionStore) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := s.collection.FindOne(ctx, bson.M{"connection_token": token}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Insert adds a new session
func (s *MongoSessionStore) Insert(ctx context.Context, session *models.Session) error {
	_, err := s.collection.InsertOne(ctx, session)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrDuplicateKey
	}
	return err
}

// MarkExpired transitions a session to expired
func (s *MongoSessionStore) MarkExpired(ctx context.Context, sessionID string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"status": models.SessionStatusExpired}},
	)
	return err
}

// LinkWallet atomically binds a wallet to a still-pending session. The
// status filter makes the pending→connected transition happen at most
// once regardless of concurrent callers.
func (s *MongoSessionStore) LinkWallet(ctx context.Context, sessionID, walletAddress string, now time.Time) (*models.Session, error) {
	var session models.Session
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"session_id": sessionID, "status": models.SessionStatusPending},
		bson.M{"$set": bson.M{
			"wallet_address": walletAddress,
			"status":         models.SessionStatusConnected,
			"last_used_at":   now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrConflict
		}
		return nil, err
	}
	return &session, nil
}

// Touch updates last_used_at
func (s *MongoSessionStore) Touch(ctx context.Context, sessionID string, now time.Time) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"last_used_at": now}},
	)
	return err
}

// MongoTransactionStore persists pending transactions in MongoDB
type MongoTransactionStore struct {
	collection *mongo.Collection
}

// NewMongoTransactionStore creates a transaction store over the named collection
func NewMongoTransactionStore(db *mongo.Database, collection string) *MongoTransactionStore {
	return &MongoTransactionStore{collection: db.Collection(collection)}
}

// EnsureIndexes creates the tx_id uniqueness constraint and the partial
// unique index over the active (session, recipient, amount) tuple that
// arbitrates concurrent duplicate creation.
func (s *MongoTransactionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tx_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "recipient_address", Value: 1},
				{Key: "amount", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	})
	return err
}

// FindByTxID returns the record for a transaction ID
func (s *MongoTransactionStore) FindByTxID(ctx context.Context, txID string) (*models.PendingTransaction, error) {
	var tx models.PendingTransaction
	err := s.collection.FindOne(ctx, bson.M{"tx_id": txID}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindActive returns the non-terminal record for the tuple
func (s *MongoTransactionStore) FindActive(ctx context.Context, sessionID, recipient string, lamports uint64) (*models.PendingTransaction, error) {
	var tx models.PendingTransaction
	err := s.collection.FindOne(ctx, bson.M{
		"session_id":        sessionID,
		"recipient_address": recipient,
		"amount":            lamports,
		"active":            true,
	}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// Insert adds a new record; the partial unique index rejects a second
// active record for the same tuple.
func (s *MongoTransactionStore) Insert(ctx context.Context, tx *models.PendingTransaction) error {
	_, err := s.collection.InsertOne(ctx, tx)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrDuplicateKey
	}
	return err
}

// UpdateStatus performs a compare-and-set transition. Terminal statuses
// clear the active flag, releasing the tuple for future transfers.
func (s *MongoTransactionStore) UpdateStatus(ctx context.Context, txID string, from, to models.TransactionStatus) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"tx_id": txID, "status": from},
		bson.M{"$set": bson.M{
			"status": to,
			"active": !to.Terminal(),
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, findErr := s.FindByTxID(ctx, txID); errors.Is(findErr, services.ErrNotFound) {
			return services.ErrNotFound
		}
		return services.ErrConflict
	}
	return nil
}

// SetSubmitted transitions signed→submitted recording the signature
func (s *MongoTransactionStore) SetSubmitted(ctx context.Context, txID, signature string) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"tx_id": txID, "status": models.TransactionStatusSigned},
		bson.M{"$set": bson.M{
			"status":    models.TransactionStatusSubmitted,
			"signature": signature,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, findErr := s.FindByTxID(ctx, txID); errors.Is(findErr, services.ErrNotFound) {
			return services.ErrNotFound
		}
		return services.ErrConflict
	}
	return nil
}

// ListSubmitted returns records awaiting reconciliation, oldest first
func (s *MongoTransactionStore) ListSubmitted(ctx context.Context, limit int64) ([]*models.PendingTransaction, error) {
	cursor, err := s.collection.Find(ctx,
		bson.M{"status": models.TransactionStatusSubmitted},
		options.Find().SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txs []*models.PendingTransaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// ExpirePending flags still-pending records past their expiry
func (s *MongoTransactionStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.collection.UpdateMany(ctx,
		bson.M{
			"status":     models.TransactionStatusPending,
			"expires_at": bson.M{"$lt": now},
		},
		bson.M{"$set": bson.M{
			"status": models.TransactionStatusExpired,
			"active": false,
		}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
