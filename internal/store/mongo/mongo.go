// Package mongo implements the engine's store interfaces on MongoDB.
// Entities live in one collection per kind, keyed by (owner_id, record_id);
// sync log entries are appended to a dedicated collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldsync/fieldsync/internal/config"
	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
)

const (
	calculationRecordsCollection = "calculation_records"
	parameterSetsCollection      = "parameter_sets"
	syncLogsCollection           = "sync_logs"
)

type entityDoc struct {
	RecordID       string    `bson:"record_id"`
	OwnerID        string    `bson:"owner_id"`
	Payload        bson.M    `bson:"payload"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
	OriginDeviceID string    `bson:"origin_device_id"`
}

type logDoc struct {
	ID           string    `bson:"_id"`
	OwnerID      string    `bson:"owner_id"`
	DeviceID     string    `bson:"device_id"`
	SyncType     string    `bson:"sync_type"`
	RecordCount  int       `bson:"record_count"`
	SyncTime     time.Time `bson:"sync_time"`
	Status       string    `bson:"status"`
	ErrorMessage string    `bson:"error_message,omitempty"`
}

// Store implements coresync.EntityStore and coresync.SyncLogStore on a
// MongoDB database. Per-entity upserts are single-document writes, which
// MongoDB applies atomically.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	_ coresync.EntityStore  = (*Store)(nil)
	_ coresync.SyncLogStore = (*Store)(nil)
)

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout.Std())
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func collectionFor(kind coresync.Kind) (string, error) {
	switch kind {
	case coresync.KindCalculationRecord:
		return calculationRecordsCollection, nil
	case coresync.KindParameterSet:
		return parameterSetsCollection, nil
	default:
		return "", coresync.ErrInvalidKind
	}
}

func (s *Store) Get(ctx context.Context, kind coresync.Kind, ownerID, id string) (*coresync.Entity, error) {
	name, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"owner_id": ownerID, "record_id": id}
	var doc entityDoc
	if err := s.db.Collection(name).FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, coresync.ErrNotFound
		}
		return nil, fmt.Errorf("find %s %q: %w", name, id, err)
	}

	e := fromDoc(doc, kind)
	return &e, nil
}

func (s *Store) Upsert(ctx context.Context, e coresync.Entity) error {
	name, err := collectionFor(e.Kind)
	if err != nil {
		return err
	}

	filter := bson.M{"owner_id": e.OwnerID, "record_id": e.ID}
	update := bson.M{"$set": toDoc(e)}
	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Collection(name).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upsert into %s: %w", name, err)
	}
	return nil
}

func (s *Store) UpdatedSince(ctx context.Context, kind coresync.Kind, ownerID string, since *time.Time) ([]coresync.Entity, error) {
	name, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"owner_id": ownerID}
	if since != nil {
		filter["updated_at"] = bson.M{"$gt": *since}
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}, {Key: "record_id", Value: 1}})

	cursor, err := s.db.Collection(name).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer cursor.Close(ctx)

	var out []coresync.Entity
	for cursor.Next(ctx) {
		var doc entityDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", name, err)
		}
		out = append(out, fromDoc(doc, kind))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, entry coresync.LogEntry) error {
	doc := logDoc{
		ID:           entry.ID,
		OwnerID:      entry.OwnerID,
		DeviceID:     entry.DeviceID,
		SyncType:     string(entry.SyncType),
		RecordCount:  entry.RecordCount,
		SyncTime:     entry.SyncTime,
		Status:       string(entry.Status),
		ErrorMessage: entry.ErrorMessage,
	}
	if _, err := s.db.Collection(syncLogsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", syncLogsCollection, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, f coresync.LogFilter) ([]coresync.LogEntry, int64, error) {
	coll := s.db.Collection(syncLogsCollection)

	filter := bson.M{"owner_id": f.OwnerID}
	if f.DeviceID != "" {
		filter["device_id"] = f.DeviceID
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", syncLogsCollection, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "sync_time", Value: -1}})
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		opts = opts.SetSkip(int64((page - 1) * f.PageSize)).SetLimit(int64(f.PageSize))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("query %s: %w", syncLogsCollection, err)
	}
	defer cursor.Close(ctx)

	var out []coresync.LogEntry
	for cursor.Next(ctx) {
		var doc logDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("decode %s document: %w", syncLogsCollection, err)
		}
		out = append(out, coresync.LogEntry{
			ID:           doc.ID,
			OwnerID:      doc.OwnerID,
			DeviceID:     doc.DeviceID,
			SyncType:     coresync.SyncType(doc.SyncType),
			RecordCount:  doc.RecordCount,
			SyncTime:     doc.SyncTime,
			Status:       coresync.SyncStatus(doc.Status),
			ErrorMessage: doc.ErrorMessage,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s: %w", syncLogsCollection, err)
	}
	return out, total, nil
}

func toDoc(e coresync.Entity) entityDoc {
	return entityDoc{
		RecordID:       e.ID,
		OwnerID:        e.OwnerID,
		Payload:        bson.M(e.Payload),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
		OriginDeviceID: e.OriginDeviceID,
	}
}

func fromDoc(doc entityDoc, kind coresync.Kind) coresync.Entity {
	return coresync.Entity{
		ID:             doc.RecordID,
		OwnerID:        doc.OwnerID,
		Kind:           kind,
		Payload:        coresync.Payload(doc.Payload),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		OriginDeviceID: doc.OriginDeviceID,
	}
}
