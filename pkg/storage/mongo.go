package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/levenlabs/go-lflag"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
)

const (
	collectionStations     = "stations"
	collectionSettings     = "settings"
	collectionProfiles     = "charging_profiles"
	collectionTransactions = "transactions"
	collectionActions      = "action_history"
)

// MongoProvider implements the Database interface using MongoDB. Records
// are stored the same way as in Firestore: a JSON blob plus the fields that
// are queried on.
type MongoProvider struct {
	client   *mongo.Client
	uri      string
	database string
}

var _ Database = (*MongoProvider)(nil)

// mongoDoc is the shape of every document written by MongoProvider.
type mongoDoc struct {
	ID          string    `bson:"_id"`
	StationID   string    `bson:"stationId,omitempty"`
	JSON        string    `bson:"json"`
	Version     int       `bson:"version,omitempty"`
	ProfileID   int       `bson:"profileId,omitempty"`
	ConnectorID int       `bson:"connectorId,omitempty"`
	Timestamp   time.Time `bson:"timestamp,omitempty"`
}

func configuredMongo() *MongoProvider {
	uri := lflag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	database := lflag.String("mongo-database", "chargeplan", "MongoDB database name")

	m := &MongoProvider{}

	lflag.Do(func() {
		m.uri = *uri
		m.database = *database
	})

	return m
}

// Validate checks if the provider is properly configured.
func (m *MongoProvider) Validate() error {
	if m.uri == "" {
		return errors.New("mongo-uri is required")
	}
	if m.database == "" {
		return errors.New("mongo-database is required")
	}
	return nil
}

// Init connects to MongoDB and verifies the connection.
func (m *MongoProvider) Init(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo (database=%s): %w", m.database, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("failed to ping mongo (database=%s): %w", m.database, err)
	}
	m.client = client
	return nil
}

// Close disconnects the client.
func (m *MongoProvider) Close() error {
	if m.client != nil {
		return m.client.Disconnect(context.Background())
	}
	return nil
}

func (m *MongoProvider) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func stationKey(stationID string, id any) string {
	return fmt.Sprintf("%s/%v", stationID, id)
}

func (m *MongoProvider) replace(ctx context.Context, collection string, doc mongoDoc) error {
	_, err := m.collection(collection).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// findOne decodes the JSON blob of the document with id into v. It returns
// false if there is no such document.
func (m *MongoProvider) findOne(ctx context.Context, collection, id string, v any) (mongoDoc, bool, error) {
	var doc mongoDoc
	err := m.collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return mongoDoc{}, false, nil
		}
		return mongoDoc{}, false, fmt.Errorf("failed to find %s %s: %w", collection, id, err)
	}
	if err := json.Unmarshal([]byte(doc.JSON), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal mongo doc", slog.String("collection", collection), slog.String("docID", id), slog.Any("err", err))
		return mongoDoc{}, false, fmt.Errorf("failed to unmarshal %s (id=%s): %w", collection, id, err)
	}
	return doc, true, nil
}

// findAll returns the documents matching filter in the given order.
func (m *MongoProvider) findAll(ctx context.Context, collection string, filter bson.M, sort bson.D) ([]mongoDoc, error) {
	cursor, err := m.collection(collection).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	var docs []mongoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return docs, nil
}

func decodeAll[T any](ctx context.Context, collection string, docs []mongoDoc) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal([]byte(doc.JSON), &v); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal mongo doc", slog.String("collection", collection), slog.String("docID", doc.ID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal %s (id=%s): %w", collection, doc.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// GetStation retrieves a station by id.
func (m *MongoProvider) GetStation(ctx context.Context, stationID string) (types.Station, error) {
	if stationID == "" {
		return types.Station{}, fmt.Errorf("stationID cannot be empty")
	}
	var station types.Station
	_, found, err := m.findOne(ctx, collectionStations, stationID, &station)
	if err != nil {
		return types.Station{}, err
	}
	if !found {
		return types.Station{}, fmt.Errorf("%w: %s", ErrStationNotFound, stationID)
	}
	return station, nil
}

// ListStations retrieves all stations ordered by id.
func (m *MongoProvider) ListStations(ctx context.Context) ([]types.Station, error) {
	docs, err := m.findAll(ctx, collectionStations, bson.M{}, bson.D{{Key: "_id", Value: 1}})
	if err != nil {
		return nil, err
	}
	return decodeAll[types.Station](ctx, collectionStations, docs)
}

// UpsertStation creates or replaces a station.
func (m *MongoProvider) UpsertStation(ctx context.Context, station types.Station) error {
	if station.ID == "" {
		return fmt.Errorf("station id cannot be empty")
	}
	jsonBytes, err := json.Marshal(station)
	if err != nil {
		return fmt.Errorf("failed to marshal station %s: %w", station.ID, err)
	}
	if err := m.replace(ctx, collectionStations, mongoDoc{ID: station.ID, JSON: string(jsonBytes)}); err != nil {
		return fmt.Errorf("failed to upsert station %s: %w", station.ID, err)
	}
	return nil
}

// GetSettings returns the station settings and their version. Missing
// settings return the zero value with version 0.
func (m *MongoProvider) GetSettings(ctx context.Context, stationID string) (types.StationSettings, int, error) {
	if stationID == "" {
		return types.StationSettings{}, 0, fmt.Errorf("stationID cannot be empty")
	}
	var s types.StationSettings
	doc, found, err := m.findOne(ctx, collectionSettings, stationID, &s)
	if err != nil || !found {
		return types.StationSettings{}, 0, err
	}
	return s, doc.Version, nil
}

// SetSettings saves the station settings with their version.
func (m *MongoProvider) SetSettings(ctx context.Context, stationID string, settings types.StationSettings, version int) error {
	if stationID == "" {
		return fmt.Errorf("stationID cannot be empty")
	}
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := m.replace(ctx, collectionSettings, mongoDoc{ID: stationID, JSON: string(jsonBytes), Version: version}); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// ListProfiles returns every installed profile of the station ordered by
// profile id.
func (m *MongoProvider) ListProfiles(ctx context.Context, stationID string) ([]types.InstalledProfile, error) {
	docs, err := m.findAll(ctx, collectionProfiles, bson.M{"stationId": stationID}, bson.D{{Key: "profileId", Value: 1}})
	if err != nil {
		return nil, err
	}
	return decodeAll[types.InstalledProfile](ctx, collectionProfiles, docs)
}

// UpsertProfile stores a profile under its id.
func (m *MongoProvider) UpsertProfile(ctx context.Context, stationID string, profile types.InstalledProfile) error {
	jsonBytes, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal charging profile: %w", err)
	}
	id := profile.Profile.ChargingProfileID
	err = m.replace(ctx, collectionProfiles, mongoDoc{
		ID:          stationKey(stationID, id),
		StationID:   stationID,
		JSON:        string(jsonBytes),
		ProfileID:   id,
		ConnectorID: profile.ConnectorID,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert charging profile %d: %w", id, err)
	}
	return nil
}

// DeleteProfile removes a profile. It returns ErrProfileNotFound if there was
// no such profile.
func (m *MongoProvider) DeleteProfile(ctx context.Context, stationID string, profileID int) error {
	res, err := m.collection(collectionProfiles).DeleteOne(ctx, bson.M{"_id": stationKey(stationID, profileID)})
	if err != nil {
		return fmt.Errorf("failed to delete charging profile %d: %w", profileID, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %d", ErrProfileNotFound, profileID)
	}
	return nil
}

// GetTransaction returns the transaction running on the connector or nil.
func (m *MongoProvider) GetTransaction(ctx context.Context, stationID string, connectorID int) (*types.Transaction, error) {
	var tx types.Transaction
	_, found, err := m.findOne(ctx, collectionTransactions, stationKey(stationID, connectorID), &tx)
	if err != nil || !found {
		return nil, err
	}
	return &tx, nil
}

// ListTransactions returns every running transaction of the station.
func (m *MongoProvider) ListTransactions(ctx context.Context, stationID string) ([]types.Transaction, error) {
	docs, err := m.findAll(ctx, collectionTransactions, bson.M{"stationId": stationID}, bson.D{{Key: "connectorId", Value: 1}})
	if err != nil {
		return nil, err
	}
	return decodeAll[types.Transaction](ctx, collectionTransactions, docs)
}

// SetTransaction stores the transaction as the one running on its connector.
func (m *MongoProvider) SetTransaction(ctx context.Context, stationID string, tx types.Transaction) error {
	jsonBytes, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	err = m.replace(ctx, collectionTransactions, mongoDoc{
		ID:          stationKey(stationID, tx.ConnectorID),
		StationID:   stationID,
		JSON:        string(jsonBytes),
		ConnectorID: tx.ConnectorID,
		Timestamp:   tx.StartedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to set transaction %d: %w", tx.ID, err)
	}
	return nil
}

// DeleteTransaction removes the transaction of the connector, if any.
func (m *MongoProvider) DeleteTransaction(ctx context.Context, stationID string, connectorID int) error {
	if _, err := m.collection(collectionTransactions).DeleteOne(ctx, bson.M{"_id": stationKey(stationID, connectorID)}); err != nil {
		return fmt.Errorf("failed to delete transaction for connector %d: %w", connectorID, err)
	}
	return nil
}

// InsertAction adds a new action record.
func (m *MongoProvider) InsertAction(ctx context.Context, stationID string, action types.Action) error {
	jsonBytes, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}
	err = m.replace(ctx, collectionActions, mongoDoc{
		ID:          stationKey(stationID, actionDocID(action)),
		StationID:   stationID,
		JSON:        string(jsonBytes),
		ConnectorID: action.ConnectorID,
		Timestamp:   action.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// GetActionHistory retrieves action records within [start, end) ordered by
// timestamp.
func (m *MongoProvider) GetActionHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.Action, error) {
	docs, err := m.findAll(ctx, collectionActions, bson.M{
		"stationId": stationID,
		"timestamp": bson.M{"$gte": start, "$lt": end},
	}, bson.D{{Key: "timestamp", Value: 1}, {Key: "connectorId", Value: 1}})
	if err != nil {
		return nil, err
	}
	return decodeAll[types.Action](ctx, collectionActions, docs)
}
