package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Every record is stored as a JSON blob in the "json" field of its
// document under stations/{stationID}.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

var _ Database = (*FirestoreProvider)(nil)

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// the project ID may be inferred from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(stationID, name string) (*firestore.CollectionRef, error) {
	if stationID == "" {
		return nil, fmt.Errorf("stationID cannot be empty")
	}
	return f.client.Collection("stations").Doc(stationID).Collection(name), nil
}

// decodeDoc unmarshals the "json" field of doc into v.
func decodeDoc(ctx context.Context, doc *firestore.DocumentSnapshot, kind string, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, kind+" doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return fmt.Errorf("%s document %s missing 'json' field: %w", kind, doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, kind+" doc json not string", slog.String("docID", doc.Ref.ID))
		return fmt.Errorf("%s document %s 'json' field is not a string", kind, doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal "+kind, slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal %s (id=%s): %w", kind, doc.Ref.ID, err)
	}
	return nil
}

// GetStation retrieves a station from the "stations" collection.
func (f *FirestoreProvider) GetStation(ctx context.Context, stationID string) (types.Station, error) {
	if stationID == "" {
		return types.Station{}, fmt.Errorf("stationID cannot be empty")
	}
	doc, err := f.client.Collection("stations").Doc(stationID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Station{}, fmt.Errorf("%w: %s", ErrStationNotFound, stationID)
		}
		return types.Station{}, fmt.Errorf("failed to get station %s: %w", stationID, err)
	}
	var station types.Station
	if err := decodeDoc(ctx, doc, "station", &station); err != nil {
		return types.Station{}, err
	}
	return station, nil
}

// ListStations retrieves all stations. Malformed documents are skipped.
func (f *FirestoreProvider) ListStations(ctx context.Context) ([]types.Station, error) {
	iter := f.client.Collection("stations").Documents(ctx)
	defer iter.Stop()

	var stations []types.Station
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating stations: %w", err)
		}
		var station types.Station
		if err := decodeDoc(ctx, doc, "station", &station); err != nil {
			continue
		}
		stations = append(stations, station)
	}
	return stations, nil
}

// UpsertStation creates or updates a station document.
func (f *FirestoreProvider) UpsertStation(ctx context.Context, station types.Station) error {
	if station.ID == "" {
		return fmt.Errorf("station id cannot be empty")
	}
	stationJSON, err := json.Marshal(station)
	if err != nil {
		return fmt.Errorf("failed to marshal station %s: %w", station.ID, err)
	}
	_, err = f.client.Collection("stations").Doc(station.ID).Set(ctx, map[string]interface{}{
		"json": string(stationJSON),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to upsert station %s: %w", station.ID, err)
	}
	return nil
}

// GetSettings retrieves the dynamic configuration from the "config/settings" document.
func (f *FirestoreProvider) GetSettings(ctx context.Context, stationID string) (types.StationSettings, int, error) {
	coll, err := f.getCollection(stationID, "config")
	if err != nil {
		return types.StationSettings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Return default settings if not found
			return types.StationSettings{}, 0, nil
		}
		return types.StationSettings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var s types.StationSettings
	if err := decodeDoc(ctx, doc, "settings", &s); err != nil {
		return types.StationSettings{}, 0, err
	}
	return s, version, nil
}

// SetSettings saves the dynamic configuration to the "config/settings" document.
// It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, stationID string, settings types.StationSettings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	coll, err := f.getCollection(stationID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// ListProfiles returns every installed profile of the station ordered by
// profile id.
func (f *FirestoreProvider) ListProfiles(ctx context.Context, stationID string) ([]types.InstalledProfile, error) {
	coll, err := f.getCollection(stationID, "charging_profiles")
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy("profileId", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var profiles []types.InstalledProfile
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating charging profiles: %w", err)
		}
		var p types.InstalledProfile
		if err := decodeDoc(ctx, doc, "charging profile", &p); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// UpsertProfile stores a profile under its id, replacing any previous profile
// with the same id.
func (f *FirestoreProvider) UpsertProfile(ctx context.Context, stationID string, profile types.InstalledProfile) error {
	jsonBytes, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal charging profile: %w", err)
	}
	coll, err := f.getCollection(stationID, "charging_profiles")
	if err != nil {
		return err
	}
	_, err = coll.Doc(strconv.Itoa(profile.Profile.ChargingProfileID)).Set(ctx, map[string]interface{}{
		"json":        string(jsonBytes),
		"profileId":   profile.Profile.ChargingProfileID,
		"connectorId": profile.ConnectorID,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert charging profile %d: %w", profile.Profile.ChargingProfileID, err)
	}
	return nil
}

// DeleteProfile removes a profile. It returns ErrProfileNotFound if there was
// no such profile.
func (f *FirestoreProvider) DeleteProfile(ctx context.Context, stationID string, profileID int) error {
	coll, err := f.getCollection(stationID, "charging_profiles")
	if err != nil {
		return err
	}
	_, err = coll.Doc(strconv.Itoa(profileID)).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %d", ErrProfileNotFound, profileID)
		}
		return fmt.Errorf("failed to delete charging profile %d: %w", profileID, err)
	}
	return nil
}

// GetTransaction returns the transaction running on the connector or nil.
func (f *FirestoreProvider) GetTransaction(ctx context.Context, stationID string, connectorID int) (*types.Transaction, error) {
	coll, err := f.getCollection(stationID, "transactions")
	if err != nil {
		return nil, err
	}
	doc, err := coll.Doc(strconv.Itoa(connectorID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction for connector %d: %w", connectorID, err)
	}
	var tx types.Transaction
	if err := decodeDoc(ctx, doc, "transaction", &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTransactions returns every running transaction of the station.
func (f *FirestoreProvider) ListTransactions(ctx context.Context, stationID string) ([]types.Transaction, error) {
	coll, err := f.getCollection(stationID, "transactions")
	if err != nil {
		return nil, err
	}
	iter := coll.Documents(ctx)
	defer iter.Stop()

	var txs []types.Transaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating transactions: %w", err)
		}
		var tx types.Transaction
		if err := decodeDoc(ctx, doc, "transaction", &tx); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// SetTransaction stores the transaction as the one running on its connector.
func (f *FirestoreProvider) SetTransaction(ctx context.Context, stationID string, tx types.Transaction) error {
	jsonBytes, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	coll, err := f.getCollection(stationID, "transactions")
	if err != nil {
		return err
	}
	_, err = coll.Doc(strconv.Itoa(tx.ConnectorID)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": tx.StartedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to set transaction %d: %w", tx.ID, err)
	}
	return nil
}

// DeleteTransaction removes the transaction of the connector, if any.
func (f *FirestoreProvider) DeleteTransaction(ctx context.Context, stationID string, connectorID int) error {
	coll, err := f.getCollection(stationID, "transactions")
	if err != nil {
		return err
	}
	if _, err := coll.Doc(strconv.Itoa(connectorID)).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete transaction for connector %d: %w", connectorID, err)
	}
	return nil
}

// InsertAction adds a new action record to the "action_history" collection as a JSON blob.
// The document ID starts with the RFC3339 timestamp for efficient range queries.
func (f *FirestoreProvider) InsertAction(ctx context.Context, stationID string, action types.Action) error {
	jsonBytes, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}

	coll, err := f.getCollection(stationID, "action_history")
	if err != nil {
		return err
	}
	_, err = coll.Doc(actionDocID(action)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": action.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// GetActionHistory retrieves action records within the specified time range.
// Uses document ID range queries for efficient filtering without reading all documents.
func (f *FirestoreProvider) GetActionHistory(ctx context.Context, stationID string, start, end time.Time) ([]types.Action, error) {
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	coll, err := f.getCollection(stationID, "action_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var actions []types.Action
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating actions: %w", err)
		}
		var a types.Action
		if err := decodeDoc(ctx, doc, "action", &a); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}
