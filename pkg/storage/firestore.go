package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// hourlyRecordVersion is written with every record so future layout changes
// can be migrated in place.
const hourlyRecordVersion = 1

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Each plant's records live under plants/{plantID}/hourly, one document per hour.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

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
	// an empty project ID is detected from the environment
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

func (f *FirestoreProvider) hourlyCollection(plantID string) (*firestore.CollectionRef, error) {
	if plantID == "" {
		return nil, fmt.Errorf("plantID cannot be empty")
	}
	return f.client.Collection("plants").Doc(plantID).Collection("hourly"), nil
}

// classify marks errors from an unreachable or overloaded backend as
// ErrDataUnavailable.
func classify(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.NotFound:
		return fmt.Errorf("%w: %w", types.ErrDataUnavailable, err)
	}
	return err
}

func hourlyDocID(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

// UpsertHourlyRecords writes every record as its own document, replacing any
// record already stored for that hour.
func (f *FirestoreProvider) UpsertHourlyRecords(ctx context.Context, plantID string, records []types.HourlyRecord) error {
	coll, err := f.hourlyCollection(plantID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	for _, r := range records {
		if r.Timestamp.IsZero() {
			bw.End()
			return fmt.Errorf("hourly record missing timestamp")
		}
		jsonBytes, err := json.Marshal(r)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to marshal hourly record: %w", err)
		}
		job, err := bw.Set(coll.Doc(hourlyDocID(r.Timestamp)), map[string]interface{}{
			"json":      string(jsonBytes),
			"timestamp": r.Timestamp,
			"version":   hourlyRecordVersion,
		})
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue hourly record %s: %w", hourlyDocID(r.Timestamp), err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to upsert hourly record %s: %w", hourlyDocID(records[i].Timestamp), err)
		}
	}
	log.Ctx(ctx).DebugContext(ctx, "upserted hourly records", slog.String("plantID", plantID), slog.Int("count", len(records)))
	return nil
}

// GetHourlyRecords retrieves hourly records within the specified time range.
func (f *FirestoreProvider) GetHourlyRecords(ctx context.Context, plantID string, start, end time.Time) ([]types.HourlyRecord, error) {
	coll, err := f.hourlyCollection(plantID)
	if err != nil {
		return nil, err
	}
	q := coll.Query
	if !start.IsZero() {
		q = q.Where(firestore.DocumentID, ">=", coll.Doc(hourlyDocID(start.Truncate(time.Hour))))
	}
	if !end.IsZero() {
		q = q.Where(firestore.DocumentID, "<", coll.Doc(hourlyDocID(end.Truncate(time.Hour))))
	}
	iter := q.OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var records []types.HourlyRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating hourly records: %w", classify(err))
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "hourly record doc missing json", slog.String("docID", doc.Ref.ID), slog.String("plantID", plantID), slog.Any("err", err))
			return nil, fmt.Errorf("%w: hourly record doc %s missing 'json' field: %w", types.ErrSchema, doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "hourly record doc json not string", slog.String("docID", doc.Ref.ID), slog.String("plantID", plantID))
			return nil, fmt.Errorf("%w: hourly record doc %s 'json' field is not string", types.ErrSchema, doc.Ref.ID)
		}

		r, err := decodeHourlyRecord(jsonStr)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to decode hourly record", slog.String("docID", doc.Ref.ID), slog.String("plantID", plantID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to decode hourly record (id=%s): %w", doc.Ref.ID, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// decodeHourlyRecord requires every series key to be present. A null value is
// an absent reading, a missing key is a schema problem.
func decodeHourlyRecord(jsonStr string) (types.HourlyRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return types.HourlyRecord{}, fmt.Errorf("%w: %w", types.ErrSchema, err)
	}
	for _, key := range []string{"timestamp", "actualKWH", "predictedKWH", "clearSkyKWH"} {
		if _, ok := fields[key]; !ok {
			return types.HourlyRecord{}, fmt.Errorf("%w: missing key %q", types.ErrSchema, key)
		}
	}
	var r types.HourlyRecord
	if err := json.Unmarshal([]byte(jsonStr), &r); err != nil {
		return types.HourlyRecord{}, fmt.Errorf("%w: %w", types.ErrSchema, err)
	}
	return r, nil
}

// GetLatestHourlyRecordTime retrieves the timestamp of the last stored hourly record.
func (f *FirestoreProvider) GetLatestHourlyRecordTime(ctx context.Context, plantID string) (time.Time, error) {
	coll, err := f.hourlyCollection(plantID)
	if err != nil {
		return time.Time{}, err
	}
	iter := coll.
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest hourly record doc: %w", classify(err))
	}

	ts, err := time.Parse(time.RFC3339, doc.Ref.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hourly record doc id %s: %w", doc.Ref.ID, err)
	}
	return ts, nil
}
