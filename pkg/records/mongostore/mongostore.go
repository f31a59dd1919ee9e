package mongostore

/*
 * mongostore reads records from mongodb. Each record type lives in a collection named after
 * its table, keyed by an integer _id. People documents embed their positions.
 */

import (
	"context"
	"fmt"
	"time"

	log "freelaw.courtlistener.cl-update-index/pkg/logging"
	"freelaw.courtlistener.cl-update-index/pkg/records"
	"freelaw.courtlistener.cl-update-index/pkg/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	REMOTE_SERVICE_MONGODB = "MongoDB"
	DEFAULT_DATABASE_NAME  = "courtlistener"
)

type Store struct {
	client   *mongo.Client
	database *mongo.Database
	timeout  time.Duration
}

var _ records.Store = (*Store)(nil)

// NewStore connects to mongodb and pings the primary
func NewStore(ctx context.Context, config records.Config) (records.Store, error) {
	client, err := createMongoDbClient(ctx, config)
	if err != nil {
		return nil, err
	}
	name := config.DatabaseName
	if name == "" {
		name = DEFAULT_DATABASE_NAME
	}
	return &Store{
		client:   client,
		database: client.Database(name),
		timeout:  config.ConnectTimeout(),
	}, nil
}

func createMongoDbClient(ctx context.Context, config records.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout())
	defer cancel()

	clientOptions := options.Client().ApplyURI(config.DSN)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize connection with mongodb: %w: %v", types.ErrStoreUnavailable, err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping failed to connect to mongodb: %w: %v", types.ErrStoreUnavailable, err)
	}
	log.Debugf("connected to %s", REMOTE_SERVICE_MONGODB)
	return client, nil
}

func (m *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func filter(typ records.Type, crit records.Criterion) (bson.D, error) {
	f := bson.D{}
	switch crit.Kind {
	case records.Everything:
	case records.NewerThan:
		op := "$gt"
		if crit.Inclusive {
			op = "$gte"
		}
		f = append(f, bson.E{Key: "date_created", Value: bson.D{{Key: op, Value: crit.Since}}})
	case records.ByIDs:
		f = append(f, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: crit.IDs}}})
	default:
		return nil, fmt.Errorf("selecting %s records by %s: %w", typ, crit.Kind, types.ErrNotImplemented)
	}
	if crit.Canonical && typ == records.People {
		f = append(f, bson.E{Key: "is_alias_of_id", Value: nil})
	}
	return f, nil
}

func (m *Store) Count(ctx context.Context, typ records.Type, crit records.Criterion) (int, error) {
	f, err := filter(typ, crit)
	if err != nil {
		return 0, err
	}
	n, err := m.database.Collection(typ.Table()).CountDocuments(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w: %v", typ, types.ErrStoreUnavailable, err)
	}
	return int(n), nil
}

func (m *Store) Page(ctx context.Context, typ records.Type, crit records.Criterion, afterID int64, limit int) ([]records.Record, error) {
	f, err := pageFilter(typ, crit, afterID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	return m.find(ctx, typ, f, opts)
}

// pageFilter adds the keyset cursor to the criterion's filter. ByIDs already constrains _id, so the
// two are joined with $and rather than merged into one document.
func pageFilter(typ records.Type, crit records.Criterion, afterID int64) (bson.D, error) {
	f, err := filter(typ, crit)
	if err != nil {
		return nil, err
	}
	cursor := bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: afterID}}}}
	if crit.Kind == records.ByIDs {
		return bson.D{{Key: "$and", Value: bson.A{f, cursor}}}, nil
	}
	return append(f, cursor...), nil
}

func (m *Store) Get(ctx context.Context, typ records.Type, ids []int64) ([]records.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	f := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return m.find(ctx, typ, f, opts)
}

func (m *Store) find(ctx context.Context, typ records.Type, f bson.D, opts *options.FindOptions) ([]records.Record, error) {
	cur, err := m.database.Collection(typ.Table()).Find(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w: %v", typ, types.ErrStoreUnavailable, err)
	}
	defer cur.Close(ctx)

	var out []records.Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", typ, err)
		}
		rec, err := toRecord(typ, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w: %v", typ, types.ErrStoreUnavailable, err)
	}
	return out, nil
}

func toRecord(typ records.Type, doc bson.M) (records.Record, error) {
	var id int64
	switch v := doc["_id"].(type) {
	case int64:
		id = v
	case int32:
		id = int64(v)
	case float64:
		id = int64(v)
	default:
		return records.Record{}, fmt.Errorf("%s document without an integer _id: %v", typ.Table(), doc["_id"])
	}

	fields := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		fields[k] = normalize(v)
	}
	fields["id"] = id
	delete(fields, "_id")

	rec := records.Record{ID: id, Type: typ, Fields: fields}
	if dt, ok := doc["date_created"].(primitive.DateTime); ok {
		rec.DateCreated = dt.Time().UTC()
	}
	return rec, nil
}

// normalize converts bson values into plain maps, slices and strings
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	case bson.M:
		m := make(map[string]interface{}, len(t))
		for k, v := range t {
			m[k] = normalize(v)
		}
		return m
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = normalize(v)
		}
		return out
	default:
		return v
	}
}
