package journal

import (
	"context"
	"fmt"
	"net/url"

	"github.com/creatorstation/radarlcd/internal/db"
	"github.com/creatorstation/radarlcd/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// GormRecorder writes cycles to the fetch_cycles table.
type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(gdb *gorm.DB) (*GormRecorder, error) {
	if err := gdb.AutoMigrate(&models.FetchCycle{}); err != nil {
		return nil, fmt.Errorf("failed to migrate fetch_cycles: %w", err)
	}
	return &GormRecorder{db: gdb}, nil
}

func (r *GormRecorder) Record(ctx context.Context, c Cycle) error {
	row := toModel(c)
	return r.db.WithContext(ctx).Create(&row).Error
}

func toModel(c Cycle) models.FetchCycle {
	return models.FetchCycle{
		ID:         c.ID,
		StartedAt:  c.StartedAt,
		FinishedAt: c.FinishedAt,
		Latest:     c.Latest,
		Fetched:    c.Fetched,
		Reused:     c.Reused,
		Outcome:    string(c.Outcome),
		Error:      c.Error,
	}
}

// MongoRecorder writes cycles to a MongoDB collection.
type MongoRecorder struct {
	collection *mongo.Collection
}

func NewMongoRecorder(collection *mongo.Collection) *MongoRecorder {
	return &MongoRecorder{collection: collection}
}

func (r *MongoRecorder) Record(ctx context.Context, c Cycle) error {
	_, err := r.collection.InsertOne(ctx, c)
	return err
}

// Open returns the recorder for uri: postgres:// and postgresql:// use gorm,
// mongodb:// and mongodb+srv:// use MongoDB, and an empty uri disables the
// journal. The returned close function releases the connection.
func Open(ctx context.Context, uri string) (Recorder, func() error, error) {
	noop := func() error { return nil }
	if uri == "" {
		return Nop{}, noop, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid journal uri: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		gdb, err := db.ConnectPG(uri)
		if err != nil {
			return nil, noop, err
		}
		rec, err := NewGormRecorder(gdb)
		if err != nil {
			return nil, noop, err
		}
		closeFn := func() error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return rec, closeFn, nil

	case "mongodb", "mongodb+srv":
		client, err := db.ConnectMongo(ctx, uri)
		if err != nil {
			return nil, noop, err
		}
		coll := client.Database(db.MongoDatabase).Collection("fetch_cycles")
		return NewMongoRecorder(coll), func() error { return client.Disconnect(context.Background()) }, nil

	default:
		return nil, noop, fmt.Errorf("unsupported journal scheme %q", u.Scheme)
	}
}
