package question

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"interviewlab/internal/models"
)

// MongoRepository reads the question bank from a MongoDB collection.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository connects to Mongo and ensures the category index.
func NewMongoRepository(ctx context.Context, uri string) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "interviewlab"
	}
	colName := os.Getenv("QUESTIONS_COLLECTION")
	if colName == "" {
		colName = "questions"
	}

	col := client.Database(dbName).Collection(colName)

	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}, {Key: "difficulty", Value: 1}},
	})

	return &MongoRepository{col: col}, nil
}

type bankQuestion struct {
	ID               string   `bson:"_id"`
	Category         string   `bson:"category"`
	Type             string   `bson:"type"`
	Prompt           string   `bson:"prompt"`
	Difficulty       string   `bson:"difficulty"`
	RequiresCoding   bool     `bson:"requiresCoding"`
	AllowedLanguages []string `bson:"allowedLanguages"`
	DefaultLanguage  string   `bson:"defaultLanguage"`
	TestCaseTemplate string   `bson:"testCaseTemplate"`
}

// ListByCategory retrieves up to limit questions for the category, oldest
// first so the ordering is stable across sessions.
func (r *MongoRepository) ListByCategory(ctx context.Context, category string, limit int) ([]models.Question, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := r.col.Find(ctx, bson.M{"category": category}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query question bank: %w", err)
	}
	defer cur.Close(ctx)

	var raw []bankQuestion
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode question bank: %w", err)
	}

	out := make([]models.Question, 0, len(raw))
	for _, q := range raw {
		out = append(out, models.Question{
			ID:               q.ID,
			Type:             models.QuestionType(q.Type),
			Prompt:           q.Prompt,
			Difficulty:       models.Difficulty(q.Difficulty),
			RequiresCoding:   q.RequiresCoding,
			AllowedLanguages: q.AllowedLanguages,
			DefaultLanguage:  q.DefaultLanguage,
			TestCaseTemplate: q.TestCaseTemplate,
		})
	}
	return out, nil
}
