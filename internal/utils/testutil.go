package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const testMongoImage = "mongo:7"

var (
	testMongoOnce sync.Once
	testMongoURI  string
	testMongoErr  error
)

// loadTestEnv loads .env from the project root, falling back to the working directory.
func loadTestEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		_ = godotenv.Load()
	}
}

// startTestMongo runs a throwaway MongoDB container. The testcontainers reaper removes it
// when the test binary exits.
func startTestMongo() (uri string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testMongoImage,
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start mongo container: %w", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve mongo container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		return "", fmt.Errorf("failed to resolve mongo container port: %w", err)
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port()), nil
}

// GetTestMongoURI returns MONGO_URI when set, otherwise the URI of a container started on first use.
func GetTestMongoURI() (string, error) {
	testMongoOnce.Do(func() {
		loadTestEnv()
		if uri := os.Getenv("MONGO_URI"); uri != "" {
			testMongoURI = uri
			return
		}
		testMongoURI, testMongoErr = startTestMongo()
	})
	return testMongoURI, testMongoErr
}

// SetupTestDB connects to the test MongoDB and drops the named collections for a clean state.
// The test is skipped when no MongoDB can be reached.
func SetupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	uri, err := GetTestMongoURI()
	if err != nil {
		t.Skipf("MongoDB not available (set MONGO_URI or start Docker): %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database(dbName)
	for _, c := range collections {
		_ = db.Collection(c).Drop(ctx)
	}
	return db
}
