package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodbinfra "github.com/lllypuk/taskflow/internal/infrastructure/mongodb"
)

const (
	mongoStartupTimeout = 90 * time.Second
	mongoOpTimeout      = 10 * time.Second
	mongoPingAttempts   = 5
	// database names are limited to 63 bytes
	maxDBNameLength = 40
)

var sharedMongo = &sharedContainer{
	name: "mongodb",
	request: testcontainers.ContainerRequest{
		Image:        "mongo:8",
		Name:         "taskflow-test-mongodb",
		ExposedPorts: []string{"27017/tcp"},
		Env: map[string]string{
			"MONGO_INITDB_ROOT_USERNAME": "admin",
			"MONGO_INITDB_ROOT_PASSWORD": "admin123",
		},
		WaitingFor: wait.ForLog("Waiting for connections").WithStartupTimeout(mongoStartupTimeout),
	},
	reuse:    true,
	port:     "27017/tcp",
	endpoint: func(hostPort string) string { return "mongodb://admin:admin123@" + hostPort },
	timeout:  mongoStartupTimeout,
}

// MongoURI returns the URI of the shared MongoDB container.
func MongoURI(t *testing.T) string {
	t.Helper()
	return sharedMongo.Endpoint(t)
}

// SetupTestMongoDB returns a fresh database, with the application indexes,
// in the shared MongoDB container. It is dropped when the test ends.
func SetupTestMongoDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := mongo.Connect(options.Client().ApplyURI(MongoURI(t)))
	if err != nil {
		t.Fatalf("mongodb connect failed: %v", err)
	}
	if err = pingUntilReady(client); err != nil {
		t.Fatalf("mongodb not ready after %d pings: %v", mongoPingAttempts, err)
	}

	db := client.Database(testDBName(t.Name()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	if err = mongodbinfra.CreateAllIndexes(ctx, db); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}
	return db
}

func pingUntilReady(client *mongo.Client) error {
	var err error
	for attempt := range mongoPingAttempts {
		if attempt > 0 {
			time.Sleep(500 * time.Millisecond)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = client.Ping(ctx, nil)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

var unsafeDBChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// testDBName derives a valid, unique database name from the test name.
func testDBName(testName string) string {
	name := unsafeDBChars.ReplaceAllString(testName, "_")
	if len(name) > maxDBNameLength {
		sum := sha256.Sum256([]byte(testName))
		name = fmt.Sprintf("%s_%s", name[:20], hex.EncodeToString(sum[:6]))
	}
	return "taskflow_test_" + name
}
