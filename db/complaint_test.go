package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/civicworks/remedy/config"
)

// setupTestDatabase connects to the MongoDB instance named by
// REMEDY_TEST_MONGO_URI, or skips the test when none is configured.
func setupTestDatabase(t *testing.T) (*Database, context.Context) {
	t.Helper()

	uri := os.Getenv("REMEDY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("REMEDY_TEST_MONGO_URI not set; skipping document store tests")
	}

	ctx := context.Background()
	cfg := config.DatabaseConfig{
		URI:                uri,
		Name:               fmt.Sprintf("remedy_test_%d", time.Now().UnixNano()),
		ActiveCollection:   "complaints",
		ResolvedCollection: "resolved_complaints",
	}

	d, err := NewDatabase(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = d.client.Database(cfg.Name).Drop(ctx)
		_ = d.Close(ctx)
	})

	return d, ctx
}

func insertComplaint(t *testing.T, d *Database, ctx context.Context, c *Complaint) bson.ObjectID {
	t.Helper()
	if c.ID.IsZero() {
		c.ID = bson.NewObjectID()
	}
	_, err := d.active.InsertOne(ctx, c)
	require.NoError(t, err)
	return c.ID
}

func TestFindPending(t *testing.T) {
	d, ctx := setupTestDatabase(t)

	// No matching record
	_, err := d.FindPending(ctx)
	assert.ErrorIs(t, err, ErrComplaintNotFound)

	// Unvalidated and already-approved records do not match
	insertComplaint(t, d, ctx, &Complaint{UserEmail: "a@example.com", Status: StatusPending})
	insertComplaint(t, d, ctx, &Complaint{UserEmail: "b@example.com", Validated: true, Approved: true, Status: StatusApproved})
	_, err = d.FindPending(ctx)
	assert.ErrorIs(t, err, ErrComplaintNotFound)

	id := insertComplaint(t, d, ctx, &Complaint{UserEmail: "c@example.com", Validated: true, Status: StatusPending})

	got, err := d.FindPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "c@example.com", got.UserEmail)
}

func TestApprove(t *testing.T) {
	d, ctx := setupTestDatabase(t)

	id := insertComplaint(t, d, ctx, &Complaint{UserEmail: "a@example.com", Validated: true, Status: StatusPending})

	require.NoError(t, d.Approve(ctx, id.Hex()))

	var c Complaint
	require.NoError(t, d.active.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&c))
	assert.True(t, c.Approved)
	assert.Equal(t, StatusApproved, c.Status)
	assert.False(t, c.ApprovalTime.IsZero())

	// Unknown and malformed identifiers
	assert.ErrorIs(t, d.Approve(ctx, bson.NewObjectID().Hex()), ErrComplaintNotFound)
	assert.ErrorIs(t, d.Approve(ctx, "not-a-hex-id"), ErrInvalidComplaintID)
}

func TestResolveIdempotent(t *testing.T) {
	d, ctx := setupTestDatabase(t)

	id := insertComplaint(t, d, ctx, &Complaint{
		UserEmail: "a@example.com",
		Validated: true,
		Approved:  true,
		Status:    StatusApproved,
	})

	moved, err := d.Resolve(ctx, id.Hex())
	require.NoError(t, err)
	assert.True(t, moved)

	// The record is gone from the active collection and present exactly
	// once in the resolved collection with the terminal status.
	activeCount, err := d.active.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	require.NoError(t, err)
	assert.Zero(t, activeCount)

	var resolved Complaint
	require.NoError(t, d.resolved.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&resolved))
	assert.Equal(t, StatusResolved, resolved.Status)
	assert.False(t, resolved.ResolutionTime.IsZero())

	// Resolving again is a no-op, not an error
	moved, err = d.Resolve(ctx, id.Hex())
	require.NoError(t, err)
	assert.False(t, moved)

	resolvedCount, err := d.resolved.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resolvedCount)
}

func TestResolveUnknownID(t *testing.T) {
	d, ctx := setupTestDatabase(t)

	moved, err := d.Resolve(ctx, bson.NewObjectID().Hex())
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = d.Resolve(ctx, "zz")
	assert.ErrorIs(t, err, ErrInvalidComplaintID)
}
