package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/civicworks/remedy/logger"
)

// Complaint lifecycle statuses
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusResolved = "Resolved"
)

// Complaint is a pothole complaint record. Records are created by the
// submission pipeline in Pending state with the validated flag set by the
// upstream model; this service only ever flips approved/status fields and
// moves records between collections.
type Complaint struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	UserEmail      string        `bson:"user_email"`
	Contact        string        `bson:"contact,omitempty"`
	Latitude       *float64      `bson:"latitude,omitempty"`
	Longitude      *float64      `bson:"longitude,omitempty"`
	Validated      bool          `bson:"validated"`
	Approved       bool          `bson:"approved"`
	Status         string        `bson:"status"`
	ApprovalTime   time.Time     `bson:"approval_time,omitempty"`
	ResolutionTime time.Time     `bson:"resolution_time,omitempty"`
}

// FindPending returns one validated, not-yet-approved complaint from the
// active collection, in natural store order. Returns ErrComplaintNotFound
// when no record matches.
func (d *Database) FindPending(ctx context.Context) (*Complaint, error) {
	filter := bson.D{
		{Key: "approved", Value: false},
		{Key: "validated", Value: true},
	}

	var c Complaint
	err := d.active.FindOne(ctx, filter).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrComplaintNotFound
		}
		return nil, fmt.Errorf("failed to query pending complaints: %w", err)
	}
	return &c, nil
}

// Approve marks the complaint as approved after its notification has been
// sent. The approved flag must only flip after a confirmed send; callers
// are expected to invoke this on send success and never before.
func (d *Database) Approve(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidComplaintID
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "approved", Value: true},
		{Key: "status", Value: StatusApproved},
		{Key: "approval_time", Value: time.Now()},
	}}}

	result, err := d.active.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("failed to approve complaint %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrComplaintNotFound
	}
	return nil
}

// Resolve moves the complaint from the active collection to the resolved
// collection, stamping status and resolution time. An unknown identifier is
// a no-op, not an error: replies may reference complaints that were already
// resolved or never existed, and a repeated call after success must leave
// the store unchanged.
//
// The move is two operations with no cross-collection transaction. A crash
// between the insert and the delete leaves the record in both collections
// until the next reply for it triggers the delete again.
func (d *Database) Resolve(ctx context.Context, id string) (bool, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrInvalidComplaintID
	}

	var c Complaint
	err = d.active.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up complaint %s: %w", id, err)
	}

	c.Status = StatusResolved
	c.ResolutionTime = time.Now()

	if _, err := d.resolved.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: oid}}, &c,
		options.Replace().SetUpsert(true)); err != nil {
		return false, fmt.Errorf("failed to insert resolved complaint %s: %w", id, err)
	}

	if _, err := d.active.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}}); err != nil {
		// The record now exists in both collections; the next resolution
		// reply for this id retries the delete.
		return false, fmt.Errorf("failed to remove complaint %s from active collection: %w", id, err)
	}

	logger.Info("complaint resolved", "id", id)
	return true, nil
}
