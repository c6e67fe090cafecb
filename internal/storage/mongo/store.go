// Package mongo provides a MongoDB-backed implementation of the storage.Store interface.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/storage"
)

const (
	colInvoices = "invoices"
	colProfiles = "business_profiles"

	// Index names are matched against duplicate-key errors to tell which
	// constraint rejected a write.
	idxInvoiceNumber = "uniq_invoice_number"
	idxProfileOwner  = "uniq_profile_owner"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using MongoDB.
type Store struct {
	client   *mongo.Client
	invoices *mongo.Collection
	profiles *mongo.Collection
}

// New connects to uri, selects database and creates the indexes the store relies on.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		invoices: db.Collection(colInvoices),
		profiles: db.Collection(colProfiles),
	}
	if err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.invoices: {
			{
				Keys:    bson.D{{Key: "invoice_number", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxInvoiceNumber),
			},
			{
				Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}},
			},
		},
		s.profiles: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxProfileOwner),
			},
		},
	}
	for col, idx := range indexes {
		if _, err := col.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col.Name(), err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// isDuplicateOn reports whether err is a duplicate-key error raised by the named index.
func isDuplicateOn(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), index)
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	oid := bson.NewObjectID()
	now := time.Now().Unix()
	if inv.CreatedAt == 0 {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	if _, err := s.invoices.InsertOne(ctx, toInvoiceDoc(inv, oid)); err != nil {
		if isDuplicateOn(err, idxInvoiceNumber) {
			return fmt.Errorf("mongo: create invoice %q: %w", inv.InvoiceNumber, storage.ErrDuplicateInvoiceNumber)
		}
		return fmt.Errorf("mongo: create invoice: %w", err)
	}
	inv.ID = oid.Hex()
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
	}
	return s.findInvoice(ctx, bson.M{"_id": oid})
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return s.findInvoice(ctx, bson.M{"invoice_number": number})
}

func (s *Store) findInvoice(ctx context.Context, filter bson.M) (*models.Invoice, error) {
	var d invoiceDoc
	if err := s.invoices.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("invoice %v: %w", filter, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("mongo: get invoice: %w", err)
	}
	return fromInvoiceDoc(&d), nil
}

func (s *Store) ListInvoices(ctx context.Context, owner string, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	q := invoiceListFilter(owner, filter)
	cur, err := s.invoices.Find(ctx, q,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: list invoices: %w", err)
	}
	var docs []invoiceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode invoices: %w", err)
	}

	result := make([]*models.Invoice, len(docs))
	for i := range docs {
		result[i] = fromInvoiceDoc(&docs[i])
	}
	return result, nil
}

// invoiceListFilter builds the query for ListInvoices. Search terms are quoted
// so they match literally.
func invoiceListFilter(owner string, filter models.InvoiceFilter) bson.M {
	q := bson.M{"owner": owner}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.InvoiceNumber != "" {
		q["invoice_number"] = filter.InvoiceNumber
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"from_email": re},
			bson.M{"client.email": re},
			bson.M{"client.name": re},
			bson.M{"invoice_number": re},
		}
	}
	return q
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *models.Invoice) error {
	oid, err := bson.ObjectIDFromHex(inv.ID)
	if err != nil {
		return fmt.Errorf("invoice %s: %w", inv.ID, storage.ErrNotFound)
	}
	inv.UpdatedAt = time.Now().Unix()

	res, err := s.invoices.ReplaceOne(ctx, bson.M{"_id": oid}, toInvoiceDoc(inv, oid))
	if err != nil {
		if isDuplicateOn(err, idxInvoiceNumber) {
			return fmt.Errorf("mongo: update invoice %q: %w", inv.InvoiceNumber, storage.ErrDuplicateInvoiceNumber)
		}
		return fmt.Errorf("mongo: update invoice: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("invoice %s: %w", inv.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
	}
	res, err := s.invoices.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo: delete invoice: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) InvoiceNumberExists(ctx context.Context, number, excludeID string) (bool, error) {
	filter := bson.M{"invoice_number": number}
	if excludeID != "" {
		if oid, err := bson.ObjectIDFromHex(excludeID); err == nil {
			filter["_id"] = bson.M{"$ne": oid}
		}
	}
	n, err := s.invoices.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: check invoice number: %w", err)
	}
	return n > 0, nil
}

// ==================== Business Profile Store ====================

func (s *Store) CreateProfile(ctx context.Context, p *models.BusinessProfile) error {
	oid := bson.NewObjectID()
	now := time.Now().Unix()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if _, err := s.profiles.InsertOne(ctx, toProfileDoc(p, oid)); err != nil {
		if isDuplicateOn(err, idxProfileOwner) {
			return fmt.Errorf("mongo: create profile for %s: %w", p.Owner, storage.ErrDuplicateProfile)
		}
		return fmt.Errorf("mongo: create profile: %w", err)
	}
	p.ID = oid.Hex()
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.BusinessProfile, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("business profile %s: %w", id, storage.ErrNotFound)
	}
	return s.findProfile(ctx, bson.M{"_id": oid})
}

func (s *Store) GetProfileByOwner(ctx context.Context, owner string) (*models.BusinessProfile, error) {
	return s.findProfile(ctx, bson.M{"owner": owner})
}

func (s *Store) findProfile(ctx context.Context, filter bson.M) (*models.BusinessProfile, error) {
	var d profileDoc
	if err := s.profiles.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("business profile %v: %w", filter, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("mongo: get business profile: %w", err)
	}
	return fromProfileDoc(&d), nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *models.BusinessProfile) error {
	oid, err := bson.ObjectIDFromHex(p.ID)
	if err != nil {
		return fmt.Errorf("business profile %s: %w", p.ID, storage.ErrNotFound)
	}
	p.UpdatedAt = time.Now().Unix()

	res, err := s.profiles.ReplaceOne(ctx, bson.M{"_id": oid}, toProfileDoc(p, oid))
	if err != nil {
		return fmt.Errorf("mongo: update business profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("business profile %s: %w", p.ID, storage.ErrNotFound)
	}
	return nil
}
