package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// Collection names.
const (
	collUsers    = "users"
	collOrders   = "orders"
	collProducts = "products"
)

// Mongo bundles the store implementations over one client.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials MongoDB, verifies the connection and prepares the
// indexes the stores rely on.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(database)}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Users returns the user store.
func (m *Mongo) Users() UserStore { return &mongoUsers{coll: m.db.Collection(collUsers)} }

// Orders returns the order store.
func (m *Mongo) Orders() OrderStore {
	return &mongoOrders{client: m.client, coll: m.db.Collection(collOrders)}
}

// Products returns the product store.
func (m *Mongo) Products() ProductStore {
	return &mongoProducts{coll: m.db.Collection(collProducts)}
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	// Unique email for identities; unique gateway payment reference for
	// orders (the payment-confirmation idempotency key).
	_, err := m.db.Collection(collUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	_, err = m.db.Collection(collOrders).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "razorpayPaymentId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create orders payment index: %w", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return apperr.Wrap(apperr.UpstreamUnavailable, "database unavailable", fmt.Errorf("%s: %w", op, err))
}

type mongoUsers struct {
	coll *mongo.Collection
}

func (s *mongoUsers) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateUser
		}
		return unavailable("insert user", err)
	}
	return nil
}

func (s *mongoUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var user models.User
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, unavailable("find user by id", err)
	}
	return &user, nil
}

func (s *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, unavailable("find user by email", err)
	}
	return &user, nil
}

func (s *mongoUsers) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	filter := bson.M{"$or": bson.A{bson.M{"email": email}, bson.M{"username": username}}}
	count, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, unavailable("count users", err)
	}
	return count > 0, nil
}

type mongoOrders struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (s *mongoOrders) CreateTx(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return unavailable("start session", err)
	}
	defer sess.EndSession(ctx)

	// The insert is the only statement in the transaction; any failure
	// aborts it so no partial order persists.
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return s.coll.InsertOne(sc, order)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePayment
		}
		return unavailable("insert order", err)
	}
	return nil
}

func (s *mongoOrders) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	if err := s.coll.FindOne(ctx, bson.M{"razorpayPaymentId": paymentID}).Decode(&order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, unavailable("find order by payment id", err)
	}
	return &order, nil
}

func (s *mongoOrders) MarkRefunded(ctx context.Context, paymentID, refundID string) (*models.Order, error) {
	update := bson.M{"$set": bson.M{"status": models.OrderRefunded, "refundId": refundID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"razorpayPaymentId": paymentID}, update, opts).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, unavailable("mark order refunded", err)
	}
	return &order, nil
}

type mongoProducts struct {
	coll *mongo.Collection
}

func (s *mongoProducts) All(ctx context.Context) ([]models.Product, error) {
	return s.list(ctx, bson.M{})
}

func (s *mongoProducts) Featured(ctx context.Context) ([]models.Product, error) {
	return s.list(ctx, bson.M{"isFeatured": true})
}

func (s *mongoProducts) list(ctx context.Context, filter bson.M) ([]models.Product, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, unavailable("find products", err)
	}
	defer cur.Close(ctx)

	products := []models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, unavailable("decode products", err)
	}
	return products, nil
}

func (s *mongoProducts) FindByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var product models.Product
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&product); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, unavailable("find product", err)
	}
	return &product, nil
}

func (s *mongoProducts) Create(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, product); err != nil {
		return unavailable("insert product", err)
	}
	return nil
}

func (s *mongoProducts) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return unavailable("delete product", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoProducts) ToggleFeatured(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{"isFeatured": !product.IsFeatured}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Product
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": product.ID}, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, unavailable("toggle product featured", err)
	}
	return &updated, nil
}
