package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process Store. Documents are kept as bson.M and go through
// the bson codec on the way in and out, so struct tags behave as with MongoDB.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memoryCollection)}
}

func (m *Memory) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }

// Seed inserts docs into the named collection, ignoring receipts.
func (m *Memory) Seed(name string, docs ...any) error {
	c := m.Collection(name)
	for _, d := range docs {
		if _, err := c.InsertOne(context.Background(), d); err != nil {
			return err
		}
	}
	return nil
}

type memoryCollection struct {
	mu   sync.RWMutex
	docs []bson.M
}

func (c *memoryCollection) Find(ctx context.Context, filter bson.M, results any, opts ...FindOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rv := reflect.ValueOf(results)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("store: results must be a pointer to a slice, got %T", results)
	}
	f, err := normalize(filter)
	if err != nil {
		return err
	}
	fo := buildFindOptions(opts)

	// Encode while holding the lock; UpdateOne mutates stored maps in place.
	c.mu.RLock()
	matched := make([][]byte, 0, len(c.docs))
	for _, d := range c.docs {
		if !matches(d, f) {
			continue
		}
		raw, err := bson.Marshal(project(d, fo.projection))
		if err != nil {
			c.mu.RUnlock()
			return fmt.Errorf("store: decode document: %w", err)
		}
		matched = append(matched, raw)
	}
	c.mu.RUnlock()

	slice := rv.Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(matched))
	for _, raw := range matched {
		elem := reflect.New(slice.Type().Elem())
		if err := decodeRaw(raw, elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	slice.Set(out)
	return nil
}

func (c *memoryCollection) FindOne(ctx context.Context, filter bson.M, result any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := normalize(filter)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.first(f)
	if !ok {
		return ErrNotFound
	}
	return decode(d, result)
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc any) (*InsertReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := toDocument(doc)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(d), nil
}

func (c *memoryCollection) InsertUnique(ctx context.Context, key bson.M, doc any, existing any) (*InsertReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := normalize(key)
	if err != nil {
		return nil, err
	}
	d, err := toDocument(doc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if found, ok := c.first(k); ok {
		if err := decode(found, existing); err != nil {
			return nil, err
		}
		return nil, ErrDuplicate
	}
	return c.insert(d), nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) (*UpdateReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalize(filter)
	if err != nil {
		return nil, err
	}
	set, setOnInsert, err := splitUpdate(update)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.docs {
		if !matches(d, f) {
			continue
		}
		modified := int64(0)
		for k, v := range set {
			if !reflect.DeepEqual(d[k], v) {
				d[k] = v
				modified = 1
			}
		}
		return &UpdateReceipt{Acknowledged: true, MatchedCount: 1, ModifiedCount: modified}, nil
	}

	if !upsert {
		return &UpdateReceipt{Acknowledged: true}, nil
	}
	d := bson.M{}
	for k, v := range f {
		d[k] = v
	}
	for k, v := range setOnInsert {
		d[k] = v
	}
	for k, v := range set {
		d[k] = v
	}
	r := c.insert(d)
	return &UpdateReceipt{Acknowledged: true, UpsertedCount: 1, UpsertedID: r.InsertedID}, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter bson.M) (*DeleteReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalize(filter)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.docs {
		if matches(d, f) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return &DeleteReceipt{Acknowledged: true, DeletedCount: 1}, nil
		}
	}
	return &DeleteReceipt{Acknowledged: true}, nil
}

// first must be called with c.mu held.
func (c *memoryCollection) first(filter bson.M) (bson.M, bool) {
	for _, d := range c.docs {
		if matches(d, filter) {
			return d, true
		}
	}
	return nil, false
}

// insert must be called with c.mu held for writing.
func (c *memoryCollection) insert(d bson.M) *InsertReceipt {
	if _, ok := d["_id"]; !ok {
		d["_id"] = primitive.NewObjectID()
	}
	c.docs = append(c.docs, d)
	return &InsertReceipt{Acknowledged: true, InsertedID: d["_id"]}
}

func splitUpdate(update bson.M) (set, setOnInsert bson.M, err error) {
	for op, v := range update {
		fields, err := normalize(v)
		if err != nil {
			return nil, nil, err
		}
		switch op {
		case "$set":
			set = fields
		case "$setOnInsert":
			setOnInsert = fields
		default:
			return nil, nil, fmt.Errorf("store: update operator %s is not supported by the memory driver", op)
		}
	}
	return set, setOnInsert, nil
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			if want != nil {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func project(doc bson.M, fields []string) bson.M {
	if len(fields) == 0 {
		return doc
	}
	out := bson.M{"_id": doc["_id"]}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

// toDocument converts any bson-marshalable value into a fresh bson.M.
func toDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	var d bson.M
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	return d, nil
}

// normalize passes filters and update bodies through the codec so values
// compare equal to stored ones (int widths, nested types).
func normalize(v any) (bson.M, error) {
	if m, ok := v.(bson.M); v == nil || (ok && m == nil) {
		return bson.M{}, nil
	}
	return toDocument(v)
}

func decode(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: decode document: %w", err)
	}
	return decodeRaw(raw, out)
}

func decodeRaw(raw []byte, out any) error {
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(raw))
	if err != nil {
		return fmt.Errorf("store: decode document: %w", err)
	}
	dec.DefaultDocumentM()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("store: decode document: %w", err)
	}
	return nil
}
