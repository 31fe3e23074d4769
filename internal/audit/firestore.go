package audit

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FirestoreBackend mirrors a local FileBackend's semantics into a Firestore
// collection, for deployments that want the append-only log mirrored
// somewhere durable and queryable outside the process. It is an optional
// mirror; the core never requires it and FileBackend remains the default.
type FirestoreBackend struct {
	client     *firestore.Client
	collection string
	seq        int64
}

// NewFirestoreBackend opens a Firestore client scoped to projectID and
// targets the given collection for audit documents.
func NewFirestoreBackend(ctx context.Context, projectID, collection string) (*FirestoreBackend, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &FirestoreBackend{client: client, collection: collection}, nil
}

// firestoreDoc is the on-the-wire shape; seq preserves append order since
// Firestore query ordering by timestamp alone is not guaranteed unique.
type firestoreDoc struct {
	Seq       int64  `firestore:"seq"`
	Timestamp int64  `firestore:"ts"`
	Op        string `firestore:"op"`
	ID        string `firestore:"id"`
	Who       string `firestore:"who"`
	Detail    string `firestore:"detail"`
}

func (b *FirestoreBackend) Write(e Entry) error {
	ctx := context.Background()
	b.seq++
	_, _, err := b.client.Collection(b.collection).Add(ctx, firestoreDoc{
		Seq:       b.seq,
		Timestamp: e.Timestamp.UnixNano(),
		Op:        e.Op,
		ID:        e.ID,
		Who:       e.Who,
		Detail:    e.Detail,
	})
	if err != nil {
		return fmt.Errorf("write firestore audit doc: %w", err)
	}
	return nil
}

func (b *FirestoreBackend) ReadAll() ([]Entry, error) {
	ctx := context.Background()
	iter := b.client.Collection(b.collection).Documents(ctx)
	defer iter.Stop()

	var docs []firestoreDoc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate firestore audit docs: %w", err)
		}
		var d firestoreDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode firestore audit doc: %w", err)
		}
		docs = append(docs, d)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })

	out := make([]Entry, len(docs))
	for i, d := range docs {
		out[i] = Entry{
			Timestamp: timeFromUnixNano(d.Timestamp),
			Op:        d.Op,
			ID:        d.ID,
			Who:       d.Who,
			Detail:    d.Detail,
		}
	}
	return out, nil
}

func (b *FirestoreBackend) Close() error {
	return b.client.Close()
}
