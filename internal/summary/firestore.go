package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps one document per destination in the "summaries"
// collection.
type FirestoreStore struct {
	client *firestore.Client
}

type summaryDoc struct {
	Content   string    `firestore:"content"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) doc(destination string) *firestore.DocumentRef {
	// Document IDs may not contain '/'.
	id := strings.ReplaceAll(strings.TrimSpace(destination), "/", "__")
	return s.client.Collection("summaries").Doc(id)
}

func (s *FirestoreStore) WriteSummary(ctx context.Context, destination, text string) error {
	if strings.TrimSpace(destination) == "" {
		return ErrInvalidDestination
	}
	_, err := s.doc(destination).Set(ctx, summaryDoc{
		Content:   text,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("firestore WriteSummary: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ReadSummary(ctx context.Context, destination string) (string, error) {
	snap, err := s.doc(destination).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("firestore ReadSummary: %w", err)
	}
	var doc summaryDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("firestore ReadSummary decode: %w", err)
	}
	return doc.Content, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
