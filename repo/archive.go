package repo

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"formbot/model"
)

// Archiver stores terminally resolved suggestions.
type Archiver interface {
	ArchiveSuggestion(ctx context.Context, sug *model.Suggestion) (string, error)
}

// archivedSuggestion is the database shape of a resolved suggestion.
type archivedSuggestion struct {
	ID            string         `json:"id"`
	AuthorID      int64          `json:"authorId"`
	AuthorName    string         `json:"authorName"`
	TemplateIndex int            `json:"templateIndex"`
	Answers       []model.Answer `json:"answers"`
	Status        string         `json:"status"`
	Approvals     int            `json:"approvals"`
	Rejections    int            `json:"rejections"`
}

// FirebaseConnector struct to hold Firebase client and database reference
type FirebaseConnector struct {
	app    *firebase.App
	client *db.Client
}

// NewFirebaseConnector creates a new Firebase connector
func NewFirebaseConnector(ctx context.Context, serviceAccountKeyPath string, databaseURL string) (*FirebaseConnector, error) {
	opt := option.WithCredentialsFile(serviceAccountKeyPath)

	config := &firebase.Config{
		DatabaseURL: databaseURL,
	}
	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %v", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %v", err)
	}

	return &FirebaseConnector{
		app:    app,
		client: client,
	}, nil
}

// ArchiveSuggestion pushes a resolved suggestion under the
// "suggestions" ref and returns the new key.
func (fc *FirebaseConnector) ArchiveSuggestion(ctx context.Context, sug *model.Suggestion) (string, error) {
	approve, reject := sug.Counts()
	rec := archivedSuggestion{
		ID:            sug.ID,
		AuthorID:      sug.AuthorID,
		AuthorName:    sug.AuthorName,
		TemplateIndex: sug.TemplateIndex,
		Answers:       sug.Answers,
		Status:        sug.Status.String(),
		Approvals:     approve,
		Rejections:    reject,
	}
	ref := fc.client.NewRef("suggestions")
	newRef, err := ref.Push(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("error archiving suggestion: %v", err)
	}
	return newRef.Key, nil
}

// ListArchived returns every archived suggestion keyed by ref.
func (fc *FirebaseConnector) ListArchived(ctx context.Context) (map[string]model.Suggestion, error) {
	ref := fc.client.NewRef("suggestions")
	var raw map[string]archivedSuggestion
	if err := ref.Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("error listing archived suggestions: %v", err)
	}
	out := make(map[string]model.Suggestion, len(raw))
	for key, rec := range raw {
		out[key] = model.Suggestion{
			ID:            rec.ID,
			AuthorID:      rec.AuthorID,
			AuthorName:    rec.AuthorName,
			TemplateIndex: rec.TemplateIndex,
			Answers:       rec.Answers,
		}
	}
	return out, nil
}

// InitializeFirebase builds the connector from the FIREBASE_* env
// vars. Both unset means archiving is disabled, reported as (nil, nil).
func InitializeFirebase(ctx context.Context) (*FirebaseConnector, error) {
	serviceAccountKeyPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH")
	databaseURL := os.Getenv("FIREBASE_DATABASE_URL")
	if serviceAccountKeyPath == "" && databaseURL == "" {
		return nil, nil
	}
	if serviceAccountKeyPath == "" {
		return nil, fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_KEY_PATH environment variable not set")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("FIREBASE_DATABASE_URL environment variable not set")
	}

	firebaseConnector, err := NewFirebaseConnector(ctx, serviceAccountKeyPath, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error creating Firebase connector: %v", err)
	}

	return firebaseConnector, nil
}
