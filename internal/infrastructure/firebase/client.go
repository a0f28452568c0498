package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// App owns the Firebase credentials and hands out the clients built on them.
type App struct {
	app       *firebase.App
	projectID string
	opts      []option.ClientOption
	poolSize  int
}

// NewApp initializes a Firebase app from a service account file.
func NewApp(ctx context.Context, credentialsFile, projectID string, grpcPoolSize int) (*App, error) {
	opts := []option.ClientOption{option.WithCredentialsFile(credentialsFile)}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	return &App{app: app, projectID: projectID, opts: opts, poolSize: grpcPoolSize}, nil
}

func (a *App) ProjectID() string {
	return a.projectID
}

// Firestore dials the datastore with a bounded gRPC connection pool.
func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	opts := append([]option.ClientOption{}, a.opts...)
	opts = append(opts, option.WithGRPCConnectionPool(a.poolSize))

	client, err := firestore.NewClient(ctx, a.projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore client: %w", err)
	}
	return client, nil
}

// Directory returns a user.Directory backed by Firebase Auth.
func (a *App) Directory(ctx context.Context) (*Directory, error) {
	client, err := a.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}
	return &Directory{users: client}, nil
}

type userGetter interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

// Directory reads profile data for verified callers.
type Directory struct {
	users userGetter
}

// DisplayName returns the provider's display name, falling back to the
// email address. Unknown users yield an empty name.
func (d *Directory) DisplayName(ctx context.Context, uid string) (string, error) {
	rec, err := d.users.GetUser(ctx, uid)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get user %s: %w", uid, err)
	}
	if rec.DisplayName != "" {
		return rec.DisplayName, nil
	}
	return rec.Email, nil
}
