package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
)

type mockUserGetter struct {
	GetUserFunc func(ctx context.Context, uid string) (*auth.UserRecord, error)
}

func (m *mockUserGetter) GetUser(ctx context.Context, uid string) (*auth.UserRecord, error) {
	return m.GetUserFunc(ctx, uid)
}

func record(displayName, email string) *auth.UserRecord {
	return &auth.UserRecord{UserInfo: &auth.UserInfo{DisplayName: displayName, Email: email}}
}

func TestDirectory_DisplayName(t *testing.T) {
	tests := []struct {
		name    string
		rec     *auth.UserRecord
		err     error
		want    string
		wantErr bool
	}{
		{name: "display name", rec: record("Ada Lovelace", "ada@example.com"), want: "Ada Lovelace"},
		{name: "falls back to email", rec: record("", "ada@example.com"), want: "ada@example.com"},
		{name: "lookup failure", err: errors.New("unavailable"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Directory{users: &mockUserGetter{GetUserFunc: func(ctx context.Context, uid string) (*auth.UserRecord, error) {
				return tt.rec, tt.err
			}}}

			got, err := d.DisplayName(context.Background(), "uid")
			if (err != nil) != tt.wantErr {
				t.Fatalf("DisplayName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
