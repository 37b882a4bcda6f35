package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// BlobStore mirrors sealed envelopes to remote storage. The blob is
// already encrypted; the mirror never sees plaintext.
type BlobStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

// ErrBlobNotFound is returned by BlobStore.Load when no mirror exists.
var ErrBlobNotFound = errors.New("token blob not found")

// FileStore keeps the sealed token envelope on local disk, optionally
// mirrored to a BlobStore. It implements saic.TokenCache.
type FileStore struct {
	path   string
	secret []byte
	mirror BlobStore
	log    zerolog.Logger
}

// NewFileStore builds a store keyed off the account credentials.
// mirror may be nil.
func NewFileStore(path, username, password string, mirror BlobStore, log zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		secret: keyMaterial(username, password),
		mirror: mirror,
		log:    log.With().Str("component", "tokenstore").Logger(),
	}
}

// Load returns the stored token, or (nil, nil) when there is none
// worth reusing. Undecryptable or expired envelopes are cleared.
func (s *FileStore) Load(ctx context.Context) (*oauth2.Token, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		blob = s.loadMirror(ctx)
		if blob == nil {
			return nil, nil
		}
	}

	token, err := open(s.secret, blob)
	if err != nil {
		s.log.Warn().Err(err).Msg("stored token unusable, clearing")
		_ = s.Clear(ctx)
		return nil, nil
	}
	if expired(token) {
		s.log.Debug().Time("expiry", token.Expiry).Msg("stored token expired")
		_ = s.Clear(ctx)
		return nil, nil
	}
	return token, nil
}

// Save seals the token to disk with 0600 permissions and mirrors it.
func (s *FileStore) Save(ctx context.Context, token *oauth2.Token) error {
	blob, err := seal(s.secret, token)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir token dir: %w", err)
	}
	if err := os.WriteFile(s.path, blob, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Save(ctx, blob); err != nil {
			s.log.Warn().Err(err).Msg("mirroring token envelope failed")
		}
	}
	return nil
}

// Clear removes the stored token.
func (s *FileStore) Clear(context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (s *FileStore) loadMirror(ctx context.Context) []byte {
	if s.mirror == nil {
		return nil
	}
	blob, err := s.mirror.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrBlobNotFound) {
			s.log.Warn().Err(err).Msg("loading mirrored token failed")
		}
		return nil
	}
	return blob
}
