package signer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/primsh/x402fetch/types"
)

// EnvPrivateKey is the fallback secret key, consulted only when no keystore is configured.
const EnvPrivateKey = "X402_PRIVATE_KEY"

// SourceKind names where a signing identity came from.
type SourceKind string

const (
	SourceIdentity   SourceKind = "identity"
	SourcePrivateKey SourceKind = "private_key"
	SourceKeystore   SourceKind = "keystore"
	SourceEnv        SourceKind = "env"
)

// Sources are the candidate signing sources, in precedence order.
type Sources struct {
	Identity   Identity
	PrivateKey string
	Keystore   *types.KeystoreRef

	// Store loads Keystore references. Nil means a FileKeystore over DefaultKeystoreDir.
	Store Keystore

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Source is a resolved signing source. Keystore sources are not loaded until Identity is called.
type Source struct {
	kind     SourceKind
	identity Identity
	store    Keystore
	ref      types.KeystoreRef
}

// Resolve applies the precedence explicit identity, private key, keystore reference,
// then X402_PRIVATE_KEY, stopping at the first source that is set.
func Resolve(s Sources) (*Source, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if s.Identity != nil {
		return &Source{kind: SourceIdentity, identity: s.Identity}, nil
	}

	if key := strings.TrimSpace(s.PrivateKey); key != "" {
		id, err := NewPrivateKeyIdentity(key)
		if err != nil {
			return nil, err
		}
		return &Source{kind: SourcePrivateKey, identity: id}, nil
	}

	if s.Keystore.Enabled() {
		store := s.Store
		if store == nil {
			store = NewFileKeystore(DefaultKeystoreDir())
		}
		return &Source{kind: SourceKeystore, store: store, ref: *s.Keystore}, nil
	}

	if key := strings.TrimSpace(getenv(EnvPrivateKey)); key != "" {
		id, err := NewPrivateKeyIdentity(key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPrivateKey, err)
		}
		return &Source{kind: SourceEnv, identity: id}, nil
	}

	return nil, &types.X402Error{
		Code: types.ErrConfigError,
		Message: fmt.Sprintf(
			"no signing identity: checked explicit identity, private key, keystore and %s",
			EnvPrivateKey,
		),
	}
}

func (s *Source) Kind() SourceKind {
	return s.kind
}

// Deferred reports whether Identity performs a keystore load.
func (s *Source) Deferred() bool {
	return s.kind == SourceKeystore
}

// Identity returns the signing identity, loading it from the keystore for deferred sources.
// Callers that share a Source across goroutines memoise the result themselves.
func (s *Source) Identity(ctx context.Context) (Identity, error) {
	if !s.Deferred() {
		return s.identity, nil
	}
	return s.store.Load(ctx, s.ref)
}
