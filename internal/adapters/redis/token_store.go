// Package redis provides Redis-backed adapters for the storefront.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/ports"
)

// DefaultTokenTTL bounds how long a token set survives without a refresh.
const DefaultTokenTTL = 12 * time.Hour

// TokenStore keeps one token set per browser client.
// Keys expire after the configured TTL so abandoned clients do not accumulate.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewTokenStore creates a Redis token store. A non-positive ttl uses DefaultTokenTTL.
func NewTokenStore(client redis.UniversalClient, ttl time.Duration) *TokenStore {
	return NewTokenStoreWithPrefix(client, "tokens:", ttl)
}

// NewTokenStoreWithPrefix creates a Redis token store with a custom key prefix.
func NewTokenStoreWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *TokenStore {
	if client == nil {
		panic("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore{client: client, prefix: prefix, ttl: ttl}
}

// storedTokens is the JSON shape persisted per client.
type storedTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

func (s *TokenStore) Save(ctx context.Context, clientID string, tokens domainauth.TokenSet) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	if tokens.AccessToken == "" {
		return errors.New("access token cannot be empty")
	}

	data, err := json.Marshal(storedTokens{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
		Expiry:       tokens.Expiry,
	})
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+clientID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, clientID string) (domainauth.TokenSet, error) {
	if clientID == "" {
		return domainauth.TokenSet{}, ports.ErrNoTokens
	}

	data, err := s.client.Get(ctx, s.prefix+clientID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.TokenSet{}, ports.ErrNoTokens
		}
		return domainauth.TokenSet{}, fmt.Errorf("redis get: %w", err)
	}

	var st storedTokens
	if err := json.Unmarshal(data, &st); err != nil {
		return domainauth.TokenSet{}, fmt.Errorf("unmarshal tokens: %w", err)
	}
	if st.AccessToken == "" {
		// Corrupt entry; drop it so the next login starts clean.
		if delErr := s.Delete(ctx, clientID); delErr != nil {
			return domainauth.TokenSet{}, fmt.Errorf("cleanup empty token set: %w", delErr)
		}
		return domainauth.TokenSet{}, ports.ErrNoTokens
	}

	return domainauth.TokenSet{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		IDToken:      st.IDToken,
		Expiry:       st.Expiry,
	}, nil
}

func (s *TokenStore) Delete(ctx context.Context, clientID string) error {
	if clientID == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+clientID).Err()
}
