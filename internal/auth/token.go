// Package auth provides the credential providers used to call the catalog and
// the agent hosting platform.
//
// Shipped providers:
//   - AzureTokenProvider: azidentity DefaultAzureCredential chain
//     (environment, workload identity, managed identity, Azure CLI)
//   - StaticTokenProvider: a fixed token, for local development and tests
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/rs/zerolog/log"
)

// Token scopes of the backends the router talks to.
const (
	PurviewScope = "https://purview.azure.net/.default"
	AgentsScope  = "https://ai.azure.com/.default"
)

// refreshSkew renews cached tokens this long before they expire.
const refreshSkew = 5 * time.Minute

// AzureTokenProvider implements contracts.TokenProvider on top of an azcore
// credential, caching one token per scope until shortly before expiry.
type AzureTokenProvider struct {
	cred azcore.TokenCredential

	mu    sync.Mutex
	cache map[string]azcore.AccessToken

	now func() time.Time
}

// NewAzureTokenProvider builds a provider backed by DefaultAzureCredential.
func NewAzureTokenProvider() (*AzureTokenProvider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure credential: %w", err)
	}
	return NewCredentialTokenProvider(cred), nil
}

// NewCredentialTokenProvider wraps an existing azcore credential.
func NewCredentialTokenProvider(cred azcore.TokenCredential) *AzureTokenProvider {
	return &AzureTokenProvider{
		cred:  cred,
		cache: make(map[string]azcore.AccessToken),
		now:   time.Now,
	}
}

// GetToken returns a bearer token for the scope.
func (p *AzureTokenProvider) GetToken(ctx context.Context, scope string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tok, ok := p.cache[scope]; ok && p.now().Add(refreshSkew).Before(tok.ExpiresOn) {
		return tok.Token, nil
	}

	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}})
	if err != nil {
		return "", fmt.Errorf("get token for %s: %w", scope, err)
	}
	p.cache[scope] = tok

	log.Debug().
		Str("scope", scope).
		Time("expires_on", tok.ExpiresOn).
		Msg("Acquired access token")

	return tok.Token, nil
}

// ErrNoToken is returned by a StaticTokenProvider with an empty token.
var ErrNoToken = errors.New("auth: no token configured")

// StaticTokenProvider returns the same token for every scope.
type StaticTokenProvider struct {
	Token string
}

// GetToken returns the configured token.
func (p StaticTokenProvider) GetToken(_ context.Context, _ string) (string, error) {
	if p.Token == "" {
		return "", ErrNoToken
	}
	return p.Token, nil
}
