package ports_test

import (
	"testing"

	"github.com/target/microshop-ui/internal/mocks"
	mockauth "github.com/target/microshop-ui/internal/mocks/auth"
	"github.com/target/microshop-ui/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityProvider = (*mockauth.FakeProvider)(nil)
	var _ ports.TokenRepository = (*mockauth.MemoryTokenStore)(nil)
	var _ ports.ClaimsMapper = mockauth.StaticClaimsMapper{}
	var _ ports.GatewayClient = (*mocks.MockGatewayClient)(nil)
	var _ ports.TokenRepository = (*mocks.MockTokenRepository)(nil)
}
