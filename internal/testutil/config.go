package testutil

import "os"

const (
	// TestEbayToken overrides the bearer token used against test servers.
	TestEbayToken = "TEST_EBAY_TOKEN"

	DefaultTestToken = "test-token"
)

// GetTestToken returns a test token from environment variable or default
func GetTestToken(envVar, defaultValue string) string {
	if token := os.Getenv(envVar); token != "" {
		return token
	}
	return defaultValue
}

// EbayToken returns the token test clients authenticate with.
func EbayToken() string {
	return GetTestToken(TestEbayToken, DefaultTestToken)
}
