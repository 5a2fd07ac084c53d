package ksef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentHosts(t *testing.T) {
	assert.Equal(t, "https://api-test.ksef.mf.gov.pl/v2", Test.BaseURL())
	assert.Equal(t, "https://api-demo.ksef.mf.gov.pl/v2", Demo.BaseURL())
	assert.Equal(t, "https://api.ksef.mf.gov.pl/v2", Prod.BaseURL())

	assert.Equal(t, "https://qr-test.ksef.mf.gov.pl", Test.VerificationBaseURL())
	assert.Equal(t, "https://qr-demo.ksef.mf.gov.pl", Demo.VerificationBaseURL())
	assert.Equal(t, "https://qr.ksef.mf.gov.pl", Prod.VerificationBaseURL())
}

func TestEnvironmentUnmarshalText(t *testing.T) {
	var e Environment

	require.NoError(t, e.UnmarshalText([]byte(" Prod ")))
	assert.Equal(t, Prod, e)

	require.NoError(t, e.UnmarshalText([]byte("demo")))
	assert.Equal(t, Demo, e)

	assert.Error(t, e.UnmarshalText([]byte("staging")))
}

func TestNormalizeNip(t *testing.T) {
	for _, in := range []string{"6891152920", "689-115-29-20", "PL 6891152920", " 689 115 29 20 "} {
		nip, err := NormalizeNip(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, "6891152920", nip)
	}

	for _, in := range []string{"", "12345", "68911529201", "abc"} {
		_, err := NormalizeNip(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, IsValidationError(err))
	}
}

func TestErrorTaxonomy(t *testing.T) {
	ve := NewValidationError("missing field %s", "P_1")
	assert.Equal(t, "missing field P_1", ve.Error())
	assert.True(t, IsValidationError(ve))
	assert.False(t, IsSigningError(ve))

	se := NewSigningError("unsupported key type", nil)
	assert.True(t, IsSigningError(se))
	assert.False(t, IsValidationError(se))
}
