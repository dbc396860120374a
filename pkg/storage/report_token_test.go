package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReportTokenRoundTrip(t *testing.T) {
	signer := NewReportTokenSigner("secret", time.Minute)

	token, expires, err := signer.Issue("job-1", "reports/2024-10/job-1.csv")
	require.NoError(t, err)
	require.True(t, expires.After(time.Now()))

	claim, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "job-1", claim.JobID)
	require.Equal(t, "reports/2024-10/job-1.csv", claim.FilePath)
	require.Equal(t, expires.Unix(), claim.ExpiresAt.Unix())
}

func TestReportTokenRejectsTampering(t *testing.T) {
	signer := NewReportTokenSigner("secret", time.Minute)

	token, _, err := signer.Issue("job-1", "reports/2024-10/job-1.csv")
	require.NoError(t, err)

	_, err = signer.Verify(token + "x")
	require.Error(t, err)

	other := NewReportTokenSigner("other-secret", time.Minute)
	_, err = other.Verify(token)
	require.Error(t, err)
}

func TestReportTokenExpiry(t *testing.T) {
	signer := NewReportTokenSigner("secret", time.Minute)

	token, _, err := signer.Issue("job-1", "file.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = signer.Verify(token)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expired")
}

func TestReportTokenRequiresClaimFields(t *testing.T) {
	signer := NewReportTokenSigner("secret", time.Minute)

	_, _, err := signer.Issue("", "file.csv")
	require.Error(t, err)
	_, _, err = signer.Issue("job-1", "")
	require.Error(t, err)
}
