package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDonationStatusIsValid(t *testing.T) {
	for _, s := range []DonationStatus{DonationPending, DonationCompleted, DonationFailed, DonationRefunded} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, DonationStatus("captured").IsValid())
	assert.False(t, DonationStatus("").IsValid())
}
