package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateOrderNumber_UniqueWithinOneInstant(t *testing.T) {
	now := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	format := regexp.MustCompile(`^VID20240312-[0-9A-F]{12}$`)

	seen := make(map[string]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		n := generateOrderNumber("VID", now)
		require.Regexp(t, format, n)
		_, dup := seen[n]
		require.False(t, dup, "duplicate order number %s", n)
		seen[n] = struct{}{}
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	o := &VideoOrder{OrderNumber: "VID-CUSTOM", Status: OrderStatusRevising}
	o.ApplyDefaults(time.Now())
	require.Equal(t, "VID-CUSTOM", o.OrderNumber)
	require.Equal(t, OrderStatusRevising, o.Status)
	require.Equal(t, DeliveryStatusNotSent, o.DeliveryStatus)
	require.Equal(t, PaymentStatusUnpaid, o.PaymentStatus)
}
