package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "session-service/internal/domain/session"
)

func TestDetectDevice(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want domain.DeviceType
	}{
		{"empty", "", domain.DeviceUnknown},
		{"blank", "   ", domain.DeviceUnknown},
		{"iphone", iphoneUA, domain.DeviceMobile},
		{"ipad", ipadUA, domain.DeviceTablet},
		{"desktop chrome", desktopUA, domain.DeviceDesktop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDevice(tt.ua))
		})
	}
}
