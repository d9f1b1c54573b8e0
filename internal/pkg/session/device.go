// internal/pkg/session/device.go
package session

import (
	"strings"

	"github.com/mileusna/useragent"

	domain "session-service/internal/domain/session"
)

// DetectDevice classifies a user agent string.
func DetectDevice(userAgent string) domain.DeviceType {
	if strings.TrimSpace(userAgent) == "" {
		return domain.DeviceUnknown
	}

	ua := useragent.Parse(userAgent)
	switch {
	case ua.Tablet:
		return domain.DeviceTablet
	case ua.Mobile:
		return domain.DeviceMobile
	case ua.Desktop:
		return domain.DeviceDesktop
	default:
		return domain.DeviceUnknown
	}
}
