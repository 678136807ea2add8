package retrieval

import "regexp"

// DeviceClass selects which delivery paths are attempted.
type DeviceClass int

const (
	DeviceDesktop DeviceClass = iota
	DeviceMobile
)

func (c DeviceClass) String() string {
	if c == DeviceMobile {
		return "mobile"
	}
	return "desktop"
}

// DeviceDetector reports the class of device the video is delivered to.
type DeviceDetector interface {
	Detect() DeviceClass
}

var mobileUserAgent = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// UserAgentDetector classifies a device by its user-agent string.
type UserAgentDetector struct {
	UserAgent string
}

func (d UserAgentDetector) Detect() DeviceClass {
	if mobileUserAgent.MatchString(d.UserAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// StaticDetector always reports the same class.
type StaticDetector DeviceClass

func (d StaticDetector) Detect() DeviceClass {
	return DeviceClass(d)
}
