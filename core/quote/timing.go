package quote

import (
	"nexx-gsm/core/catalog"
	"nexx-gsm/core/pricing"
)

// Repair-time labels
const (
	Time30To60Min = "30-60 min"
	Time1To2Hours = "1-2 hours"
	Time2To4Hours = "2-4 hours"
	Time2To8Hours = "2-8 hours"
	Time4To8Hours = "4-8 hours"
)

// escalation is the ladder walked when many defects are bundled
var escalation = []string{Time30To60Min, Time1To2Hours, Time2To4Hours, Time4To8Hours}

// RepairTime picks the turnaround label for a set of canonical defects.
func RepairTime(deviceType catalog.DeviceType, defects []string) string {
	for _, d := range defects {
		if pricing.BoardLevel(d) {
			switch deviceType {
			case catalog.Phone, catalog.Tablet, catalog.Watch:
				return Time2To4Hours
			case catalog.Laptop:
				return Time4To8Hours
			default:
				return Time2To8Hours
			}
		}
	}

	base := defaultTime(deviceType)
	if len(defects) > 2 {
		return escalate(base)
	}
	return base
}

func defaultTime(deviceType catalog.DeviceType) string {
	switch deviceType {
	case catalog.Phone, catalog.Watch:
		return Time30To60Min
	default:
		return Time1To2Hours
	}
}

func escalate(label string) string {
	for i, l := range escalation {
		if l == label && i+1 < len(escalation) {
			return escalation[i+1]
		}
	}
	return label
}
