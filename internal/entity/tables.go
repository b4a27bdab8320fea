package entity

import "github.com/nerrad567/gray-logic-tuyable/internal/tuya"

// Product id groups shared by several tables.
var (
	cubeTouchIDs     = []string{"3yqdo5yt", "xhf790if"}
	fingerbotPlusIDs = []string{"blliqpsj", "ndvkgsrm", "yiihr7zh", "neq16kgd"}
	fingerbotIDs     = []string{"ltak7e1p", "y6kttvd6", "yrnk7mnn", "nvr2rocq", "bnt7wajf", "rvdceqjh", "5xhbk964"}
	smartLockIDs     = []string{"ludzroix", "isk2p555"}
)

func fingerbotPushButton(dpID uint8) ButtonMapping {
	return ButtonMapping{
		Binding:     Bind(dpID, Description{Key: "push"}),
		IsAvailable: fingerbotInPushMode,
	}
}

func fingerbotModeSelect(dpID uint8) SelectMapping {
	return SelectMapping{Binding: Bind(dpID, Description{
		Key:      "fingerbot_mode",
		Category: CategoryConfig,
		Options:  []string{FingerbotModePush, FingerbotModeSwitch, FingerbotModeProgram},
	})}
}

func reversePositionsSwitch(dpID uint8) SwitchMapping {
	return SwitchMapping{Binding: Bind(dpID, Description{
		Key:      "reverse_positions",
		Icon:     "mdi:arrow-up-down-bold",
		Category: CategoryConfig,
	})}
}

func temperatureUnit() Description {
	return Description{
		Key:      "temperature_unit",
		Icon:     "mdi:thermometer",
		Category: CategoryConfig,
		Options:  []string{UnitCelsius, UnitFahrenheit},
	}
}

var batteryWorkModes = []string{"Performance", "Balanced", "Eco", "Expert"}

// ButtonTable is the built-in button mapping.
var ButtonTable = Table[ButtonMapping]{
	"dcb": {Products: map[string][]ButtonMapping{
		"ajrhf1aj": { // PARKSIDE Smart battery 8Ah
			{Binding: Bind(115, Description{
				Key:      "battery_finder",
				Icon:     "mdi:find-replace",
				Category: CategoryDiagnostic,
			})},
			{Binding: Bind(162, Description{
				Key:         "factory_data_reset",
				DeviceClass: "restart",
				Icon:        "mdi:restore",
				Category:    CategoryConfig,
			}).WithType(tuya.TypeRaw)},
		},
	}},
	"szjqr": {Products: Merge(
		ForProducts([]ButtonMapping{fingerbotPushButton(1)}, cubeTouchIDs...),
		ForProducts([]ButtonMapping{fingerbotPushButton(2)}, fingerbotPlusIDs...),
		ForProducts([]ButtonMapping{fingerbotPushButton(2)}, fingerbotIDs...),
	)},
	"znhsb": {Products: map[string][]ButtonMapping{
		"cdlandip": {{Binding: Bind(109, Description{Key: "bright_lid_screen"})}}, // Smart water bottle
	}},
}

// SwitchTable is the built-in switch mapping.
var SwitchTable = Table[SwitchMapping]{
	"co2bj": {Products: map[string][]SwitchMapping{
		"59s19z5m": { // CO2 Detector
			{
				Binding: Bind(11, Description{
					Key:      "carbon_dioxide_severely_exceed_alarm",
					Icon:     "mdi:molecule-co2",
					Category: CategoryConfig,
				}).WithType(tuya.TypeBitmap),
				BitmapMask: 0x01,
			},
			{
				Binding: Bind(11, Description{
					Key:               "low_battery_alarm",
					Icon:              "mdi:battery-alert",
					Category:          CategoryConfig,
					DisabledByDefault: true,
				}).WithType(tuya.TypeBitmap),
				BitmapMask: 0x02,
			},
			{Binding: Bind(13, Description{
				Key:      "carbon_dioxide_alarm_switch",
				Icon:     "mdi:molecule-co2",
				Category: CategoryConfig,
			})},
		},
	}},
	"szjqr": {Products: Merge(
		ForProducts([]SwitchMapping{reversePositionsSwitch(4)}, cubeTouchIDs...),
		ForProducts([]SwitchMapping{reversePositionsSwitch(11)}, fingerbotPlusIDs...),
		ForProducts([]SwitchMapping{reversePositionsSwitch(11)}, fingerbotIDs...),
	)},
	"sfkzq": {Mapping: []SwitchMapping{
		{Binding: Bind(1, Description{Key: "water_valve", Icon: "mdi:water"})},
	}},
}

// SelectTable is the built-in select mapping.
var SelectTable = Table[SelectMapping]{
	"co2bj": {Products: map[string][]SelectMapping{
		"59s19z5m": {{Binding: Bind(101, temperatureUnit())}},
	}},
	"dcb": {Products: map[string][]SelectMapping{
		"ajrhf1aj": {
			{Binding: Bind(105, Description{
				Key:      "battery_work_mode",
				Icon:     "mdi:leaf-circle-outline",
				Category: CategoryConfig,
				Options:  batteryWorkModes,
			})},
			{Binding: Bind(174, Description{
				Key:      "pack_work_mode",
				Icon:     "mdi:leaf-circle-outline",
				Category: CategoryConfig,
				Options:  batteryWorkModes,
			})},
		},
	}},
	"ms": {Products: ForProducts([]SelectMapping{
		{Binding: Bind(31, Description{
			Key:      "beep_volume",
			Category: CategoryConfig,
			Options:  []string{"mute", "low", "normal", "high"},
		})},
	}, smartLockIDs...)},
	"szjqr": {Products: Merge(
		ForProducts([]SelectMapping{fingerbotModeSelect(2)}, cubeTouchIDs...),
		ForProducts([]SelectMapping{fingerbotModeSelect(8)}, fingerbotPlusIDs...),
		ForProducts([]SelectMapping{fingerbotModeSelect(8)}, fingerbotIDs...),
	)},
	"wsdcg": {Products: map[string][]SelectMapping{
		"ojzlzzsw": {{Binding: Bind(9, disabled(temperatureUnit()))}}, // Soil moisture sensor
	}},
	"znhsb": {Products: map[string][]SelectMapping{
		"cdlandip": {
			{Binding: Bind(106, temperatureUnit())},
			{Binding: Bind(107, Description{
				Key:      "reminder_mode",
				Category: CategoryConfig,
				Options:  []string{"interval_reminder", "schedule_reminder"},
			})},
		},
	}},
}

// BinarySensorTable is the built-in binary sensor mapping.
var BinarySensorTable = Table[BinarySensorMapping]{
	"dcb": {Products: map[string][]BinarySensorMapping{
		"ajrhf1aj": {{Binding: Bind(171, Description{
			Key:  "cw_or_ccw_display",
			Icon: "mdi:rotate-3d-variant",
		})}},
	}},
	"wk": {Products: map[string][]BinarySensorMapping{
		"drlajpqc": {{Binding: Bind(105, Description{ // Thermostatic Radiator Valve
			Key:         "battery",
			DeviceClass: "battery",
			Category:    CategoryDiagnostic,
		})}},
	}},
}

// CoverTable is the built-in cover mapping.
var CoverTable = Table[CoverMapping]{
	"cl": {Mapping: []CoverMapping{
		{
			Binding:      Bind(1, Description{Key: "control", DeviceClass: "curtain"}).WithType(tuya.TypeString),
			DefaultValue: CoverStop,
		},
	}},
}

// LockTable is the built-in lock mapping.
var LockTable = Table[LockMapping]{
	"ms": {Products: ForProducts([]LockMapping{
		NewLockMapping(46, 47, Description{Key: "lock"}),
	}, smartLockIDs...)},
}

func disabled(d Description) Description {
	d.DisabledByDefault = true
	return d
}
