package entity

// Platform is the kind of entity.
type Platform string

// Platforms.
const (
	PlatformButton       Platform = "button"
	PlatformSwitch       Platform = "switch"
	PlatformSelect       Platform = "select"
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformCover        Platform = "cover"
	PlatformLock         Platform = "lock"
)

// Platforms lists every platform in setup order.
var Platforms = []Platform{
	PlatformButton,
	PlatformSwitch,
	PlatformSelect,
	PlatformBinarySensor,
	PlatformCover,
	PlatformLock,
}

// Category groups entities for consumers. The zero value is a primary entity.
type Category string

// Entity categories.
const (
	CategoryNone       Category = ""
	CategoryConfig     Category = "config"
	CategoryDiagnostic Category = "diagnostic"
)

// Description is the presentation of an entity.
type Description struct {
	Key               string   `json:"key" yaml:"key"`
	TranslationKey    string   `json:"translation_key,omitempty" yaml:"translation_key,omitempty"`
	Icon              string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty" yaml:"device_class,omitempty"`
	Category          Category `json:"entity_category,omitempty" yaml:"entity_category,omitempty"`
	DisabledByDefault bool     `json:"disabled_by_default,omitempty" yaml:"disabled_by_default,omitempty"`
	Unit              string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Options           []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// withDefaults fills TranslationKey from Key.
func (d Description) withDefaults() Description {
	if d.TranslationKey == "" {
		d.TranslationKey = d.Key
	}
	return d
}
