package products

import (
	"fmt"
	"sort"
)

// DefaultManufacturer is used when a product entry names none.
const DefaultManufacturer = "Tuya"

// FingerbotInfo lists the datapoint ids a fingerbot product uses.
// ManualControl and Program are zero when the product lacks them.
type FingerbotInfo struct {
	Switch           uint8 `json:"switch" yaml:"switch"`
	Mode             uint8 `json:"mode" yaml:"mode"`
	UpPosition       uint8 `json:"up_position" yaml:"up_position"`
	DownPosition     uint8 `json:"down_position" yaml:"down_position"`
	HoldTime         uint8 `json:"hold_time" yaml:"hold_time"`
	ReversePositions uint8 `json:"reverse_positions" yaml:"reverse_positions"`
	ManualControl    uint8 `json:"manual_control,omitempty" yaml:"manual_control,omitempty"`
	Program          uint8 `json:"program,omitempty" yaml:"program,omitempty"`
}

// Info describes a product.
type Info struct {
	Name         string         `json:"name" yaml:"name"`
	Manufacturer string         `json:"manufacturer" yaml:"manufacturer"`
	Fingerbot    *FingerbotInfo `json:"fingerbot,omitempty" yaml:"fingerbot,omitempty"`
}

// CategoryInfo holds the products of one category and an optional
// category-wide Info used for unlisted products.
type CategoryInfo struct {
	Products map[string]Info `json:"products" yaml:"products"`
	Info     *Info           `json:"info,omitempty" yaml:"info,omitempty"`
}

// Lookup returns the product entry, else the category entry.
// The result is a copy; callers may modify it.
func Lookup(category, productID string) (Info, bool) {
	cat, ok := database[category]
	if !ok {
		return Info{}, false
	}
	if info, ok := cat.Products[productID]; ok {
		return info.clone(), true
	}
	if cat.Info != nil {
		return cat.Info.clone(), true
	}
	return Info{}, false
}

func (i Info) clone() Info {
	if i.Fingerbot != nil {
		fb := *i.Fingerbot
		i.Fingerbot = &fb
	}
	return i
}

// Device is the identity DeviceInfo needs.
type Device interface {
	Address() string
	DeviceID() string
	Category() string
	ProductID() string
	Name() string
}

// DeviceMeta is what consumers are shown for a device.
type DeviceMeta struct {
	DeviceID     string `json:"device_id"`
	Address      string `json:"address"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	ProductID    string `json:"product_id"`
	Category     string `json:"category"`
}

// DeviceInfo resolves the presentation metadata of dev. Unknown products
// use the device's own name and the default manufacturer.
func DeviceInfo(dev Device, model string) DeviceMeta {
	meta := DeviceMeta{
		DeviceID:     dev.DeviceID(),
		Address:      dev.Address(),
		Name:         dev.Name(),
		Manufacturer: DefaultManufacturer,
		ProductID:    dev.ProductID(),
		Category:     dev.Category(),
	}
	if info, ok := Lookup(dev.Category(), dev.ProductID()); ok {
		meta.Name = info.Name
		meta.Manufacturer = info.Manufacturer
	}
	if model == "" {
		model = dev.ProductID()
	}
	meta.Model = fmt.Sprintf("%s (%s)", model, dev.ProductID())
	return meta
}

// Entry is one flattened row of the product database.
type Entry struct {
	Category  string `json:"category" yaml:"category"`
	ProductID string `json:"product_id,omitempty" yaml:"product_id,omitempty"`
	Info      Info   `json:"info" yaml:"info"`
}

// All lists every product, plus one row per category-wide entry with an
// empty ProductID, sorted by category then product id.
func All() []Entry {
	var out []Entry
	for category, cat := range database {
		for id, info := range cat.Products {
			out = append(out, Entry{Category: category, ProductID: id, Info: info.clone()})
		}
		if cat.Info != nil {
			out = append(out, Entry{Category: category, Info: cat.Info.clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}
