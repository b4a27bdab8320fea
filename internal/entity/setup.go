package entity

// SetupAll materialises every platform from the built-in tables, in
// Platforms order.
func SetupAll(deps Deps) []Entity {
	var out []Entity
	for _, b := range SetupButtons(deps, ButtonTable) {
		out = append(out, b)
	}
	for _, s := range SetupSwitches(deps, SwitchTable) {
		out = append(out, s)
	}
	for _, s := range SetupSelects(deps, SelectTable) {
		out = append(out, s)
	}
	for _, s := range SetupBinarySensors(deps, BinarySensorTable) {
		out = append(out, s)
	}
	for _, c := range SetupCovers(deps, CoverTable) {
		out = append(out, c)
	}
	for _, l := range SetupLocks(deps, LockTable) {
		out = append(out, l)
	}
	return out
}

// Resolved is one mapping as returned by ResolveAll.
type Resolved struct {
	Platform Platform `json:"platform" yaml:"platform"`
	Binding  `yaml:",inline"`
}

// ResolveAll lists the bindings every built-in table resolves for a
// product, without materialising entities.
func ResolveAll(category, productID string) []Resolved {
	var out []Resolved
	add := func(p Platform, b Binding) {
		out = append(out, Resolved{Platform: p, Binding: b})
	}
	for _, m := range ButtonTable.Resolve(category, productID) {
		add(PlatformButton, m.Binding)
	}
	for _, m := range SwitchTable.Resolve(category, productID) {
		add(PlatformSwitch, m.Binding)
	}
	for _, m := range SelectTable.Resolve(category, productID) {
		add(PlatformSelect, m.Binding)
	}
	for _, m := range BinarySensorTable.Resolve(category, productID) {
		add(PlatformBinarySensor, m.Binding)
	}
	for _, m := range CoverTable.Resolve(category, productID) {
		add(PlatformCover, m.Binding)
	}
	for _, m := range LockTable.Resolve(category, productID) {
		add(PlatformLock, m.Binding)
	}
	return out
}
