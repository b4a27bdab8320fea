package products

var (
	cubeTouch = FingerbotInfo{
		Switch:           1,
		Mode:             2,
		UpPosition:       5,
		DownPosition:     6,
		HoldTime:         3,
		ReversePositions: 4,
	}
	fingerbotPlus = FingerbotInfo{
		Switch:           2,
		Mode:             8,
		UpPosition:       15,
		DownPosition:     9,
		HoldTime:         10,
		ReversePositions: 11,
		ManualControl:    17,
		Program:          121,
	}
	fingerbot = FingerbotInfo{
		Switch:           2,
		Mode:             8,
		UpPosition:       15,
		DownPosition:     9,
		HoldTime:         10,
		ReversePositions: 11,
		Program:          121,
	}
)

// database is built once and never written after init.
var database = map[string]CategoryInfo{
	"co2bj": {Products: map[string]Info{
		"59s19z5m": product("CO2 Detector"),
	}},
	"dcb": {Products: map[string]Info{
		"ajrhf1aj": {Name: "PARKSIDE Smart battery 8Ah", Manufacturer: "PARKSIDE"},
	}},
	"ms": {Products: same(product("Smart Lock"), "ludzroix", "isk2p555")},
	"szjqr": {Products: merge(
		map[string]Info{
			"3yqdo5yt": withFingerbot("CUBETOUCH 1s", cubeTouch),
			"xhf790if": withFingerbot("CubeTouch II", cubeTouch),
		},
		same(withFingerbot("Fingerbot Plus", fingerbotPlus),
			"blliqpsj", "ndvkgsrm", "yiihr7zh", "neq16kgd"),
		same(withFingerbot("Fingerbot", fingerbot),
			"ltak7e1p", "y6kttvd6", "yrnk7mnn", "nvr2rocq", "bnt7wajf", "rvdceqjh", "5xhbk964"),
	)},
	"wk": {Products: same(product("Thermostatic Radiator Valve"), "drlajpqc", "nhj2j7su")},
	"wsdcg": {Products: map[string]Info{
		"ojzlzzsw": product("Soil moisture sensor"),
		"iv7hudlj": product("Bluetooth Temperature Humidity Sensor"),
	}},
	"znhsb": {Products: map[string]Info{
		"cdlandip": product("Smart water bottle"),
	}},
	"ggq":   {Products: same(product("Irrigation computer"), "6pahkcau", "hfgdqhho")},
	"sfkzq": {Products: map[string]Info{"nxquc5lb": product("Water valve controller")}},
	"dd": {
		Products: map[string]Info{
			"nvfrtxlq": {Name: "LGB102 Magic Strip Lights", Manufacturer: "Magiacous"},
		},
		Info: ptr(product("Strip Lights")),
	},
	"cl": {Products: map[string]Info{}, Info: ptr(product("Curtain"))},
}

func product(name string) Info {
	return Info{Name: name, Manufacturer: DefaultManufacturer}
}

func withFingerbot(name string, fb FingerbotInfo) Info {
	info := product(name)
	info.Fingerbot = &fb
	return info
}

func same(info Info, ids ...string) map[string]Info {
	m := make(map[string]Info, len(ids))
	for _, id := range ids {
		m[id] = info
	}
	return m
}

func merge(maps ...map[string]Info) map[string]Info {
	out := make(map[string]Info)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func ptr(info Info) *Info { return &info }
