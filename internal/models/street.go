package models

// StreetProfile aggregates the road attributes of every segment of one named street.
type StreetProfile struct {
	Name              string  `json:"name"`
	HighwayClass      string  `json:"highway_class"`
	MaxSpeed          float64 `json:"max_speed"`
	LaneCount         int     `json:"lane_count"`
	WidthM            float64 `json:"width_m"`
	CyclewayType      string  `json:"cycleway_type"`
	SidewalkType      string  `json:"sidewalk_type"`
	OneWay            bool    `json:"one_way"`
	LengthM           float64 `json:"length_m"`
	CanalAdjacent     bool    `json:"canal_adjacent"`
	NameSuggestsCanal bool    `json:"name_suggests_canal"`
	Segments          int     `json:"segments"`
}

// Canal is true when the street runs along water or is named like a canal.
func (p StreetProfile) Canal() bool {
	return p.CanalAdjacent || p.NameSuggestsCanal
}

// StreetMatch is one candidate street scored against a reference street.
type StreetMatch struct {
	StreetName string             `json:"street_name"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
	Profile    StreetProfile      `json:"profile"`
}

// StreetStats summarises the scored listings of one street.
type StreetStats struct {
	Street           string  `json:"street"`
	Top1             float64 `json:"top1"`
	Top3Mean         float64 `json:"top3_mean"`
	StrongCount      int     `json:"strong_count"`
	MediumCount      int     `json:"medium_count"`
	PropertiesCount  int     `json:"properties_count"`
	AveragePrice     float64 `json:"average_price"`
	Representativity float64 `json:"representativity"`
	IsReference      bool    `json:"is_reference"`
}
